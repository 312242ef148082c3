// Package audio holds the capture/playback plumbing shared by the voice
// transports: sample conversion, resampling, G.711 companding, WAV
// handling and the gapless playback scheduler.
package audio

// Source produces microphone frames as float32 PCM in [-1, 1]. Multiple
// consumers may subscribe; each gets its own channel. Stop ends capture
// and closes every subscriber channel, exactly once.
type Source interface {
	SampleRate() int
	Subscribe(buffer int) (frames <-chan []float32, cancel func())
	Stop()
}

// Sink consumes synthesized audio for playback. Implementations must
// tolerate Play after Flush and Flush with nothing buffered.
type Sink interface {
	Play(pcm []float32, sampleRate int)
	Flush()
	Close() error
}

// Float32ToPCM16 converts [-1, 1] samples to signed 16-bit.
func Float32ToPCM16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7fff)
		}
	}
	return out
}

// PCM16ToFloat32 converts signed 16-bit samples to [-1, 1].
func PCM16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// PCM16BytesLE decodes little-endian 16-bit PCM bytes.
func PCM16BytesLE(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return out
}

// PCM16ToBytesLE encodes 16-bit samples as little-endian bytes.
func PCM16ToBytesLE(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		out[2*i] = byte(uint16(s))
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}
