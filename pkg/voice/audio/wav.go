package audio

import (
	"bytes"
	"encoding/binary"
)

// StripWAVHeader returns the raw payload of a WAV container, or the
// input unchanged when it is not RIFF data. Some providers prepend a
// header on the first audio chunk only, so this must be cheap and safe
// to call on every chunk.
func StripWAVHeader(data []byte) []byte {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return data
	}
	for i := 12; i+8 <= len(data); {
		id := data[i : i+4]
		size := int(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		if bytes.Equal(id, []byte("data")) {
			start := i + 8
			end := start + size
			if end > len(data) || size <= 0 {
				end = len(data)
			}
			return data[start:end]
		}
		i += 8 + size
		if size%2 == 1 {
			i++
		}
	}
	// Malformed chunk table: assume the canonical 44-byte header.
	if len(data) > 44 {
		return data[44:]
	}
	return data
}

// EncodeWAV wraps 16-bit mono PCM in a canonical WAV container.
func EncodeWAV(pcm []int16, sampleRate int) []byte {
	payload := PCM16ToBytesLE(pcm)
	var buf bytes.Buffer
	buf.Grow(44 + len(payload))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(payload)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

// EncodeWAVMuLaw wraps μ-law bytes in a WAV container (format 7).
func EncodeWAVMuLaw(mulaw []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(mulaw))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(mulaw)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(7)) // μ-law
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(8))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(mulaw)))
	buf.Write(mulaw)
	return buf.Bytes()
}
