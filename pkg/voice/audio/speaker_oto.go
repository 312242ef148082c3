package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// SpeakerSink plays synthesized audio on the default output device via
// oto. The device runs at a fixed rate; Play resamples as needed.
type SpeakerSink struct {
	ctx    *oto.Context
	player *oto.Player
	rate   int

	mu     sync.Mutex
	buf    []byte
	closed bool
}

// NewSpeakerSink opens the default output device, mono signed 16-bit.
func NewSpeakerSink(sampleRate int) (*SpeakerSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("init playback context: %w", err)
	}
	<-ready

	s := &SpeakerSink{ctx: ctx, rate: sampleRate}
	s.player = ctx.NewPlayer(speakerReader{s})
	s.player.Play()
	return s, nil
}

// Play queues a chunk for playback, resampling to the device rate.
func (s *SpeakerSink) Play(pcm []float32, sampleRate int) {
	data := PCM16ToBytesLE(Resample(pcm, sampleRate, s.rate))
	s.mu.Lock()
	if !s.closed {
		s.buf = append(s.buf, data...)
	}
	s.mu.Unlock()
}

// Flush drops any queued audio.
func (s *SpeakerSink) Flush() {
	s.mu.Lock()
	s.buf = nil
	s.mu.Unlock()
}

// Close stops playback and releases the device.
func (s *SpeakerSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.buf = nil
	s.mu.Unlock()
	return s.player.Close()
}

// Drain waits until queued audio has been handed to the device, up to
// the given timeout.
func (s *SpeakerSink) Drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		n := len(s.buf)
		s.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// speakerReader feeds the oto player, emitting silence when the queue
// is empty so the device keeps running.
type speakerReader struct {
	s *SpeakerSink
}

func (r speakerReader) Read(p []byte) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}
