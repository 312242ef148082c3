package audio

import (
	"sync"
	"time"
)

// Clock abstracts time for the scheduler so tests can drive it.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Playback schedules synthesized chunks back to back on a sink. Each
// chunk starts at max(now+margin, cursor) and the cursor advances by the
// chunk duration, so chunks never overlap and never leave a gap once the
// stream is flowing.
type Playback struct {
	mu     sync.Mutex
	sink   Sink
	clock  Clock
	margin time.Duration
	cursor time.Time
}

// NewPlayback builds a scheduler over sink. A nil clock uses wall time.
func NewPlayback(sink Sink, clock Clock) *Playback {
	if clock == nil {
		clock = realClock{}
	}
	return &Playback{
		sink:   sink,
		clock:  clock,
		margin: 50 * time.Millisecond,
	}
}

// SetSink swaps the output sink. The cursor is kept so a rebind mid
// stream stays gapless.
func (p *Playback) SetSink(sink Sink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// Sink returns the currently bound sink.
func (p *Playback) Sink() Sink {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sink
}

// Schedule queues one chunk and returns its computed start time.
func (p *Playback) Schedule(pcm []float32, sampleRate int) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	startAt := p.clock.Now().Add(p.margin)
	if p.cursor.After(startAt) {
		startAt = p.cursor
	}
	dur := time.Duration(float64(len(pcm)) / float64(sampleRate) * float64(time.Second))
	p.cursor = startAt.Add(dur)
	if p.sink != nil {
		p.sink.Play(pcm, sampleRate)
	}
	return startAt
}

// Reset clears the cursor and flushes the sink, dropping queued audio.
func (p *Playback) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = time.Time{}
	if p.sink != nil {
		p.sink.Flush()
	}
}
