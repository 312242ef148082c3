package audio

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingSink struct {
	plays   int
	flushes int
}

func (s *countingSink) Play(pcm []float32, sampleRate int) { s.plays++ }
func (s *countingSink) Flush()                             { s.flushes++ }
func (s *countingSink) Close() error                       { return nil }

func TestPlaybackChunksNeverOverlap(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	sink := &countingSink{}
	p := NewPlayback(sink, clock)

	chunk := make([]float32, 2400) // 100 ms at 24 kHz
	first := p.Schedule(chunk, 24000)
	second := p.Schedule(chunk, 24000)
	third := p.Schedule(chunk, 24000)

	if !second.Equal(first.Add(100 * time.Millisecond)) {
		t.Fatalf("second chunk at %v, want %v", second, first.Add(100*time.Millisecond))
	}
	if !third.Equal(second.Add(100 * time.Millisecond)) {
		t.Fatalf("third chunk at %v, want %v", third, second.Add(100*time.Millisecond))
	}
	if sink.plays != 3 {
		t.Fatalf("plays=%d want 3", sink.plays)
	}
}

func TestPlaybackIdleRestartsFromNow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	p := NewPlayback(&countingSink{}, clock)

	chunk := make([]float32, 240) // 10 ms
	p.Schedule(chunk, 24000)

	// Long silence: the cursor is in the past, so the next chunk
	// starts from now+margin rather than the stale cursor.
	clock.advance(5 * time.Second)
	start := p.Schedule(chunk, 24000)
	want := clock.Now().Add(50 * time.Millisecond)
	if !start.Equal(want) {
		t.Fatalf("start=%v want %v", start, want)
	}
}

func TestPlaybackResetFlushesSink(t *testing.T) {
	sink := &countingSink{}
	p := NewPlayback(sink, &fakeClock{now: time.Unix(1000, 0)})
	p.Schedule(make([]float32, 240), 24000)
	p.Reset()
	if sink.flushes != 1 {
		t.Fatalf("flushes=%d want 1", sink.flushes)
	}
}
