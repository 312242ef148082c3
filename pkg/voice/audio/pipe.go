package audio

import "sync"

// PipeSource is a Source fed programmatically. The malgo mic pushes its
// capture callback frames through one; tests script it directly.
type PipeSource struct {
	mu         sync.Mutex
	sampleRate int
	subs       map[int]chan []float32
	nextID     int
	stopped    bool
}

// NewPipeSource builds a source reporting the given sample rate.
func NewPipeSource(sampleRate int) *PipeSource {
	return &PipeSource{
		sampleRate: sampleRate,
		subs:       make(map[int]chan []float32),
	}
}

func (p *PipeSource) SampleRate() int { return p.sampleRate }

// Subscribe registers a consumer. Frames are dropped for subscribers
// whose buffer is full; capture never blocks on a slow consumer.
func (p *PipeSource) Subscribe(buffer int) (<-chan []float32, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	ch := make(chan []float32, buffer)
	if p.stopped {
		close(ch)
		return ch, func() {}
	}
	p.subs[id] = ch
	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(c)
		}
	}
}

// Push fans one frame out to all subscribers.
func (p *PipeSource) Push(frame []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	for _, ch := range p.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Stop closes all subscriber channels. Idempotent.
func (p *PipeSource) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}

// Stopped reports whether Stop has been called.
func (p *PipeSource) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
