package session

import (
	"sync"
	"time"
)

// Countdown ticks once per interval and fires expiry exactly once.
// Start on a running countdown restarts it; Stop is idempotent and
// safe on a countdown that never started.
type Countdown struct {
	// Interval defaults to one second. Tests shorten it.
	Interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
}

// Start begins counting down from seconds. onTick receives the
// remaining seconds after each tick; onExpire fires once at zero.
// Either callback may be nil.
func (c *Countdown) Start(seconds int, onTick func(remaining int), onExpire func()) {
	c.mu.Lock()
	if c.stopCh != nil {
		close(c.stopCh)
	}
	stopCh := make(chan struct{})
	c.stopCh = stopCh
	interval := c.Interval
	c.mu.Unlock()

	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		remaining := seconds
		for {
			select {
			case <-ticker.C:
				remaining--
				if remaining > 0 {
					if onTick != nil {
						onTick(remaining)
					}
					continue
				}
				if onTick != nil {
					onTick(0)
				}
				if onExpire != nil {
					onExpire()
				}
				return
			case <-stopCh:
				return
			}
		}
	}()
}

// Stop cancels the countdown without firing expiry.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
}
