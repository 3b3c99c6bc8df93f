package clock

import (
	"context"
	"sync"
	"time"
)

const DefaultTickInterval = time.Second

// Ticker calls fn on a fixed cadence from its own goroutine. Start while
// already running is a no-op; Stop cancels the pending tick and waits for the
// goroutine to exit.
type Ticker struct {
	interval time.Duration
	fn       func(time.Time)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTicker(interval time.Duration, fn func(time.Time)) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{interval: interval, fn: fn}
}

func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go func() {
		defer close(done)
		tk := time.NewTicker(t.interval)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tk.C:
				t.fn(now.UTC())
			}
		}
	}()
}

func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}
