package httpcache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pacer enforces a fixed quiet period between the end of one request and the start of the next.
// It is safe for concurrent use, but each acquisition session owns its own Pacer.
type Pacer struct {
	last     time.Time
	sleep    func(context.Context, time.Duration) error
	logger   *slog.Logger
	interval time.Duration
	mu       sync.Mutex
}

// NewPacer creates a Pacer with the given interval.
func NewPacer(interval time.Duration, logger *slog.Logger) *Pacer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pacer{interval: interval, sleep: Sleep, logger: logger}
}

// SetSleep replaces the sleep function. Intended for tests.
func (p *Pacer) SetSleep(fn func(context.Context, time.Duration) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sleep = fn
}

// Wait blocks until interval has passed since the last Done call.
// The first call never blocks.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last.IsZero() {
		return nil
	}
	if elapsed := time.Since(p.last); elapsed < p.interval {
		wait := p.interval - elapsed
		p.logger.DebugContext(ctx, "pacing pause", "wait", wait.Round(time.Millisecond))
		return p.sleep(ctx, wait)
	}
	return nil
}

// Done records the end of a request, whatever its outcome.
func (p *Pacer) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = time.Now()
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
