package batch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out calls to a quota-limited API: a fixed interval between
// individual calls and a longer pause between batches.
type Pacer struct {
	calls    *rate.Limiter
	batchGap time.Duration
}

// NewPacer builds a pacer; zero intervals disable the corresponding wait.
func NewPacer(callInterval, batchInterval time.Duration) *Pacer {
	limit := rate.Inf
	if callInterval > 0 {
		limit = rate.Every(callInterval)
	}
	return &Pacer{
		calls:    rate.NewLimiter(limit, 1),
		batchGap: batchInterval,
	}
}

// WaitCall blocks until the next call may be issued.
func (p *Pacer) WaitCall(ctx context.Context) error {
	if p == nil || p.calls == nil {
		return ctx.Err()
	}
	return p.calls.Wait(ctx)
}

// WaitBatch blocks for the inter-batch pause.
func (p *Pacer) WaitBatch(ctx context.Context) error {
	if p == nil || p.batchGap <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.batchGap)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
