package httpfetch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// MaxCallRate is the highest per-minute budget a batch may ask for.
const MaxCallRate = 10

// Pacer spaces batch calls so a loop stays inside a per-minute budget.
// The gap is measured from the end of the previous call: callers pair every
// Wait with a Done once the call, retries included, has finished. The first
// Wait returns immediately.
type Pacer struct {
	limit    rate.Limit
	limiter  *rate.Limiter
	interval time.Duration
}

// NewPacer builds a pacer for callRate calls per minute.
func NewPacer(callRate int) (*Pacer, error) {
	if callRate <= 0 || callRate > MaxCallRate {
		return nil, &ConfigError{
			Field: "call_rate",
			Value: callRate,
			Rule:  fmt.Sprintf("must be between 1 and %d calls per minute", MaxCallRate),
		}
	}
	return NewPacerEvery(time.Minute / time.Duration(callRate)), nil
}

// NewPacerEvery builds a pacer with a fixed gap between calls. A zero gap
// disables pacing.
func NewPacerEvery(interval time.Duration) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{limit: limit, limiter: rate.NewLimiter(limit, 1), interval: interval}
}

func (p *Pacer) Interval() time.Duration { return p.interval }

// Wait blocks until a full interval has passed since the last Done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}
	return nil
}

// Done marks the end of the current call. The next Wait is released one
// interval from now, however long the call took.
func (p *Pacer) Done() {
	if p.interval <= 0 {
		return
	}
	l := rate.NewLimiter(p.limit, 1)
	l.ReserveN(time.Now(), 1)
	p.limiter = l
}
