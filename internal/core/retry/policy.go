// Package retry is the one retry policy shared by every upstream source.
// Attempts are spaced by a fixed delay unless the failed attempt carried a
// server hint (Retry-After), which replaces the delay for that retry only.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 5 * time.Second
)

// Policy bounds how often and how patiently an operation is retried.
// MaxAttempts counts every try, including the first.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Hinted is implemented by errors that know how long to wait before the
// next attempt.
type Hinted interface {
	RetryAfter() time.Duration
}

// Operation is one attempt. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// Permanent wraps err so Do returns it without retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Delay < 0 {
		p.Delay = DefaultDelay
	}
	return p
}

// Do runs op until it succeeds, returns a permanent error, the attempts are
// spent, or ctx is done. It returns the number of attempts made and the last
// error (unwrapped from Permanent).
func (p Policy) Do(ctx context.Context, op Operation) (int, error) {
	p = p.withDefaults()

	hint := &hintedBackOff{delay: p.Delay}
	b := backoff.WithContext(backoff.WithMaxRetries(hint, uint64(p.MaxAttempts-1)), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		var h Hinted
		if errors.As(err, &h) {
			hint.override(h.RetryAfter())
		}
		return err
	}, b, func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
	})
	return attempt, err
}

// hintedBackOff is a constant backoff whose next interval can be replaced
// once by a server hint.
type hintedBackOff struct {
	delay time.Duration
	next  time.Duration
}

func (b *hintedBackOff) override(d time.Duration) {
	if d > 0 {
		b.next = d
	}
}

func (b *hintedBackOff) NextBackOff() time.Duration {
	if b.next > 0 {
		d := b.next
		b.next = 0
		return d
	}
	return b.delay
}

func (b *hintedBackOff) Reset() { b.next = 0 }
