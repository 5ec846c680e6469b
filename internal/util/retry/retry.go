// Package retry provides bounded fixed-interval polling for eventually
// consistent remote state.
//
// Provisioning repeatedly has to wait for something out-of-process to
// happen: a spot request to be fulfilled, a public address to be assigned,
// sshd to come up on a freshly booted machine. [Poll] is the single loop
// used for all of them, so every wait in the codebase is bounded and turns
// into a typed error on exhaustion instead of spinning forever.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned (wrapped) when a poll loop runs out of time or
// attempts before the condition is met. Callers use errors.Is to tell a
// timeout apart from a hard failure reported by the operation itself.
var ErrExhausted = errors.New("polling deadline exceeded")

// Config bounds a polling loop. Interval must be positive and at least one
// of Timeout or MaxAttempts must be set; unbounded loops are rejected.
type Config struct {
	// Interval is the fixed delay between attempts.
	Interval time.Duration

	// Timeout caps the total wall-clock time spent polling. Zero means no
	// deadline (MaxAttempts must then be set).
	Timeout time.Duration

	// MaxAttempts caps the number of attempts. Zero means no cap (Timeout
	// must then be set).
	MaxAttempts int
}

// Poll invokes op at fixed intervals until it reports done, returns an
// error, or the loop is exhausted. The first attempt happens immediately.
//
// An error from op aborts the loop at once: op decides what is fatal. An op
// that wants "keep trying" semantics for a failure (an unreachable host, for
// example) returns (false, nil) instead of the error. Exhaustion returns an
// error wrapping ErrExhausted.
func Poll(ctx context.Context, cfg Config, op func(ctx context.Context) (bool, error)) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("retry: interval must be positive, got %v", cfg.Interval)
	}
	if cfg.Timeout == 0 && cfg.MaxAttempts == 0 {
		return errors.New("retry: unbounded poll, set Timeout or MaxAttempts")
	}

	var deadline time.Time
	if cfg.Timeout > 0 {
		deadline = time.Now().Add(cfg.Timeout)
	}

	for attempt := 1; ; attempt++ {
		done, err := op(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%w after %d attempts", ErrExhausted, attempt)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w after %v", ErrExhausted, cfg.Timeout)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry: canceled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(cfg.Interval):
		}
	}
}
