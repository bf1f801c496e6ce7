// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"math"
	"time"
)

const (
	// defaultMaxAttempts is the total number of attempts when unset.
	defaultMaxAttempts = 3

	// defaultBaseDelay is the first backoff delay when unset.
	defaultBaseDelay = 2 * time.Second
)

// Retrier wraps a single remote call with bounded retries and exponential
// backoff. Permanently-classified errors short-circuit; unclassified errors
// are treated as retryable.
type Retrier struct {
	// MaxAttempts is the total number of attempts per call (default 3).
	MaxAttempts int

	// BaseDelay is the first backoff delay; attempt n sleeps
	// BaseDelay * 2^n (default 2s).
	BaseDelay time.Duration
}

// Do invokes op until it succeeds, fails permanently, or attempts run out.
// The backoff sleep aborts early when ctx is done. After exhaustion the last
// error is returned wrapped with ClassExhausted so callers can distinguish
// "ran out of retries" from "must not retry".
func (r Retrier) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	delay := r.BaseDelay
	if delay <= 0 {
		delay = defaultBaseDelay
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		backoff := time.Duration(math.Pow(2, float64(attempt))) * delay
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return exhausted(lastErr)
}

// exhausted tags the final error of a spent retry loop.
func exhausted(err error) error {
	op := "generate"
	var ge *Error
	if errors.As(err, &ge) {
		op = ge.Op
	}
	return &Error{Class: ClassExhausted, Op: op, Err: err}
}
