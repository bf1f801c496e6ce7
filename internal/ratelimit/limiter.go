// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit enforces a shared token budget over a rolling time
// window. Every generation call reserves an estimated cost before dispatch
// and records its actual usage afterwards; concurrent callers block inside
// Reserve until enough old usage falls out of the window.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

var (
	// evictInterval throttles compaction of expired window entries.
	evictInterval = 5 * time.Second

	// maxSleep caps one blocking interval inside Reserve so that a stale
	// wait estimate is re-checked rather than slept through.
	maxSleep = 5 * time.Second

	// minSleep floors the re-check interval when the computed wait has
	// already elapsed.
	minSleep = 50 * time.Millisecond

	// lockTimeout bounds acquisition of the critical section. Operations
	// that miss it degrade to best-effort instead of blocking.
	lockTimeout = 1 * time.Second
)

// usageEntry records tokens charged at a point in time.
type usageEntry struct {
	at     time.Time
	tokens int
}

// Limiter admits callers against a token budget summed over a trailing
// window. Admission is deliberately approximate: concurrent reservations may
// each pass the availability check before either records usage, so transient
// overshoot is bounded by one estimate per in-flight caller, not zero.
type Limiter struct {
	budget int
	window time.Duration

	// mu is a capacity-1 channel used as a lock with bounded acquisition.
	// A token in the channel means the lock is free.
	mu        chan struct{}
	entries   []usageEntry // ordered by at; guarded by mu
	lastEvict time.Time    // guarded by mu

	// pending accumulates tokens recorded while the lock was contended;
	// folded into entries by the next holder.
	pending atomic.Int64

	now func() time.Time
}

// NewLimiter returns a Limiter enforcing budget tokens per rolling minute.
func NewLimiter(budget int) *Limiter {
	l := &Limiter{
		budget: budget,
		window: time.Minute,
		mu:     make(chan struct{}, 1),
		now:    time.Now,
	}
	l.mu <- struct{}{}
	return l
}

// Budget returns the configured tokens-per-window budget.
func (l *Limiter) Budget() int {
	return l.budget
}

// Reserve blocks until estimated tokens fit inside the window, or until ctx
// is done. An estimate larger than the whole budget is clamped so a single
// oversized call cannot block forever. If the critical section cannot be
// acquired within lockTimeout the reservation is granted immediately.
func (l *Limiter) Reserve(ctx context.Context, estimated int) error {
	if estimated > l.budget {
		estimated = l.budget
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !l.lock() {
			return nil
		}
		l.foldPending()
		now := l.now()
		l.evict(now)
		avail := l.budget - l.used(now)
		if avail >= estimated {
			l.unlock()
			return nil
		}
		wait := l.waitFor(now, estimated-avail)
		l.unlock()

		if wait > maxSleep {
			wait = maxSleep
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Record charges the window with the usage of a completed call. If the
// critical section cannot be acquired within lockTimeout the tokens are
// parked in an atomic counter and folded in by the next lock holder.
func (l *Limiter) Record(usage types.TokenUsage) {
	total := usage.Total()
	if total <= 0 {
		return
	}
	if !l.lock() {
		l.pending.Add(int64(total))
		return
	}
	l.foldPending()
	l.entries = append(l.entries, usageEntry{at: l.now(), tokens: total})
	l.unlock()
}

// Available reports budget minus tokens charged within the current window.
// The value is negative after an overshoot. Returns 0 when the critical
// section cannot be acquired in time.
func (l *Limiter) Available() int {
	if !l.lock() {
		return 0
	}
	defer l.unlock()
	l.foldPending()
	now := l.now()
	l.evict(now)
	return l.budget - l.used(now)
}

// lock acquires the critical section, waiting at most lockTimeout.
func (l *Limiter) lock() bool {
	select {
	case <-l.mu:
		return true
	default:
	}
	timer := time.NewTimer(lockTimeout)
	defer timer.Stop()
	select {
	case <-l.mu:
		return true
	case <-timer.C:
		return false
	}
}

func (l *Limiter) unlock() {
	l.mu <- struct{}{}
}

// foldPending moves tokens recorded under contention into the window.
// Caller must hold the lock.
func (l *Limiter) foldPending() {
	if n := l.pending.Swap(0); n > 0 {
		l.entries = append(l.entries, usageEntry{at: l.now(), tokens: int(n)})
	}
}

// used sums tokens charged within the window ending at now. It filters by
// timestamp so the result is correct even when eviction is throttled.
// Caller must hold the lock.
func (l *Limiter) used(now time.Time) int {
	cutoff := now.Add(-l.window)
	total := 0
	for _, e := range l.entries {
		if e.at.After(cutoff) {
			total += e.tokens
		}
	}
	return total
}

// evict drops entries older than the window, at most once per evictInterval.
// Caller must hold the lock.
func (l *Limiter) evict(now time.Time) {
	if now.Sub(l.lastEvict) < evictInterval {
		return
	}
	l.lastEvict = now
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.entries) && !l.entries[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		l.entries = append(l.entries[:0], l.entries[i:]...)
	}
}

// waitFor returns how long until enough live entries expire to free
// shortfall tokens, walking entries in timestamp order. Caller must hold
// the lock.
func (l *Limiter) waitFor(now time.Time, shortfall int) time.Duration {
	cutoff := now.Add(-l.window)
	freed := 0
	for _, e := range l.entries {
		if !e.at.After(cutoff) {
			continue
		}
		freed += e.tokens
		if freed >= shortfall {
			wait := e.at.Add(l.window).Sub(now)
			if wait < minSleep {
				wait = minSleep
			}
			return wait
		}
	}
	return minSleep
}
