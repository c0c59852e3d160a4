// Package clock holds the engine's suspension points. Every pause the
// engine takes goes through a Sleeper so tests can observe the delays
// without waiting for them.
package clock

import (
	"context"
	"sync"
	"time"
)

// Sleeper pauses for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Real sleeps on the wall clock.
type Real struct{}

// Sleep returns ctx.Err() if ctx finishes first.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fake records requested pauses and returns immediately.
type Fake struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns the recorded pauses in order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

// Count returns how many pauses of exactly d were requested.
func (f *Fake) Count(d time.Duration) int {
	n := 0
	for _, s := range f.Sleeps() {
		if s == d {
			n++
		}
	}
	return n
}
