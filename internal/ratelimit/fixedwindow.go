// Package ratelimit implements a fixed-window request counter keyed by
// (resource, subject).
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute
)

// Key identifies one counter, e.g. {"subscriptions", "42"}.
type Key struct {
	Resource string
	Subject  string
}

// Stats describes the state of the current window for a key.
type Stats struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type counter struct {
	bucket int64
	hits   int
}

// FixedWindow counts hits in aligned windows of a fixed length. The window
// containing t is floor(t / window); a counter from an earlier window is
// treated as empty and replaced on the next hit.
type FixedWindow struct {
	mu       sync.RWMutex
	limit    int
	window   time.Duration
	now      func() time.Time
	counters map[Key]*counter
}

type Option func(*FixedWindow)

func WithClock(now func() time.Time) Option {
	return func(f *FixedWindow) { f.now = now }
}

func New(limit int, window time.Duration, opts ...Option) *FixedWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	f := &FixedWindow{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[Key]*counter),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FixedWindow) Limit() int { return f.limit }

// WindowStats reports the remaining quota for key without recording a hit.
func (f *FixedWindow) WindowStats(key Key) Stats {
	bucket := f.bucket(f.now())

	f.mu.RLock()
	c := f.counters[key]
	hits := 0
	if c != nil && c.bucket == bucket {
		hits = c.hits
	}
	f.mu.RUnlock()

	return f.stats(bucket, hits)
}

// Hit records one request against key in the current window and returns the
// stats after the hit.
func (f *FixedWindow) Hit(key Key) Stats {
	bucket := f.bucket(f.now())

	f.mu.Lock()
	c, ok := f.counters[key]
	if !ok {
		c = &counter{bucket: bucket}
		f.counters[key] = c
	}
	if c.bucket != bucket {
		c.bucket = bucket
		c.hits = 0
	}
	c.hits++
	hits := c.hits
	f.mu.Unlock()

	return f.stats(bucket, hits)
}

// Cleanup drops counters that belong to past windows.
func (f *FixedWindow) Cleanup() int {
	bucket := f.bucket(f.now())

	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for k, c := range f.counters {
		if c.bucket < bucket {
			delete(f.counters, k)
			removed++
		}
	}
	return removed
}

// StartJanitor runs Cleanup every interval until ctx is cancelled.
func (f *FixedWindow) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				f.Cleanup()
			}
		}
	}()
}

func (f *FixedWindow) bucket(t time.Time) int64 {
	return t.UnixNano() / int64(f.window)
}

func (f *FixedWindow) stats(bucket int64, hits int) Stats {
	remaining := f.limit - hits
	if remaining < 0 {
		remaining = 0
	}
	return Stats{
		Limit:     f.limit,
		Remaining: remaining,
		ResetAt:   time.Unix(0, (bucket+1)*int64(f.window)).UTC(),
	}
}
