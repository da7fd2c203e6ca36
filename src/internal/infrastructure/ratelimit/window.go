// Package ratelimit provides sliding-window rate limiting keyed by
// client identity.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window enforces a request quota over a trailing time window.
type Window interface {
	// Allow records a request for the client and reports whether it is
	// within quota. A rejected request is not recorded.
	Allow(ctx context.Context, clientID string) bool
	// Remaining returns how many requests the client has left in the
	// current window.
	Remaining(ctx context.Context, clientID string) int
}

// Config holds rate limiter configuration.
type Config struct {
	// Enabled toggles limiting globally; when false every request is
	// allowed and Remaining always reports the full quota.
	Enabled bool
	// RequestsPerWindow is the per-client quota (default 100).
	RequestsPerWindow int
	// WindowSize is the trailing window length (default 60s).
	WindowSize time.Duration
	// MaxClients bounds the number of tracked client identities;
	// 0 means unbounded, matching the original design. When the bound is
	// hit the identity with the oldest activity is evicted.
	MaxClients int
}

// DefaultConfig returns the configuration the service ships with.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerWindow: 100,
		WindowSize:        time.Minute,
	}
}

// MemoryWindow is an in-process sliding-window limiter. Expired
// timestamps are pruned lazily on each check; no background sweeper
// runs. State is local to one instance.
type MemoryWindow struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	cfg      Config

	now func() time.Time
}

// NewMemoryWindow creates an in-memory sliding-window limiter.
func NewMemoryWindow(cfg Config) *MemoryWindow {
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = 100
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = time.Minute
	}
	return &MemoryWindow{
		requests: make(map[string][]time.Time),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Allow implements Window.
func (w *MemoryWindow) Allow(_ context.Context, clientID string) bool {
	if !w.cfg.Enabled {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	kept := w.prune(clientID, now)

	if len(kept) >= w.cfg.RequestsPerWindow {
		w.requests[clientID] = kept
		return false
	}

	if _, tracked := w.requests[clientID]; !tracked {
		w.evictIfFull()
	}
	w.requests[clientID] = append(kept, now)
	return true
}

// Remaining implements Window.
func (w *MemoryWindow) Remaining(_ context.Context, clientID string) int {
	if !w.cfg.Enabled {
		return w.cfg.RequestsPerWindow
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	entries, tracked := w.requests[clientID]
	if !tracked {
		return w.cfg.RequestsPerWindow
	}

	remaining := w.cfg.RequestsPerWindow - len(entries)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// prune drops timestamps older than the window. Caller holds the lock.
func (w *MemoryWindow) prune(clientID string, now time.Time) []time.Time {
	cutoff := now.Add(-w.cfg.WindowSize)
	entries := w.requests[clientID]
	kept := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// evictIfFull removes the identity with the oldest latest request when
// the client bound is reached. Caller holds the lock.
func (w *MemoryWindow) evictIfFull() {
	if w.cfg.MaxClients <= 0 || len(w.requests) < w.cfg.MaxClients {
		return
	}

	var oldestID string
	var oldest time.Time
	first := true
	for id, entries := range w.requests {
		last := time.Time{}
		if len(entries) > 0 {
			last = entries[len(entries)-1]
		}
		if first || last.Before(oldest) {
			oldestID = id
			oldest = last
			first = false
		}
	}
	if oldestID != "" {
		delete(w.requests, oldestID)
	}
}

// Stats reports the limiter's current occupancy.
func (w *MemoryWindow) Stats() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	return map[string]interface{}{
		"tracked_clients":     len(w.requests),
		"requests_per_window": w.cfg.RequestsPerWindow,
		"window_seconds":      int(w.cfg.WindowSize.Seconds()),
		"enabled":             w.cfg.Enabled,
	}
}
