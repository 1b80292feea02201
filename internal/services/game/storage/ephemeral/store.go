// Package ephemeral is an in-memory TTL store for rate-limit windows and
// cooldowns. Its contents are lost on restart, which callers tolerate.
package ephemeral

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/louisbranch/delving.space/internal/services/game/storage"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Store keeps keys and sliding windows in process memory.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	values  map[string]entry
	windows map[string][]time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for TTL expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:     time.Now,
		values:  map[string]entry{},
		windows: map[string][]time.Time{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddToWindow records a hit at at and returns the hits inside the trailing
// window.
func (s *Store) AddToWindow(ctx context.Context, key string, at time.Time, window time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := trim(s.windows[key], at, window)
	hits = append(hits, at)
	if n := len(hits); n > 1 && hits[n-2].After(at) {
		slices.SortFunc(hits, func(a, b time.Time) int { return a.Compare(b) })
	}
	s.windows[key] = hits
	return len(hits), nil
}

// CountWindow returns the hits inside the trailing window.
func (s *Store) CountWindow(ctx context.Context, key string, at time.Time, window time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := trim(s.windows[key], at, window)
	if len(hits) == 0 {
		delete(s.windows, key)
	} else {
		s.windows[key] = hits
	}
	return len(hits), nil
}

// trim drops hits at or before at-window.
func trim(hits []time.Time, at time.Time, window time.Duration) []time.Time {
	cutoff := at.Add(-window)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// SetIfAbsent stores value unless a live value exists.
func (s *Store) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.values[key] = entry{value: value, expiresAt: s.expiry(ttl)}
	return true, nil
}

// Set stores value for ttl. A non-positive ttl never expires.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = entry{value: value, expiresAt: s.expiry(ttl)}
	return nil
}

// Get returns a live value.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	return e.value, ok, nil
}

// TTL returns the remaining lifetime of a live key. Keys without expiry
// report zero.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok || e.expiresAt.IsZero() {
		return 0, ok, nil
	}
	return e.expiresAt.Sub(s.now()), true, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.windows, key)
	return nil
}

// Sweep drops expired values and empty windows older than maxWindow. It
// returns the number of keys removed.
func (s *Store) Sweep(maxWindow time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, e := range s.values {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.values, k)
			removed++
		}
	}
	for k, hits := range s.windows {
		if len(trim(hits, now, maxWindow)) == 0 {
			delete(s.windows, k)
			removed++
		}
	}
	return removed
}

// live returns the entry for key, deleting it when expired. Callers hold mu.
func (s *Store) live(key string) (entry, bool) {
	e, ok := s.values[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.values, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

var _ storage.EphemeralStore = (*Store)(nil)
