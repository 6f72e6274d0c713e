package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianstack/assetrisk/pkg/types"
)

// Entry is one processed dataset together with its bookkeeping fields.
// Callers must treat Dataset as read-only.
type Entry struct {
	ID        string
	Name      string
	Dataset   *types.ProcessedDataset
	CreatedAt time.Time
}

// Summary is the list view of an Entry.
type Summary struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	KPIs      types.KPISummary `json:"kpis"`
	Skipped   int              `json:"skipped_rows"`
}

// Store is a thread-safe in-memory dataset store.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores ds under a new ID and returns the created entry.
func (s *Store) Put(name string, ds *types.ProcessedDataset) *Entry {
	e := &Entry{
		ID:      uuid.NewString(),
		Name:    name,
		Dataset: ds,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.CreatedAt = s.now()
	s.data[e.ID] = e
	return e
}

// Get returns the live entry for id. Entries past their TTL are reported
// missing even before Run evicts them.
func (s *Store) Get(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok || !s.live(e, s.now()) {
		return nil, false
	}
	return e, true
}

// Delete removes id and reports whether it was present.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[id]
	delete(s.data, id)
	return ok
}

// List returns all live entries, newest first.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	now := s.now()
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if s.live(e, now) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Summaries returns the list view of every live entry, newest first.
func (s *Store) Summaries() []Summary {
	entries := s.List()
	out := make([]Summary, len(entries))
	for i, e := range entries {
		out[i] = s.Summarize(e)
	}
	return out
}

// Summarize returns the list view of e.
func (s *Store) Summarize(e *Entry) Summary {
	return Summary{
		ID:        e.ID,
		Name:      e.Name,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.CreatedAt.Add(s.ttl),
		KPIs:      e.Dataset.KPIs,
		Skipped:   len(e.Dataset.Skipped),
	}
}

// Count returns the number of entries held, including expired ones not yet evicted.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries created more than TTL before now and returns how
// many were removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.data {
		if !s.live(e, now) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background eviction loop, ticking at half the TTL
// (minimum 1 second). It blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted expired datasets", "count", n)
			}
		}
	}
}

func (s *Store) live(e *Entry, now time.Time) bool {
	return e.CreatedAt.After(now.Add(-s.ttl))
}
