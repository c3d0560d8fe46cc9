package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/searchagent/tools/web_search/models"
)

type entry struct {
	results []models.Result
	expires time.Time
}

// Store is a process-local TTL cache. Expired entries are dropped lazily on
// read.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewInMemoryStore() *Store {
	return &Store{entries: make(map[string]entry), now: time.Now}
}

func (s *Store) Get(_ context.Context, query string) ([]models.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[query]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expires) {
		delete(s.entries, query)
		return nil, false
	}
	out := make([]models.Result, len(e.results))
	copy(out, e.results)
	return out, true
}

func (s *Store) Set(_ context.Context, query string, results []models.Result, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	stored := make([]models.Result, len(results))
	copy(stored, results)
	s.mu.Lock()
	s.entries[query] = entry{results: stored, expires: s.now().Add(ttl)}
	s.mu.Unlock()
}
