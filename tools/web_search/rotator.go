package web_search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/mohammad-safakhou/searchagent/tools/web_search/models"
	"github.com/mohammad-safakhou/searchagent/tools/web_search/qcache"
)

// ErrQuotaExhausted is raised once every configured credential has been
// marked invalid. It is fatal for the enclosing sub-question.
var ErrQuotaExhausted = errors.New("all search credentials have insufficient quota")

// SearcherFactory builds a provider client bound to one credential.
type SearcherFactory func(apiKey string) WebSearcher

// Rotator drives a set of credentials round-robin over one underlying search
// provider, retries transient failures with randomized backoff, and absorbs
// duplicate queries through a short-TTL cache.
type Rotator struct {
	factory SearcherFactory
	keys    []string

	mu      sync.Mutex
	keyCtr  int
	invalid map[int]bool

	cache      qcache.Store
	ttl        time.Duration
	maxRetries int
	logger     *log.Logger

	// sleep is swappable for tests.
	sleep func(time.Duration)
}

// NewRotator builds a rotator for a named provider and ordered credential
// list. cache may be nil to disable query caching.
func NewRotator(provider Provider, keys []string, blacklist []string, cache qcache.Store, ttl time.Duration, maxRetries int, logger *log.Logger) (*Rotator, error) {
	if _, err := NewWebSearcher(provider, "", blacklist); err != nil {
		return nil, err
	}
	factory := func(apiKey string) WebSearcher {
		ws, _ := NewWebSearcher(provider, apiKey, blacklist)
		return ws
	}
	return NewRotatorWithFactory(factory, keys, cache, ttl, maxRetries, logger)
}

// NewRotatorWithFactory is the generic constructor for callers supplying
// their own provider client.
func NewRotatorWithFactory(factory SearcherFactory, keys []string, cache qcache.Store, ttl time.Duration, maxRetries int, logger *log.Logger) (*Rotator, error) {
	if len(keys) == 0 {
		return nil, errors.New("no search credentials configured")
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Rotator{
		factory:    factory,
		keys:       keys,
		invalid:    make(map[int]bool),
		cache:      cache,
		ttl:        ttl,
		maxRetries: maxRetries,
		logger:     logger,
		sleep:      time.Sleep,
	}, nil
}

// Discover runs one query through the provider, rotating credentials and
// retrying transient errors. Quota exhaustion across all keys surfaces as
// ErrQuotaExhausted without further retries.
func (r *Rotator) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	if r.cache != nil {
		if results, ok := r.cache.Get(ctx, q); ok {
			return results, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt < r.maxRetries; {
		idx, key, err := r.nextKey()
		if err != nil {
			return nil, err
		}

		results, err := r.factory(key).Discover(ctx, q, k)
		if err == nil {
			if r.cache != nil {
				r.cache.Set(ctx, q, results, r.ttl)
			}
			return results, nil
		}
		if errors.Is(err, models.ErrBadCredential) {
			// Does not consume a retry: move on to the next key.
			r.markInvalid(idx)
			r.logger.Printf("search credential #%d invalidated: %v", idx, err)
			lastErr = err
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		attempt++
		r.logger.Printf("search retry %d/%d for %q: %v", attempt, r.maxRetries, q, err)
		r.sleep(time.Duration(2+rand.Intn(4)) * time.Second)
	}
	return nil, fmt.Errorf("search failed after %d retries: %w", r.maxRetries, lastErr)
}

// nextKey advances the shared round-robin counter, skipping invalid keys.
func (r *Rotator) nextKey() (int, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.invalid) == len(r.keys) {
		return 0, "", ErrQuotaExhausted
	}
	for {
		r.keyCtr++
		if r.keyCtr >= len(r.keys) {
			r.keyCtr = 0
		}
		if !r.invalid[r.keyCtr] {
			return r.keyCtr, r.keys[r.keyCtr], nil
		}
	}
}

func (r *Rotator) markInvalid(idx int) {
	r.mu.Lock()
	r.invalid[idx] = true
	r.mu.Unlock()
}
