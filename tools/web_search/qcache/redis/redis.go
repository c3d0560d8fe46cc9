package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/searchagent/tools/web_search/models"
)

// Store keeps query results in Redis so concurrent agent processes share one
// cache. Keys are hashed to keep arbitrary query strings Redis-safe.
type Store struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) *Store {
	return &Store{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func key(query string) string {
	sum := sha1.Sum([]byte(query))
	return "searchagent:qcache:" + hex.EncodeToString(sum[:])
}

func (s *Store) Get(ctx context.Context, query string) ([]models.Result, bool) {
	raw, err := s.client.Get(ctx, key(query)).Bytes()
	if err != nil {
		return nil, false
	}
	var out []models.Result
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (s *Store) Set(ctx context.Context, query string, results []models.Result, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	s.client.Set(ctx, key(query), raw, ttl)
}
