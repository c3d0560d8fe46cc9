package qcache

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/searchagent/tools/web_search/models"
)

// Store caches search results keyed by the literal query string, absorbing
// duplicate queries within a burst. Implementations expire entries after the
// TTL passed to Set.
type Store interface {
	Get(ctx context.Context, query string) ([]models.Result, bool)
	Set(ctx context.Context, query string, results []models.Result, ttl time.Duration)
}
