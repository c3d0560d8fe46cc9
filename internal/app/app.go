package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/searchagent/config"
	"github.com/mohammad-safakhou/searchagent/internal/cache"
	"github.com/mohammad-safakhou/searchagent/internal/graph"
	"github.com/mohammad-safakhou/searchagent/internal/planner"
	"github.com/mohammad-safakhou/searchagent/internal/reader"
	"github.com/mohammad-safakhou/searchagent/internal/searcher"
	"github.com/mohammad-safakhou/searchagent/internal/telemetry"
	"github.com/mohammad-safakhou/searchagent/provider"
	provider_models "github.com/mohammad-safakhou/searchagent/provider/models"
	"github.com/mohammad-safakhou/searchagent/tools/web_fetch"
	"github.com/mohammad-safakhou/searchagent/tools/web_search"
	search_models "github.com/mohammad-safakhou/searchagent/tools/web_search/models"
	"github.com/mohammad-safakhou/searchagent/tools/web_search/qcache"
	qcache_inmemory "github.com/mohammad-safakhou/searchagent/tools/web_search/qcache/inmemory"
	qcache_redis "github.com/mohammad-safakhou/searchagent/tools/web_search/qcache/redis"
)

// App wires the research loop's long-lived components: provider clients per
// role, the credential-rotating search layer, the fetch/read pipeline, the
// content cache, and metrics. Per-question state (graph, searcher, planner)
// is built fresh for each Ask.
type App struct {
	Cfg     *config.Config
	Metrics *telemetry.Metrics
	Cache   *cache.Cache

	plannerLLM  provider.Provider
	searcherLLM provider.Provider
	readerLLM   provider.Provider

	search web_search.WebSearcher
	reader *reader.Reader
	logger *log.Logger
}

func New(cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	metrics := telemetry.New()

	llm, err := provider.NewProvider(provider.Client(cfg.LLM.Provider), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("building llm provider: %w", err)
	}

	contentCache, err := cache.New(cfg.Cache.Dir, log.New(logger.Writer(), "[CACHE] ", log.LstdFlags))
	if err != nil {
		return nil, fmt.Errorf("opening content cache: %w", err)
	}

	var queryCache qcache.Store
	switch cfg.Search.CacheStore {
	case "redis":
		queryCache = qcache_redis.NewRedisStore(
			fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			cfg.Redis.Password, cfg.Redis.DB,
		)
	default:
		queryCache = qcache_inmemory.NewInMemoryStore()
	}

	rotator, err := web_search.NewRotator(
		web_search.Provider(cfg.Search.Provider),
		cfg.Search.APIKeys,
		cfg.Search.Blacklist,
		queryCache,
		cfg.Search.CacheTTL,
		cfg.Search.MaxRetries,
		log.New(logger.Writer(), "[SEARCH] ", log.LstdFlags),
	)
	if err != nil {
		return nil, fmt.Errorf("building search rotator: %w", err)
	}

	fetcher, err := web_fetch.NewWebFetcher(
		web_fetch.FetcherType(cfg.Fetch.Fetcher),
		cfg.Fetch.Timeout, cfg.Fetch.MaxChars, cfg.Fetch.ChunkSize,
	)
	if err != nil {
		return nil, fmt.Errorf("building web fetcher: %w", err)
	}

	a := &App{
		Cfg:         cfg,
		Metrics:     metrics,
		Cache:       contentCache,
		plannerLLM:  countLLM(llm, metrics, "planner"),
		searcherLLM: countLLM(llm, metrics, "searcher"),
		readerLLM:   countLLM(llm, metrics, "reader"),
		search:      &countingSearch{inner: rotator, metrics: metrics},
		logger:      logger,
	}
	a.reader = reader.New(a.readerLLM, fetcher, &instrumentedCache{inner: contentCache, metrics: metrics}, reader.Options{
		Sampling:      samplingFor(cfg, "reader"),
		Concurrency:   cfg.Reader.Concurrency,
		FetchTimeout:  cfg.Fetch.Timeout,
		SummTimeout:   cfg.Reader.SummTimeout,
		ExtractWindow: cfg.Reader.ExtractWindow,
		TruncateAbove: cfg.Reader.TruncateAbove,
		TruncateTo:    cfg.Reader.TruncateTo,
		ChunkSize:     cfg.Fetch.ChunkSize,
		Logger:        log.New(logger.Writer(), "[READER] ", log.LstdFlags),
	})
	return a, nil
}

// Ask answers one top-level question end to end and returns the session
// result. Step events stream through emit as they happen.
func (a *App) Ask(ctx context.Context, question string, emit func(searcher.Step)) (planner.Result, error) {
	started := time.Now()
	g := graph.New()

	s := searcher.New(a.searcherLLM, a.search, a.reader, g, searcher.Options{
		Sampling:     samplingFor(a.Cfg, "searcher"),
		TopK:         a.Cfg.Search.TopK,
		MaxTurns:     a.Cfg.Searcher.MaxTurns,
		ContextLimit: a.Cfg.Searcher.ContextLimit,
		Logger:       log.New(a.logger.Writer(), "[SEARCHER] ", log.LstdFlags),
	})
	p := planner.New(a.plannerLLM, &countingResolver{inner: s, metrics: a.Metrics}, g, planner.Options{
		Sampling: samplingFor(a.Cfg, "planner"),
		MaxTurns: a.Cfg.Planner.MaxTurns,
		Logger:   log.New(a.logger.Writer(), "[PLANNER] ", log.LstdFlags),
	})

	result, err := p.Run(ctx, question, emit)
	a.Metrics.SessionSeconds.Observe(time.Since(started).Seconds())
	return result, err
}

func samplingFor(cfg *config.Config, role string) provider_models.Sampling {
	rc := cfg.LLM.Roles[role]
	return provider_models.Sampling{
		Model:             rc.Model,
		Temperature:       rc.Temperature,
		TopP:              rc.TopP,
		TopK:              rc.TopK,
		RepetitionPenalty: rc.RepetitionPenalty,
		MaxTokens:         rc.MaxTokens,
	}
}

// countLLM wraps a provider so each request lands in the role counter.
func countLLM(inner provider.Provider, metrics *telemetry.Metrics, role string) provider.Provider {
	return &countingProvider{inner: inner, metrics: metrics, role: role}
}

type countingProvider struct {
	inner   provider.Provider
	metrics *telemetry.Metrics
	role    string
}

func (p *countingProvider) ChatCompletion(ctx context.Context, req provider_models.ChatRequest) (provider_models.ChatResponse, error) {
	p.metrics.LLMRequests.WithLabelValues(p.role).Inc()
	return p.inner.ChatCompletion(ctx, req)
}

type countingSearch struct {
	inner   web_search.WebSearcher
	metrics *telemetry.Metrics
}

func (s *countingSearch) Discover(ctx context.Context, q string, k int) ([]search_models.Result, error) {
	s.metrics.Searches.Inc()
	return s.inner.Discover(ctx, q, k)
}

type countingResolver struct {
	inner   planner.SubQuestionResolver
	metrics *telemetry.Metrics
}

func (r *countingResolver) Resolve(ctx context.Context, question string, history []graph.QA, emit func(searcher.Step)) (string, map[int]graph.Ref, error) {
	r.metrics.SubQuestions.Inc()
	return r.inner.Resolve(ctx, question, history, emit)
}

// instrumentedCache counts hits, misses and failures on the content cache.
type instrumentedCache struct {
	inner   *cache.Cache
	metrics *telemetry.Metrics
}

func (c *instrumentedCache) GetContent(url string, forceRefresh bool) (cache.Entry, bool) {
	entry, ok := c.inner.GetContent(url, forceRefresh)
	if ok {
		c.metrics.CacheHits.Inc()
	} else {
		c.metrics.CacheMisses.Inc()
	}
	return entry, ok
}

func (c *instrumentedCache) StoreContent(url string, entry cache.Entry) error {
	return c.inner.StoreContent(url, entry)
}

func (c *instrumentedCache) StoreFailed(url string, cause error) {
	c.metrics.FetchFailures.Inc()
	c.inner.StoreFailed(url, cause)
}
