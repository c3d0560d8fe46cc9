package reader

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/searchagent/internal/cache"
	"github.com/mohammad-safakhou/searchagent/provider"
	provider_models "github.com/mohammad-safakhou/searchagent/provider/models"
	fetch_models "github.com/mohammad-safakhou/searchagent/tools/web_fetch/models"
	search_models "github.com/mohammad-safakhou/searchagent/tools/web_search/models"
	"github.com/mohammad-safakhou/searchagent/utils"
)

// Fetcher retrieves one page's extracted text.
type Fetcher interface {
	Exec(ctx context.Context, url string) (fetch_models.Result, error)
}

// ContentCache is the durable per-URL content store the pipeline reads
// through and writes through.
type ContentCache interface {
	GetContent(url string, forceRefresh bool) (cache.Entry, bool)
	StoreContent(url string, entry cache.Entry) error
	StoreFailed(url string, cause error)
}

// Options tune the pipeline. Zero values fall back to the defaults the
// pipeline was sized for.
type Options struct {
	Sampling      provider_models.Sampling
	Concurrency   int           // fetch and summarize pool size
	FetchTimeout  time.Duration // per-URL fetch bound
	SummTimeout   time.Duration // per relevance/extract task bound
	ExtractWindow int           // chars per extraction window
	TruncateAbove int           // page text longer than this gets truncated
	TruncateTo    int           // truncation target
	ChunkSize     int           // cached chunk size
	Logger        *log.Logger
}

func (o *Options) fill() {
	if o.Concurrency <= 0 {
		o.Concurrency = 20
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	if o.SummTimeout <= 0 {
		o.SummTimeout = 10 * time.Second
	}
	if o.ExtractWindow <= 0 {
		o.ExtractWindow = 16192
	}
	if o.TruncateAbove <= 0 {
		o.TruncateAbove = 128000
	}
	if o.TruncateTo <= 0 {
		o.TruncateTo = 64000
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 512
	}
	if o.Logger == nil {
		o.Logger = log.New(os.Stderr, "[READER] ", log.LstdFlags)
	}
}

// Reader is the fetch/summarize/extract pipeline: it turns raw search hits
// into per-URL content relevant to the question being resolved, reading and
// writing through the content cache.
type Reader struct {
	provider provider.Provider
	fetcher  Fetcher
	cache    ContentCache
	opts     Options
}

func New(p provider.Provider, fetcher Fetcher, contentCache ContentCache, opts Options) *Reader {
	opts.fill()
	return &Reader{provider: p, fetcher: fetcher, cache: contentCache, opts: opts}
}

// Summarize runs the full pipeline over one batch of hits keyed by result
// id: partition by cache, fetch misses concurrently, clean and chunk fetched
// text, write it through the cache, then extract per-URL content relevant to
// the question. A failed URL only loses its own content; siblings proceed.
func (r *Reader) Summarize(ctx context.Context, hits map[int]search_models.Result, question, topic, intent string, forceRefresh bool) (map[int]search_models.Result, error) {
	idByURL := make(map[string]int, len(hits))
	var cachedEntries []cache.Entry
	var needsFetch []string
	for id, hit := range hits {
		if hit.URL == "" {
			continue // answer-box item, nothing to fetch
		}
		idByURL[hit.URL] = id
		if entry, ok := r.cache.GetContent(hit.URL, forceRefresh); ok {
			cachedEntries = append(cachedEntries, entry)
			continue
		}
		needsFetch = append(needsFetch, hit.URL)
	}
	sort.Strings(needsFetch)

	fetched := r.fetchAll(ctx, needsFetch, hits, idByURL)
	cleaned := r.extractClean(ctx, fetched)
	for _, entry := range cleaned {
		if err := r.cache.StoreContent(entry.URL, entry); err != nil {
			r.opts.Logger.Printf("cache write for %s: %v", entry.URL, err)
		}
	}
	entries := append(cleaned, cachedEntries...)

	relevant := r.extractRelevant(ctx, entries, question, topic, intent)

	out := make(map[int]search_models.Result, len(hits))
	for id, hit := range hits {
		hit.Content = relevant[hit.URL]
		out[id] = hit
	}
	return out, nil
}

// fetchAll retrieves the missing URLs through a bounded pool with one
// timeout per URL. Failures go to the failure index and are dropped.
func (r *Reader) fetchAll(ctx context.Context, urls []string, hits map[int]search_models.Result, idByURL map[string]int) []cache.Entry {
	if len(urls) == 0 {
		return nil
	}
	var (
		mu      sync.Mutex
		entries []cache.Entry
	)
	eg := &errgroup.Group{}
	eg.SetLimit(r.opts.Concurrency)
	for _, url := range urls {
		url := url
		eg.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
			defer cancel()
			page, err := r.fetcher.Exec(fctx, url)
			if err != nil {
				r.cache.StoreFailed(url, err)
				return nil
			}
			title := page.Title
			if title == "" {
				title = hits[idByURL[url]].Title
			}
			mu.Lock()
			entries = append(entries, cache.Entry{URL: url, Title: title, Date: page.Date, Chunks: page.Chunks})
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return entries
}

// extractClean strips boilerplate from fetched pages through the model's
// extract mode in sequential windows. Window results are joined in window
// order regardless of completion order; a failed window falls back to its
// raw text.
func (r *Reader) extractClean(ctx context.Context, fetched []cache.Entry) []cache.Entry {
	type window struct {
		page int
		idx  int
		text string
	}
	var windows []window
	pageWindows := make([][]string, len(fetched))
	for i, entry := range fetched {
		text := joinChunks(entry.Chunks)
		if len(text) > r.opts.TruncateAbove {
			text = text[:r.opts.TruncateTo]
		}
		var spans []string
		for start := 0; start < len(text); start += r.opts.ExtractWindow {
			end := start + r.opts.ExtractWindow
			if end > len(text) {
				end = len(text)
			}
			spans = append(spans, text[start:end])
		}
		pageWindows[i] = make([]string, len(spans))
		for j, span := range spans {
			windows = append(windows, window{page: i, idx: j, text: span})
		}
	}

	eg := &errgroup.Group{}
	eg.SetLimit(r.opts.Concurrency)
	for _, w := range windows {
		w := w
		eg.Go(func() error {
			text, err := r.complete(ctx, extractPrompt, w.text)
			if err != nil {
				r.opts.Logger.Printf("extract window %d of %s: %v", w.idx, fetched[w.page].URL, err)
				text = w.text
			}
			pageWindows[w.page][w.idx] = text
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]cache.Entry, 0, len(fetched))
	for i, entry := range fetched {
		entry.Chunks = chunkContent(strings.Join(pageWindows[i], ""), r.opts.ChunkSize)
		out = append(out, entry)
	}
	return out
}

// extractRelevant asks the model, per URL, for the content relevant to the
// question. A timeout or error empties that URL's content only.
func (r *Reader) extractRelevant(ctx context.Context, entries []cache.Entry, question, topic, intent string) map[string]string {
	var mu sync.Mutex
	relevant := make(map[string]string, len(entries))
	system := fmt.Sprintf(relevancePrompt, topic, question, intent)

	eg := &errgroup.Group{}
	eg.SetLimit(r.opts.Concurrency)
	for _, entry := range entries {
		entry := entry
		if len(entry.Chunks) == 0 {
			continue
		}
		eg.Go(func() error {
			chunked := renderChunks(entry.Chunks)
			if len(chunked) > r.opts.ExtractWindow {
				chunked = chunked[:r.opts.ExtractWindow]
			}
			user := fmt.Sprintf(pageInputPrompt, entry.Date, entry.Title, chunked)
			text, err := r.complete(ctx, system, user)
			if err != nil {
				r.opts.Logger.Printf("relevance extraction for %s: %v", entry.URL, err)
				mu.Lock()
				relevant[entry.URL] = ""
				mu.Unlock()
				return nil
			}
			if parsed, err := utils.ParseLooseJSON(text); err == nil {
				text = utils.Str(parsed["related_information"])
			} else {
				text = strings.TrimSpace(utils.StripThinkTags(text))
			}
			mu.Lock()
			relevant[entry.URL] = text
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return relevant
}

// complete runs one bounded model call.
func (r *Reader) complete(ctx context.Context, system, user string) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, r.opts.SummTimeout)
	defer cancel()
	resp, err := r.provider.ChatCompletion(tctx, provider_models.ChatRequest{
		Messages: []provider_models.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Sampling: r.opts.Sampling,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func joinChunks(chunks map[int]string) string {
	keys := make([]int, 0, len(chunks))
	for k := range chunks {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(chunks[k])
	}
	return b.String()
}

func renderChunks(chunks map[int]string) string {
	keys := make([]int, 0, len(chunks))
	for k := range chunks {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("Chunk %d:%s", k, chunks[k]))
	}
	return strings.Join(parts, "==========")
}

func chunkContent(text string, size int) map[int]string {
	chunks := make(map[int]string)
	for i, start := 0, 0; start < len(text); i, start = i+1, start+size {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks[i] = text[start:end]
	}
	return chunks
}
