package reader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/searchagent/internal/cache"
	provider_models "github.com/mohammad-safakhou/searchagent/provider/models"
	fetch_models "github.com/mohammad-safakhou/searchagent/tools/web_fetch/models"
	search_models "github.com/mohammad-safakhou/searchagent/tools/web_search/models"
)

// echoProvider answers extract calls with the raw window text and relevance
// calls with a fixed JSON payload.
type echoProvider struct{}

func (echoProvider) ChatCompletion(_ context.Context, req provider_models.ChatRequest) (provider_models.ChatResponse, error) {
	if req.Messages[0].Content == extractPrompt {
		return provider_models.ChatResponse{Text: req.Messages[1].Content}, nil
	}
	return provider_models.ChatResponse{Text: `{"think": "t", "related_information": "relevant facts"}`}, nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []string
	timeout map[string]bool
	pages   map[string]string
}

func (f *fakeFetcher) Exec(ctx context.Context, url string) (fetch_models.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if f.timeout[url] {
		<-ctx.Done()
		return fetch_models.Result{}, ctx.Err()
	}
	text := f.pages[url]
	if text == "" {
		text = "page body of " + url
	}
	return fetch_models.Result{
		URL:    url,
		Title:  "title of " + url,
		Date:   "2024-05-01",
		Chunks: map[int]string{0: text},
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestReader(t *testing.T, fetcher *fakeFetcher, opts Options) (*Reader, *cache.Cache) {
	t.Helper()
	c, err := cache.New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	return New(echoProvider{}, fetcher, c, opts), c
}

func TestSummarizeIsolatesFetchFailures(t *testing.T) {
	fetcher := &fakeFetcher{timeout: map[string]bool{"https://three.example.com": true}}
	r, c := newTestReader(t, fetcher, Options{FetchTimeout: 30 * time.Millisecond})

	hits := make(map[int]search_models.Result)
	for i := 1; i <= 5; i++ {
		url := fmt.Sprintf("https://%s.example.com", []string{"one", "two", "three", "four", "five"}[i-1])
		hits[i] = search_models.Result{URL: url, Title: fmt.Sprintf("t%d", i), Snippet: "s"}
	}

	out, err := r.Summarize(context.Background(), hits, "question", "topic", "intent", false)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("expected all 5 ids back, got %d", len(out))
	}

	succeeded := 0
	for id, res := range out {
		if res.URL == "https://three.example.com" {
			if res.Content != "" {
				t.Fatalf("timed-out URL must carry empty content, got %q", res.Content)
			}
			continue
		}
		if res.Content != "relevant facts" {
			t.Fatalf("id %d missing extracted content: %+v", id, res)
		}
		succeeded++
	}
	if succeeded != 4 {
		t.Fatalf("expected 4 successful results, got %d", succeeded)
	}

	failed := c.FailedURLs()
	if len(failed) != 1 {
		t.Fatalf("expected exactly one failure record, got %+v", failed)
	}
	if _, ok := failed["https://three.example.com"]; !ok {
		t.Fatalf("wrong failure record: %+v", failed)
	}
}

func TestSummarizeReadsThroughCache(t *testing.T) {
	fetcher := &fakeFetcher{}
	r, c := newTestReader(t, fetcher, Options{})

	url := "https://cached.example.com"
	if err := c.StoreContent(url, cache.Entry{
		URL:    url,
		Title:  "Cached",
		Chunks: map[int]string{0: "stored body"},
	}); err != nil {
		t.Fatalf("StoreContent: %v", err)
	}

	hits := map[int]search_models.Result{1: {URL: url, Title: "Cached", Snippet: "s"}}
	out, err := r.Summarize(context.Background(), hits, "q", "topic", "i", false)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if fetcher.callCount() != 0 {
		t.Fatalf("cache hit must not invoke the fetcher, got %d calls", fetcher.callCount())
	}
	if out[1].Content != "relevant facts" {
		t.Fatalf("cached content not summarized: %+v", out[1])
	}

	// forceRefresh bypasses the hit and refetches.
	if _, err := r.Summarize(context.Background(), hits, "q", "topic", "i", true); err != nil {
		t.Fatalf("Summarize (refresh): %v", err)
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("force refresh must invoke the fetcher once, got %d calls", fetcher.callCount())
	}
}

func TestSummarizeWritesThroughCache(t *testing.T) {
	fetcher := &fakeFetcher{}
	r, c := newTestReader(t, fetcher, Options{})

	url := "https://fresh.example.com"
	hits := map[int]search_models.Result{1: {URL: url, Title: "Fresh", Snippet: "s"}}
	if _, err := r.Summarize(context.Background(), hits, "q", "topic", "i", false); err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	entry, ok := c.GetContent(url, false)
	if !ok {
		t.Fatalf("expected write-through cache entry for %s", url)
	}
	if entry.Date != "2024-05-01" || entry.Title != "title of "+url {
		t.Fatalf("unexpected cached entry: %+v", entry)
	}
}

func TestExtractWindowsJoinInOrder(t *testing.T) {
	body := "abcdefghijklmnopqrstuvwxyz0123456789"
	fetcher := &fakeFetcher{pages: map[string]string{"https://long.example.com": body}}
	// A 10-char window splits the page into 4 windows handled concurrently.
	r, c := newTestReader(t, fetcher, Options{ExtractWindow: 10, ChunkSize: 8})

	hits := map[int]search_models.Result{1: {URL: "https://long.example.com", Title: "Long", Snippet: "s"}}
	if _, err := r.Summarize(context.Background(), hits, "q", "topic", "i", false); err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	entry, ok := c.GetContent("https://long.example.com", false)
	if !ok {
		t.Fatalf("expected cache entry")
	}
	var joined strings.Builder
	for i := 0; i < len(entry.Chunks); i++ {
		joined.WriteString(entry.Chunks[i])
	}
	if joined.String() != body {
		t.Fatalf("windows joined out of order:\n got %q\nwant %q", joined.String(), body)
	}
}

func TestSummarizeSkipsAnswerBox(t *testing.T) {
	fetcher := &fakeFetcher{}
	r, _ := newTestReader(t, fetcher, Options{})

	hits := map[int]search_models.Result{
		1: {URL: "", Title: "answer box", Snippet: "42 km"},
		2: {URL: "https://page.example.com", Title: "Page", Snippet: "s"},
	}
	out, err := r.Summarize(context.Background(), hits, "q", "topic", "i", false)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out[1].Snippet != "42 km" || out[1].Content != "" {
		t.Fatalf("answer box must pass through untouched: %+v", out[1])
	}
	if out[2].Content != "relevant facts" {
		t.Fatalf("regular result not summarized: %+v", out[2])
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("only the real URL should be fetched, got %d calls", fetcher.callCount())
	}
}
