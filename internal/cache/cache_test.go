package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestCache(t *testing.T, dir string) *Cache {
	t.Helper()
	c, err := New(dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestStoreAndGetRoundTrip(t *testing.T) {
	c := newTestCache(t, t.TempDir())

	entry := Entry{
		URL:    "https://example.com/a",
		Title:  "Example A",
		Date:   "2024-01-02",
		Chunks: map[int]string{0: "first chunk", 1: "second chunk"},
	}
	if err := c.StoreContent(entry.URL, entry); err != nil {
		t.Fatalf("StoreContent: %v", err)
	}

	got, ok := c.GetContent(entry.URL, false)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.Title != entry.Title || got.Date != entry.Date {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Chunks[1] != "second chunk" {
		t.Fatalf("chunk mismatch: %+v", got.Chunks)
	}
}

func TestForceRefreshBypassesHit(t *testing.T) {
	c := newTestCache(t, t.TempDir())
	url := "https://example.com/b"
	if err := c.StoreContent(url, Entry{URL: url, Chunks: map[int]string{0: "x"}}); err != nil {
		t.Fatalf("StoreContent: %v", err)
	}
	if _, ok := c.GetContent(url, true); ok {
		t.Fatalf("force refresh should bypass the cache hit")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	url := "https://example.com/c"
	c := newTestCache(t, dir)
	if err := c.StoreContent(url, Entry{URL: url, Title: "C", Chunks: map[int]string{0: "c"}}); err != nil {
		t.Fatalf("StoreContent: %v", err)
	}

	reopened := newTestCache(t, dir)
	got, ok := reopened.GetContent(url, false)
	if !ok || got.Title != "C" {
		t.Fatalf("expected persisted entry after reopen, got ok=%v entry=%+v", ok, got)
	}
}

func TestFailureRecordClearedOnStore(t *testing.T) {
	c := newTestCache(t, t.TempDir())
	url := "https://example.com/d"

	c.StoreFailed(url, errors.New("connection timed out"))
	failed := c.FailedURLs()
	if rec, ok := failed[url]; !ok || rec.Error != "connection timed out" {
		t.Fatalf("expected failure record, got %+v", failed)
	}

	if err := c.StoreContent(url, Entry{URL: url, Chunks: map[int]string{0: "d"}}); err != nil {
		t.Fatalf("StoreContent: %v", err)
	}
	if _, ok := c.FailedURLs()[url]; ok {
		t.Fatalf("failure record should be cleared after a successful store")
	}
}

func TestOneEntryPerURL(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, dir)
	url := "https://example.com/e"

	if err := c.StoreContent(url, Entry{URL: url, Title: "v1", Chunks: map[int]string{0: "old"}}); err != nil {
		t.Fatalf("StoreContent: %v", err)
	}
	if err := c.StoreContent(url, Entry{URL: url, Title: "v2", Chunks: map[int]string{0: "new"}}); err != nil {
		t.Fatalf("StoreContent: %v", err)
	}

	got, ok := c.GetContent(url, false)
	if !ok || got.Title != "v2" || got.Chunks[0] != "new" {
		t.Fatalf("expected refreshed entry, got %+v", got)
	}

	files, err := os.ReadDir(filepath.Join(dir, "content"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected exactly one content file per URL, got %d", len(files))
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, dir)
	url := "https://example.com/f"
	if err := c.StoreContent(url, Entry{URL: url, Chunks: map[int]string{0: "f"}}); err != nil {
		t.Fatalf("StoreContent: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := c.GetContent(url, false); ok {
		t.Fatalf("expected miss after clear")
	}
}
