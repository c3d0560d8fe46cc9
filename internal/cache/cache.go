package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is the cached content of one URL. Entries are written wholesale on
// refresh, never mutated in place.
type Entry struct {
	URL    string         `json:"url"`
	Title  string         `json:"title"`
	Date   string         `json:"date"`
	Chunks map[int]string `json:"content"`
}

// FailureRecord notes a URL that could not be fetched. A later successful
// store clears the record.
type FailureRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// Cache is a durable URL-keyed content store. Layout:
//
//	<dir>/content/<md5(url)>.json  one document per cached URL
//	<dir>/url_map.json             URL -> filename index
//	<dir>/failed_urls.json         failure index
//	<dir>/cache_errors.txt         append-only error log
//
// Index documents are rewritten wholesale on each mutation; the writer lock
// serializes those rewrites while page fetches proceed in parallel.
type Cache struct {
	dir        string
	contentDir string
	urlMapPath string
	failedPath string
	errLogPath string
	logger     *log.Logger

	mu     sync.Mutex
	urlMap map[string]string
	failed map[string]FailureRecord
}

// New opens (or creates) a cache directory and loads both indexes.
func New(dir string, logger *log.Logger) (*Cache, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[CACHE] ", log.LstdFlags)
	}
	c := &Cache{
		dir:        dir,
		contentDir: filepath.Join(dir, "content"),
		urlMapPath: filepath.Join(dir, "url_map.json"),
		failedPath: filepath.Join(dir, "failed_urls.json"),
		errLogPath: filepath.Join(dir, "cache_errors.txt"),
		logger:     logger,
		urlMap:     make(map[string]string),
		failed:     make(map[string]FailureRecord),
	}
	if err := os.MkdirAll(c.contentDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	if err := loadJSON(c.urlMapPath, &c.urlMap); err != nil {
		c.logError("failed to load url map: %v", err)
		c.urlMap = make(map[string]string)
	}
	if err := loadJSON(c.failedPath, &c.failed); err != nil {
		c.logError("failed to load failed urls: %v", err)
		c.failed = make(map[string]FailureRecord)
	}
	return c, nil
}

// GetContent reads a cached entry for url. forceRefresh bypasses the hit
// path so the caller re-fetches.
func (c *Cache) GetContent(url string, forceRefresh bool) (Entry, bool) {
	if forceRefresh {
		return Entry{}, false
	}
	c.mu.Lock()
	filename, ok := c.urlMap[url]
	c.mu.Unlock()
	if !ok {
		return Entry{}, false
	}

	var entry Entry
	if err := loadJSON(filepath.Join(c.contentDir, filename), &entry); err != nil {
		c.logError("failed to read cache file %s: %v", filename, err)
		return Entry{}, false
	}
	return entry, true
}

// StoreContent writes an entry through to disk and updates the URL index.
// Any failure record for the URL is cleared.
func (c *Cache) StoreContent(url string, entry Entry) error {
	filename := filenameFor(url)
	if err := writeJSONAtomic(filepath.Join(c.contentDir, filename), entry); err != nil {
		c.logError("failed to store content for %s: %v", url, err)
		return fmt.Errorf("failed to store content: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.urlMap[url] = filename
	if err := writeJSONAtomic(c.urlMapPath, c.urlMap); err != nil {
		c.logError("failed to save url map: %v", err)
		return fmt.Errorf("failed to save url map: %w", err)
	}
	if _, ok := c.failed[url]; ok {
		delete(c.failed, url)
		if err := writeJSONAtomic(c.failedPath, c.failed); err != nil {
			c.logError("failed to save failed urls: %v", err)
		}
	}
	return nil
}

// StoreFailed records a fetch failure for url. Re-recording an already
// failed URL only logs.
func (c *Cache) StoreFailed(url string, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.failed[url]; ok {
		c.logError("%s already recorded as failed", url)
		return
	}
	c.logError("url fetch failed: %s: %v", url, cause)
	c.failed[url] = FailureRecord{Timestamp: time.Now(), Error: cause.Error()}
	if err := writeJSONAtomic(c.failedPath, c.failed); err != nil {
		c.logError("failed to save failed urls: %v", err)
	}
}

// FailedURLs returns a snapshot of the failure index.
func (c *Cache) FailedURLs() map[string]FailureRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]FailureRecord, len(c.failed))
	for k, v := range c.failed {
		out[k] = v
	}
	return out
}

// Clear drops both indexes and deletes all content files.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urlMap = make(map[string]string)
	c.failed = make(map[string]FailureRecord)
	if err := writeJSONAtomic(c.urlMapPath, c.urlMap); err != nil {
		return fmt.Errorf("failed to save url map: %w", err)
	}
	if err := writeJSONAtomic(c.failedPath, c.failed); err != nil {
		return fmt.Errorf("failed to save failed urls: %w", err)
	}
	entries, err := os.ReadDir(c.contentDir)
	if err != nil {
		return fmt.Errorf("failed to list content dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.contentDir, e.Name())); err != nil {
			c.logError("failed to delete cache file %s: %v", e.Name(), err)
		}
	}
	return nil
}

func filenameFor(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:]) + ".json"
}

func loadJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func writeJSONAtomic(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *Cache) logError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Print(msg)
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format(time.RFC3339), msg)
	f, err := os.OpenFile(c.errLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(line)
}
