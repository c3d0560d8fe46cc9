package web_fetch

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/searchagent/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/searchagent/tools/web_fetch/models"
)

const (
	DefaultTimeout   = 15 * time.Second
	MaxCharsDefault  = 128000
	ChunkSizeDefault = 512
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

// WebFetcher fetches one URL and returns its extracted, chunked text content
// together with a best-effort publication date.
type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	ChromedpFetcherType FetcherType = "chromedp"
)

func NewWebFetcher(fetcherType FetcherType, timeout time.Duration, maxChars, chunkSize int) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}
	if chunkSize <= 0 {
		chunkSize = ChunkSizeDefault
	}

	switch fetcherType {
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: timeout, MaxChars: maxChars, ChunkSize: chunkSize}, nil
	default:
		return nil, &Error{"unsupported fetcher type"}
	}
}
