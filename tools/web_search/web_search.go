package web_search

import (
	"context"

	"github.com/mohammad-safakhou/searchagent/tools/web_search/brave"
	"github.com/mohammad-safakhou/searchagent/tools/web_search/models"
	"github.com/mohammad-safakhou/searchagent/tools/web_search/serper"
)

type WebSearcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

func NewWebSearcher(provider Provider, apiKey string, blacklist []string) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey, Blacklist: blacklist}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey, Blacklist: blacklist}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
