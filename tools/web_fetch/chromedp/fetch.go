package chromedp

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/searchagent/tools/web_fetch/models"
)

type Fetch struct {
	Timeout   time.Duration
	MaxChars  int // Maximum characters to keep from the article text
	ChunkSize int // Size of each content chunk
}

func (f Fetch) Exec(ctx context.Context, pageURL string) (models.Result, error) {
	if strings.TrimSpace(pageURL) == "" {
		return models.Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	// Headless browsing
	html, err := fetchHTML(ctx, pageURL)
	if err != nil {
		return models.Result{}, err
	}

	// Extract content using readability
	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(pageURL))
	if err != nil {
		return models.Result{URL: pageURL, Status: 200, RenderMS: int(time.Since(t0) / time.Millisecond)}, nil
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}

	return models.Result{
		URL:      pageURL,
		Title:    strings.TrimSpace(article.Title),
		Chunks:   ChunkContent(text, f.ChunkSize),
		Date:     findPublishedDate(html),
		Status:   200,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

func fetchHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("SearchAgent/1.0 (+contact@example.com)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

// ChunkContent splits text into fixed-size spans keyed by chunk index.
func ChunkContent(text string, chunkSize int) map[int]string {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	chunks := make(map[int]string)
	for i, start := 0, 0; start < len(text); i, start = i+1, start+chunkSize {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks[i] = text[start:end]
	}
	return chunks
}

var metaDatePattern = regexp.MustCompile(`(?i)<meta[^>]+(?:property|name|itemprop)=["'](?:article:published_time|datePublished|date|pubdate|publishdate|og:updated_time)["'][^>]+content=["']([^"']+)["']`)

// findPublishedDate pulls a publication date out of the page's meta tags.
// Returns an empty string when nothing parseable is found.
func findPublishedDate(html string) string {
	m := metaDatePattern.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	ts, err := dateparse.ParseAny(m[1])
	if err != nil {
		return ""
	}
	return ts.Format("2006-01-02")
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
