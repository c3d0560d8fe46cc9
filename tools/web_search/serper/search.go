package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/searchagent/tools/web_search/models"
	"github.com/mohammad-safakhou/searchagent/utils"
)

type Search struct {
	ApiKey    string
	Blacklist []string
}

func (s Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": q, "num": k}
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", "https://google.serper.dev/search", strings.NewReader(string(body)))
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("serper status %d: %w", resp.StatusCode, models.ErrBadCredential)
	}
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return s.parseResponse(raw, k), nil
}

// parseResponse normalizes serper's provider-specific fields. Answer-box and
// knowledge-graph hits come first; an answer box has no URL of its own.
func (s Search) parseResponse(raw map[string]any, k int) []models.Result {
	var out []models.Result

	if ab, ok := raw["answerBox"].(map[string]any); ok {
		snippet := utils.Str(ab["answer"])
		if snippet == "" {
			snippet = strings.ReplaceAll(utils.Str(ab["snippet"]), "\n", " ")
		}
		if snippet == "" {
			snippet = utils.Str(ab["snippetHighlighted"])
		}
		if snippet != "" {
			out = append(out, models.Result{Snippet: snippet})
		}
	}

	if kg, ok := raw["knowledgeGraph"].(map[string]any); ok {
		description := utils.Str(kg["description"])
		var attrs []string
		if m, ok := kg["attributes"].(map[string]any); ok {
			for attr, val := range m {
				attrs = append(attrs, fmt.Sprintf("%s: %s", attr, utils.Str(val)))
			}
		}
		snippet := description
		if len(attrs) > 0 {
			snippet = fmt.Sprintf("%s. %s", description, strings.Join(attrs, ". "))
		}
		if snippet != "" {
			out = append(out, models.Result{
				URL:     utils.Str(kg["descriptionLink"]),
				Title:   fmt.Sprintf("%s: %s.", utils.Str(kg["title"]), utils.Str(kg["type"])),
				Snippet: snippet,
			})
		}
	}

	if items, ok := raw["organic"].([]any); ok {
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, models.Result{
				Title:   utils.Str(m["title"]),
				URL:     utils.Str(m["link"]),
				Snippet: utils.Str(m["snippet"]),
			})
		}
	}

	filtered := out[:0]
	count := 0
	for _, r := range out {
		if s.blacklisted(r.URL) {
			continue
		}
		filtered = append(filtered, r)
		count++
		if count >= k {
			break
		}
	}
	return filtered
}

func (s Search) blacklisted(url string) bool {
	for _, domain := range s.Blacklist {
		if domain != "" && strings.Contains(url, domain) {
			return true
		}
	}
	return false
}
