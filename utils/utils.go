package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

func UrlQuery(s string) string { return strings.ReplaceAll(s, " ", "+") }

func Str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// ErrNotJSON signals that a model response carried no parseable JSON object.
var ErrNotJSON = errors.New("no JSON object in response")

// ParseLooseJSON is the single best-effort boundary between raw model output
// and structured data. It tolerates markdown code fences, leading prose and
// trailing garbage around a JSON object. Callers receive either a decoded
// map or ErrNotJSON; nothing downstream ever sees half-repaired text.
func ParseLooseJSON(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(StripThinkTags(raw))
	if raw == "" {
		return nil, ErrNotJSON
	}

	candidates := []string{raw}
	if fenced := stripCodeFence(raw); fenced != raw {
		candidates = append([]string{fenced}, candidates...)
	}
	if obj := firstJSONObject(raw); obj != "" {
		candidates = append(candidates, obj)
	}

	for _, c := range candidates {
		var out map[string]any
		if err := json.Unmarshal([]byte(c), &out); err == nil {
			return out, nil
		}
		// Models occasionally wrap the object in a single-element array.
		var arr []map[string]any
		if err := json.Unmarshal([]byte(c), &arr); err == nil && len(arr) > 0 {
			return arr[0], nil
		}
	}
	return nil, ErrNotJSON
}

// StripThinkTags removes <think>...</think> reasoning spans some models emit
// before their actual answer.
func StripThinkTags(text string) string {
	if idx := strings.LastIndex(text, "</think>"); idx >= 0 {
		return strings.TrimSpace(text[idx+len("</think>"):])
	}
	return text
}

// StringList coerces a decoded JSON value into a list of non-empty strings.
// Accepts a bare string, []string or []any.
func StringList(v any) []string {
	var out []string
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	case []string:
		for _, s := range val {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range val {
			if s := strings.TrimSpace(Str(item)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// firstJSONObject returns the first balanced {...} span in s, respecting
// string literals and escapes.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
