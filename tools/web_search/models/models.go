package models

import "errors"

// ErrBadCredential marks a provider response indicating the API key is out of
// quota or rejected. The rotation layer reacts by invalidating the key.
var ErrBadCredential = errors.New("search credential rejected")

// Result is one normalized search hit. A Result with an empty URL is an
// answer-box / knowledge-panel summary supplied by the engine itself and is
// treated as a top-priority, unranked item. Content is populated once the
// page has been fetched and summarized.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"summ"`
	Content string `json:"content,omitempty"`
	Date    string `json:"date,omitempty"`
}
