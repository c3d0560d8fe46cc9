package models

// Result is the extracted content of one fetched page. Chunks maps a
// zero-based chunk index to a fixed-size span of the article text.
type Result struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Chunks   map[int]string `json:"content"`
	Date     string         `json:"date"`
	Status   int            `json:"status"`
	RenderMS int            `json:"render_ms"`
}
