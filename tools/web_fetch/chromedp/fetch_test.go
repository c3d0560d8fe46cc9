package chromedp

import "testing"

func TestChunkContent(t *testing.T) {
	text := make([]byte, 1100)
	for i := range text {
		text[i] = byte('a' + i%26)
	}
	chunks := ChunkContent(string(text), 512)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 512 || len(chunks[1]) != 512 || len(chunks[2]) != 76 {
		t.Fatalf("unexpected chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if chunks[0]+chunks[1]+chunks[2] != string(text) {
		t.Fatalf("chunks do not reassemble the original text")
	}
}

func TestChunkContentEmpty(t *testing.T) {
	if chunks := ChunkContent("", 512); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestFindPublishedDate(t *testing.T) {
	html := `<html><head>
		<meta property="article:published_time" content="2024-03-05T10:30:00Z" />
	</head><body></body></html>`
	if got := findPublishedDate(html); got != "2024-03-05" {
		t.Fatalf("findPublishedDate = %q, want 2024-03-05", got)
	}
}

func TestFindPublishedDateMissing(t *testing.T) {
	if got := findPublishedDate("<html><body>no dates here</body></html>"); got != "" {
		t.Fatalf("expected empty date, got %q", got)
	}
}
