package utils

import (
	"errors"
	"testing"
)

func TestParseLooseJSONPlain(t *testing.T) {
	out, err := ParseLooseJSON(`{"actions":"final_response","content":"done"}`)
	if err != nil {
		t.Fatalf("ParseLooseJSON: %v", err)
	}
	if out["actions"] != "final_response" {
		t.Fatalf("unexpected actions: %v", out["actions"])
	}
}

func TestParseLooseJSONFenced(t *testing.T) {
	raw := "Here is the plan:\n```json\n{\"actions\": \"extract_problems\", \"content\": [\"q1\", \"q2\"]}\n```\nLet me know."
	out, err := ParseLooseJSON(raw)
	if err != nil {
		t.Fatalf("ParseLooseJSON: %v", err)
	}
	if got := StringList(out["content"]); len(got) != 2 || got[0] != "q1" {
		t.Fatalf("unexpected content: %#v", got)
	}
}

func TestParseLooseJSONEmbeddedObject(t *testing.T) {
	raw := `The answer follows. {"answer": "Paris is the capital [[1]]"} trailing words`
	out, err := ParseLooseJSON(raw)
	if err != nil {
		t.Fatalf("ParseLooseJSON: %v", err)
	}
	if out["answer"] != "Paris is the capital [[1]]" {
		t.Fatalf("unexpected answer: %v", out["answer"])
	}
}

func TestParseLooseJSONArrayWrapper(t *testing.T) {
	out, err := ParseLooseJSON(`[{"query": ["a"]}]`)
	if err != nil {
		t.Fatalf("ParseLooseJSON: %v", err)
	}
	if got := StringList(out["query"]); len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected query: %#v", got)
	}
}

func TestParseLooseJSONRejectsProse(t *testing.T) {
	if _, err := ParseLooseJSON("no structured data here"); !errors.Is(err, ErrNotJSON) {
		t.Fatalf("expected ErrNotJSON, got %v", err)
	}
}

func TestStripThinkTags(t *testing.T) {
	got := StripThinkTags("<think>internal chain</think>actual answer")
	if got != "actual answer" {
		t.Fatalf("StripThinkTags = %q", got)
	}
}

func TestStringListScalar(t *testing.T) {
	if got := StringList("solo"); len(got) != 1 || got[0] != "solo" {
		t.Fatalf("StringList = %#v", got)
	}
}
