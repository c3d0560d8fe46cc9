package graph

import (
	"errors"
	"testing"
)

func TestAddNodeIdempotent(t *testing.T) {
	g := New()
	g.AddRoot("who won the 2022 world cup and who scored in the final?")

	if _, err := g.AddNode("who won the 2022 world cup?"); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.AddEdge(RootName, "who won the 2022 world cup?"); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if _, err := g.AddNode("who won the 2022 world cup?"); err != nil {
		t.Fatalf("AddNode (repeat): %v", err)
	}
	if err := g.AddEdge(RootName, "who won the 2022 world cup?"); err != nil {
		t.Fatalf("AddEdge (repeat): %v", err)
	}

	trace := g.Trace()
	if len(trace) != 2 {
		t.Fatalf("expected root + one node, got %d entries", len(trace))
	}
	if got := len(trace[0].Edges); got != 1 {
		t.Fatalf("expected one deduplicated edge from root, got %d", got)
	}
}

func TestAddNodeReturnsResolvedAncestorsInOrder(t *testing.T) {
	g := New()
	g.AddRoot("root question")

	for _, q := range []string{"q1", "q2", "q3"} {
		if _, err := g.AddNode(q); err != nil {
			t.Fatalf("AddNode(%s): %v", q, err)
		}
	}
	if err := g.Resolve("q1", "a1", nil); err != nil {
		t.Fatalf("Resolve q1: %v", err)
	}
	if err := g.Resolve("q3", "a3", nil); err != nil {
		t.Fatalf("Resolve q3: %v", err)
	}

	resolved, err := g.AddNode("q4")
	if err != nil {
		t.Fatalf("AddNode(q4): %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected 2 resolved ancestors, got %d", len(resolved))
	}
	if resolved[0].Question != "q1" || resolved[0].Answer != "a1" {
		t.Fatalf("unexpected first ancestor: %+v", resolved[0])
	}
	if resolved[1].Question != "q3" || resolved[1].Answer != "a3" {
		t.Fatalf("unexpected second ancestor: %+v", resolved[1])
	}
}

func TestResolveInvalidState(t *testing.T) {
	g := New()
	g.AddRoot("root")
	if _, err := g.AddNode("q1"); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	if err := g.Resolve("missing", "a", nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for unknown node, got %v", err)
	}
	if err := g.Resolve("q1", "a", map[int]Ref{1: {URL: "https://example.com"}}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := g.Resolve("q1", "again", nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for double resolve, got %v", err)
	}

	n, ok := g.Node("q1")
	if !ok || n.Answer == nil || *n.Answer != "a" {
		t.Fatalf("unexpected node after resolve: %+v", n)
	}
	if n.LocalRefs[1].URL != "https://example.com" {
		t.Fatalf("local refs not stored: %+v", n.LocalRefs)
	}
}

func TestAddEdgeRequiresParent(t *testing.T) {
	g := New()
	g.AddRoot("root")
	if err := g.AddEdge("ghost", "child"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestTerminalClosesGraph(t *testing.T) {
	g := New()
	g.AddRoot("root")
	if _, err := g.AddNode("q1"); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	g.AddTerminal()

	if _, err := g.AddNode("q2"); !errors.Is(err, ErrGraphClosed) {
		t.Fatalf("expected ErrGraphClosed, got %v", err)
	}

	g.Reset()
	if _, err := g.AddNode("q2"); err != nil {
		t.Fatalf("AddNode after reset: %v", err)
	}
	if len(g.Trace()) != 1 {
		t.Fatalf("expected reset graph to contain only the new node")
	}
}

func TestRecordSearchStep(t *testing.T) {
	g := New()
	g.AddRoot("root")
	if _, err := g.AddNode("q1"); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.RecordSearchStep("q1", "some query", nil); err != nil {
		t.Fatalf("RecordSearchStep: %v", err)
	}
	if err := g.RecordSearchStep("missing", "q", nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	n, _ := g.Node("q1")
	if len(n.Memory) != 1 || n.Memory[0].Query != "some query" {
		t.Fatalf("unexpected memory: %+v", n.Memory)
	}
	if n.Answer != nil {
		t.Fatalf("RecordSearchStep must not set the answer")
	}
}
