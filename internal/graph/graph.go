package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	search_models "github.com/mohammad-safakhou/searchagent/tools/web_search/models"
)

var (
	// ErrInvalidState marks a structural misuse of the graph: resolving an
	// unknown node, resolving twice, or hanging an edge off a missing parent.
	ErrInvalidState = errors.New("invalid graph state")
	// ErrGraphClosed marks node insertion after the terminal node.
	ErrGraphClosed = errors.New("graph is closed")
)

// Kind discriminates the three node roles.
type Kind string

const (
	KindRoot        Kind = "root"
	KindSubQuestion Kind = "subquestion"
	KindTerminal    Kind = "terminal"
)

// RootName and TerminalName are the reserved node names.
const (
	RootName     = "root"
	TerminalName = "response"
)

// Ref is one citation target.
type Ref struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// SearchStep is one recorded search round inside a node's resolution.
type SearchStep struct {
	Query   string                 `json:"query"`
	Results []search_models.Result `json:"results"`
}

// QA is a resolved (question, answer) pair handed to later sub-questions as
// prior context.
type QA struct {
	Question string
	Answer   string
}

// Node is one graph vertex. Answer stays nil until Resolve succeeds and is
// set at most once.
type Node struct {
	Name      string       `json:"name"`
	Kind      Kind         `json:"kind"`
	Content   string       `json:"content,omitempty"`
	Answer    *string      `json:"answer,omitempty"`
	LocalRefs map[int]Ref  `json:"local_refs,omitempty"`
	Memory    []SearchStep `json:"memory,omitempty"`
}

// Edge connects a parent to a child sub-question.
type Edge struct {
	ID string `json:"id"`
	To string `json:"to"`
}

// Graph is the session-scoped evidence graph: one node per sub-question plus
// a root and a terminal node. Node iteration follows insertion order, which
// later sub-questions rely on for ancestor context.
type Graph struct {
	mu        sync.Mutex
	order     []string
	nodes     map[string]*Node
	adjacency map[string][]Edge
	closed    bool
}

func New() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		adjacency: make(map[string][]Edge),
	}
}

// AddRoot creates the root node holding the original question text.
func (g *Graph) AddRoot(content string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[RootName]; ok {
		return
	}
	g.insert(&Node{Name: RootName, Kind: KindRoot, Content: content})
}

// AddNode creates a sub-question node if absent; re-adding an existing name
// is a no-op. It returns the (question, answer) pairs of every already
// resolved sub-question in insertion order, excluding the root, so the caller
// can feed earlier answers into the new node's resolution.
func (g *Graph) AddNode(name string) ([]QA, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, fmt.Errorf("add node %q: %w", name, ErrGraphClosed)
	}
	if _, ok := g.nodes[name]; !ok {
		g.insert(&Node{Name: name, Kind: KindSubQuestion, Content: name})
	}

	var resolved []QA
	for _, n := range g.ordered() {
		if n.Kind != KindSubQuestion || n.Answer == nil || n.Name == name {
			continue
		}
		resolved = append(resolved, QA{Question: n.Content, Answer: *n.Answer})
	}
	return resolved, nil
}

// AddEdge links parent to child. The parent must already exist; duplicate
// (parent, child) pairs collapse to one edge.
func (g *Graph) AddEdge(parent, child string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[parent]; !ok {
		return fmt.Errorf("add edge from unknown node %q: %w", parent, ErrInvalidState)
	}
	for _, e := range g.adjacency[parent] {
		if e.To == child {
			return nil
		}
	}
	g.adjacency[parent] = append(g.adjacency[parent], Edge{ID: uuid.NewString(), To: child})
	return nil
}

// RecordSearchStep appends search metadata to a node's memory. It never
// touches the node's answer.
func (g *Graph) RecordSearchStep(name, query string, results []search_models.Result) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[name]
	if !ok {
		return fmt.Errorf("record step on unknown node %q: %w", name, ErrInvalidState)
	}
	n.Memory = append(n.Memory, SearchStep{Query: query, Results: results})
	return nil
}

// Resolve sets a node's answer and citation map, once.
func (g *Graph) Resolve(name, answer string, refs map[int]Ref) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[name]
	if !ok {
		return fmt.Errorf("resolve unknown node %q: %w", name, ErrInvalidState)
	}
	if n.Answer != nil {
		return fmt.Errorf("node %q already resolved: %w", name, ErrInvalidState)
	}
	n.Answer = &answer
	n.LocalRefs = refs
	return nil
}

// AddTerminal closes the graph with the terminal node. Further AddNode calls
// fail with ErrGraphClosed.
func (g *Graph) AddTerminal() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.insert(&Node{Name: TerminalName, Kind: KindTerminal})
	g.closed = true
}

// Reset clears all nodes and edges, reopening the graph for a new question.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.order = nil
	g.nodes = make(map[string]*Node)
	g.adjacency = make(map[string][]Edge)
	g.closed = false
}

// Node returns a copy of the named node.
func (g *Graph) Node(name string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[name]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// TraceNode is one entry of the audit snapshot.
type TraceNode struct {
	Node  Node   `json:"node"`
	Edges []Edge `json:"edges,omitempty"`
}

// Trace snapshots the whole graph in insertion order for audit output.
func (g *Graph) Trace() []TraceNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]TraceNode, 0, len(g.order))
	for _, n := range g.ordered() {
		t := TraceNode{Node: *n}
		t.Edges = append(t.Edges, g.adjacency[n.Name]...)
		out = append(out, t)
	}
	return out
}

// insert assumes the caller holds the lock and the name is absent.
func (g *Graph) insert(n *Node) {
	g.nodes[n.Name] = n
	g.order = append(g.order, n.Name)
	if _, ok := g.adjacency[n.Name]; !ok {
		g.adjacency[n.Name] = nil
	}
}

func (g *Graph) ordered() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name])
	}
	return out
}
