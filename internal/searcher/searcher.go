package searcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/searchagent/internal/graph"
	"github.com/mohammad-safakhou/searchagent/provider"
	provider_models "github.com/mohammad-safakhou/searchagent/provider/models"
	"github.com/mohammad-safakhou/searchagent/tools/web_search"
	search_models "github.com/mohammad-safakhou/searchagent/tools/web_search/models"
)

// ErrTurnBudgetExceeded is returned when a sub-question runs out of turns
// without a final answer. The graph node's answer stays nil.
var ErrTurnBudgetExceeded = errors.New("turn budget exceeded without a final answer")

// state tracks the per-sub-question loop. Terminal states end the loop.
type state int

const (
	stateAwaitModel state = iota
	stateDispatchTool
	stateResolved
	stateFailed
)

// SearchProvider discovers ranked results for one query.
type SearchProvider interface {
	Discover(ctx context.Context, q string, k int) ([]search_models.Result, error)
}

// Summarizer runs the fetch/summarize/extract pipeline over one batch of
// hits keyed by result id and returns the same keys with Content filled in.
type Summarizer interface {
	Summarize(ctx context.Context, hits map[int]search_models.Result, question, topic, intent string, forceRefresh bool) (map[int]search_models.Result, error)
}

// StepKind discriminates resolver step events.
type StepKind string

const (
	StepThought       StepKind = "thought"
	StepSearchResults StepKind = "search_results"
	StepFinalAnswer   StepKind = "final_answer"
)

// Step is one observable event from a sub-question's resolution. The stream
// of steps is finite and not restartable.
type Step struct {
	Kind    StepKind                     `json:"kind"`
	Text    string                       `json:"text,omitempty"`
	Results map[int]search_models.Result `json:"results,omitempty"`
	Refs    map[int]graph.Ref            `json:"refs,omitempty"`
}

// Options tune one searcher instance.
type Options struct {
	Sampling     provider_models.Sampling
	TopK         int
	MaxTurns     int
	ContextLimit int
	Logger       *log.Logger
}

// Searcher resolves sub-questions through a bounded tool loop: search, visit
// pages, then emit a cited answer. It owns the running reference offset that
// keeps citation ids globally unique across the session's sub-questions.
type Searcher struct {
	provider   provider.Provider
	search     SearchProvider
	summarizer Summarizer
	graph      *graph.Graph

	sampling     provider_models.Sampling
	topK         int
	maxTurns     int
	contextLimit int
	logger       *log.Logger

	ptr int
}

func New(p provider.Provider, search SearchProvider, summarizer Summarizer, g *graph.Graph, opts Options) *Searcher {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 10
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[SEARCHER] ", log.LstdFlags)
	}
	return &Searcher{
		provider:     p,
		search:       search,
		summarizer:   summarizer,
		graph:        g,
		sampling:     opts.Sampling,
		topK:         opts.TopK,
		maxTurns:     opts.MaxTurns,
		contextLimit: opts.ContextLimit,
		logger:       opts.Logger,
	}
}

// Resolve drives the tool loop for one sub-question until the model emits a
// final answer, the turn budget runs out, or search quota is exhausted. On
// success the node is resolved in the graph and the globally renumbered
// answer plus its reference map are returned.
func (s *Searcher) Resolve(ctx context.Context, question string, history []graph.QA, emit func(Step)) (string, map[int]graph.Ref, error) {
	if emit == nil {
		emit = func(Step) {}
	}
	topic := question
	if root, ok := s.graph.Node(graph.RootName); ok {
		topic = root.Content
	}

	msgs := []provider_models.Message{
		{Role: "system", Content: systemPrompt()},
		{Role: "user", Content: renderContext(question, history, s.contextLimit)},
	}
	accumulated := make(map[int]search_models.Result)

	var (
		answer  string
		refs    map[int]graph.Ref
		failErr error
	)

	st := stateAwaitModel
	for turn := 0; turn < s.maxTurns && st != stateResolved && st != stateFailed; turn++ {
		if turn == s.maxTurns-1 {
			msgs = append(msgs, provider_models.Message{Role: "user", Content: forceFinalPrompt})
		}

		resp, err := s.provider.ChatCompletion(ctx, provider_models.ChatRequest{
			Messages:   msgs,
			Tools:      toolSchemas(),
			ToolChoice: "auto",
			Sampling:   s.sampling,
		})
		if err != nil {
			return "", nil, fmt.Errorf("searcher inference: %w", err)
		}

		if !resp.HasToolCalls() {
			if resp.Text != "" {
				emit(Step{Kind: StepThought, Text: resp.Text})
			}
			msgs = append(msgs, provider_models.Message{Role: "assistant", Content: resp.Text})
			continue
		}

		st = stateDispatchTool
		msgs = append(msgs, provider_models.Message{Role: "assistant", ToolCalls: resp.ToolCalls})

		calls := make([]toolCall, 0, len(resp.ToolCalls))
		wantsEvidence := false
		for _, tc := range resp.ToolCalls {
			c := parseToolCall(tc)
			switch c.(type) {
			case searchCall, visitCall:
				wantsEvidence = true
			}
			calls = append(calls, c)
		}

		for _, c := range calls {
			switch call := c.(type) {
			case searchCall:
				reply, err := s.handleSearch(ctx, call, question, topic, accumulated, emit)
				if err != nil {
					if errors.Is(err, web_search.ErrQuotaExhausted) {
						failErr = fmt.Errorf("resolving %q: %w", question, err)
						st = stateFailed
						break
					}
					s.logger.Printf("search tool failed: %v", err)
					reply = fmt.Sprintf("Search failed: %v. Please retry.", err)
				}
				msgs = append(msgs, toolMessage(call.id, reply))

			case visitCall:
				reply, err := s.handleVisit(ctx, call, question, topic, accumulated, emit)
				if err != nil {
					s.logger.Printf("visit tool failed: %v", err)
					reply = fmt.Sprintf("Page visit failed: %v. Please retry.", err)
				}
				msgs = append(msgs, toolMessage(call.id, reply))

			case finalCall:
				if turn == 0 && wantsEvidence {
					// The model asked for evidence and an answer in the same
					// breath; keep the evidence path and drop the answer.
					msgs = append(msgs, toolMessage(call.id, "Search results are not collected yet. Review them before calling final_answer."))
					continue
				}
				if strings.TrimSpace(call.answer) == "" {
					msgs = append(msgs, toolMessage(call.id, "Cannot execute this function call. Please retry!"))
					continue
				}
				rewritten, updated, n := renumberRefs(call.answer, localRefsOf(accumulated), s.ptr, s.logger)
				if err := s.graph.Resolve(question, rewritten, updated); err != nil {
					return "", nil, fmt.Errorf("recording answer: %w", err)
				}
				s.ptr += n
				answer, refs = rewritten, updated
				emit(Step{Kind: StepFinalAnswer, Text: answer, Refs: refs})
				st = stateResolved

			case unknownCall:
				msgs = append(msgs, toolMessage(call.id, fmt.Sprintf("Unknown tool %q. Use %s, %s or %s.", call.name, toolSearch, toolVisitPage, toolFinalAnswer)))
			}
			if st == stateFailed || st == stateResolved {
				break
			}
		}

		if st == stateDispatchTool {
			st = stateAwaitModel
		}
	}

	switch st {
	case stateResolved:
		return answer, refs, nil
	case stateFailed:
		return "", nil, failErr
	default:
		return "", nil, fmt.Errorf("resolving %q: %w", question, ErrTurnBudgetExceeded)
	}
}

// Ptr exposes the running global reference offset, mostly for the final
// report assembly.
func (s *Searcher) Ptr() int { return s.ptr }

// handleSearch fans the queries out to the search provider, merges results
// by URL, runs them through the summarizer pipeline, and merges the batch
// into the accumulated result set.
func (s *Searcher) handleSearch(ctx context.Context, call searchCall, question, topic string, accumulated map[int]search_models.Result, emit func(Step)) (string, error) {
	eg, gctx := errgroup.WithContext(ctx)
	batches := make([][]search_models.Result, len(call.queries))
	for i, q := range call.queries {
		i, q := i, q
		eg.Go(func() error {
			results, err := s.search.Discover(gctx, q, s.topK)
			if err != nil {
				return fmt.Errorf("query %q: %w", q, err)
			}
			batches[i] = results
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}

	// Deduplicate by URL across queries. Ids are assigned only after the
	// whole batch is joined, in query order, offset by what the sub-question
	// already accumulated, so completion order never shows.
	batch := make(map[int]search_models.Result)
	byURL := make(map[string]int)
	next := len(accumulated) + 1
	for _, results := range batches {
		for _, r := range results {
			if id, seen := byURL[r.URL]; seen && r.URL != "" {
				prev := batch[id]
				if r.Snippet != "" && !strings.Contains(prev.Snippet, r.Snippet) {
					prev.Snippet = strings.TrimSpace(prev.Snippet + " " + r.Snippet)
				}
				batch[id] = prev
				continue
			}
			byURL[r.URL] = next
			batch[next] = r
			next++
		}
	}
	if len(batch) == 0 {
		return "No results found. Try different queries.", nil
	}

	summarized, err := s.summarizer.Summarize(ctx, batch, question, topic, call.intent, false)
	if err != nil {
		return "", fmt.Errorf("summarize batch: %w", err)
	}

	if err := s.graph.RecordSearchStep(question, strings.Join(call.queries, "; "), sortedResults(summarized)); err != nil {
		s.logger.Printf("record search step: %v", err)
	}
	for id, r := range summarized {
		accumulated[id] = r
	}
	emit(Step{Kind: StepSearchResults, Results: summarized})

	raw, err := json.Marshal(summarized)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(raw), nil
}

// handleVisit re-reads already returned results in full, bypassing the
// content cache, and refreshes the accumulated entries in place.
func (s *Searcher) handleVisit(ctx context.Context, call visitCall, question, topic string, accumulated map[int]search_models.Result, emit func(Step)) (string, error) {
	selected := make(map[int]search_models.Result)
	var missing []int
	for _, id := range call.ids {
		r, ok := accumulated[id]
		if !ok || r.URL == "" {
			missing = append(missing, id)
			continue
		}
		selected[id] = r
	}
	if len(selected) == 0 {
		return fmt.Sprintf("No fetchable results for indexes %v. Pick indexes from earlier search results.", call.ids), nil
	}

	refreshed, err := s.summarizer.Summarize(ctx, selected, question, topic, "", true)
	if err != nil {
		return "", fmt.Errorf("deep read: %w", err)
	}
	for id, r := range refreshed {
		accumulated[id] = r
	}
	emit(Step{Kind: StepSearchResults, Results: refreshed})

	raw, err := json.Marshal(refreshed)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	reply := string(raw)
	if len(missing) > 0 {
		reply += fmt.Sprintf("\nIndexes %v were not found and were skipped.", missing)
	}
	return reply, nil
}

func toolMessage(callID, content string) provider_models.Message {
	return provider_models.Message{Role: "tool", ToolCallID: callID, Content: content}
}

// renderContext joins resolved ancestor QA pairs with the current question,
// dropping the oldest pairs until the rendered text fits the context limit.
func renderContext(question string, history []graph.QA, limit int) string {
	input := fmt.Sprintf(searcherInputTemplate, question)
	parts := make([]string, 0, len(history))
	for _, qa := range history {
		parts = append(parts, fmt.Sprintf(searcherContextTemplate, qa.Question, qa.Answer))
	}
	if limit > 0 {
		for len(parts) > 0 && len(strings.Join(parts, "\n"))+len(input)+1 > limit {
			parts = parts[1:]
		}
	}
	return strings.Join(append(parts, input), "\n")
}

func localRefsOf(accumulated map[int]search_models.Result) map[int]graph.Ref {
	refs := make(map[int]graph.Ref, len(accumulated))
	for id, r := range accumulated {
		refs[id] = graph.Ref{URL: r.URL, Title: r.Title}
	}
	return refs
}

func sortedResults(m map[int]search_models.Result) []search_models.Result {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]search_models.Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}
