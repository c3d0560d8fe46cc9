package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/searchagent/internal/graph"
	"github.com/mohammad-safakhou/searchagent/internal/searcher"
	"github.com/mohammad-safakhou/searchagent/provider"
	provider_models "github.com/mohammad-safakhou/searchagent/provider/models"
	"github.com/mohammad-safakhou/searchagent/utils"
)

// ErrPlanBudgetExceeded is returned when the decomposition loop runs out of
// turns without a final response.
var ErrPlanBudgetExceeded = errors.New("planning budget exceeded without a final response")

// SubQuestionResolver resolves one sub-question and returns its globally
// renumbered answer plus reference map.
type SubQuestionResolver interface {
	Resolve(ctx context.Context, question string, history []graph.QA, emit func(searcher.Step)) (string, map[int]graph.Ref, error)
}

// Result is the session output for one fully processed top-level question.
type Result struct {
	ID             string            `json:"id"`
	Question       string            `json:"question"`
	ConciseAnswer  string            `json:"concise_answer"`
	DetailedAnswer string            `json:"detailed_answer"`
	References     map[int]graph.Ref `json:"references"`
	Trace          []graph.TraceNode `json:"trace"`
}

// Options tune one planner instance.
type Options struct {
	Sampling provider_models.Sampling
	MaxTurns int
	Logger   *log.Logger
}

// Planner drives the overall loop: ask the model whether to decompose
// further or finalize, resolve decomposed sub-questions through the
// resolver, and close the evidence graph with the final answer.
type Planner struct {
	provider provider.Provider
	resolver SubQuestionResolver
	graph    *graph.Graph

	sampling provider_models.Sampling
	maxTurns int
	logger   *log.Logger
}

func New(p provider.Provider, resolver SubQuestionResolver, g *graph.Graph, opts Options) *Planner {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 10
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[PLANNER] ", log.LstdFlags)
	}
	return &Planner{
		provider: p,
		resolver: resolver,
		graph:    g,
		sampling: opts.Sampling,
		maxTurns: opts.MaxTurns,
		logger:   opts.Logger,
	}
}

// Run answers one top-level question. Sub-questions are resolved one at a
// time; resolution failures are tolerated and their evidence excluded, so a
// best-effort final answer is still produced.
func (p *Planner) Run(ctx context.Context, question string, emit func(searcher.Step)) (Result, error) {
	if emit == nil {
		emit = func(searcher.Step) {}
	}
	p.graph.Reset()
	p.graph.AddRoot(question)

	msgs := []provider_models.Message{
		{Role: "system", Content: systemPrompt()},
		{Role: "user", Content: question},
	}
	parents := []string{graph.RootName}

	for turn := 0; turn < p.maxTurns; turn++ {
		if turn == p.maxTurns-1 {
			msgs = append(msgs, provider_models.Message{Role: "user", Content: forceFinalPrompt})
		}

		resp, err := p.provider.ChatCompletion(ctx, provider_models.ChatRequest{
			Messages: msgs,
			Sampling: p.sampling,
		})
		if err != nil {
			return Result{}, fmt.Errorf("planner inference: %w", err)
		}
		msgs = append(msgs, provider_models.Message{Role: "assistant", Content: resp.Text})

		parsed, err := utils.ParseLooseJSON(utils.StripThinkTags(resp.Text))
		if err != nil {
			p.logger.Printf("planner output not parseable: %v", err)
			msgs = append(msgs, provider_models.Message{Role: "user", Content: invalidJSONPrompt})
			continue
		}
		if think := utils.Str(parsed["think"]); think != "" {
			emit(searcher.Step{Kind: searcher.StepThought, Text: think})
		}

		switch strings.ToLower(strings.TrimSpace(utils.Str(parsed["actions"]))) {
		case "extract_problems":
			subs := utils.StringList(parsed["content"])
			if len(subs) == 0 {
				msgs = append(msgs, provider_models.Message{Role: "user", Content: invalidJSONPrompt})
				continue
			}
			feedback, err := p.resolveBatch(ctx, subs, parents, emit)
			if err != nil {
				return Result{}, err
			}
			parents = subs
			msgs = append(msgs, provider_models.Message{Role: "user", Content: feedback})

		case "final_response":
			return p.finalize(question, parsed["content"])

		default:
			msgs = append(msgs, provider_models.Message{Role: "user", Content: invalidJSONPrompt})
		}
	}
	return Result{}, fmt.Errorf("answering %q: %w", question, ErrPlanBudgetExceeded)
}

// resolveBatch adds the decomposed sub-questions to the graph and resolves
// them sequentially. A failed sub-question yields a failure note back to the
// model instead of aborting the session.
func (p *Planner) resolveBatch(ctx context.Context, subs, parents []string, emit func(searcher.Step)) (string, error) {
	var parts []string
	for _, sub := range subs {
		history, err := p.graph.AddNode(sub)
		if err != nil {
			return "", fmt.Errorf("adding sub-question: %w", err)
		}
		for _, parent := range parents {
			if err := p.graph.AddEdge(parent, sub); err != nil {
				p.logger.Printf("edge %q -> %q: %v", parent, sub, err)
			}
		}

		answer, _, err := p.resolver.Resolve(ctx, sub, history, emit)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			p.logger.Printf("sub-question %q failed: %v", sub, err)
			parts = append(parts, fmt.Sprintf(subFailedTemplate, sub))
			continue
		}
		parts = append(parts, fmt.Sprintf(subAnswerTemplate, sub, answer))
	}
	return strings.Join(parts, "\n\n"), nil
}

// finalize closes the graph and assembles the session output. The reference
// map is the union of all resolved nodes' already-global citation maps.
func (p *Planner) finalize(question string, content any) (Result, error) {
	p.graph.AddTerminal()

	result := Result{
		ID:         uuid.NewString(),
		Question:   question,
		References: make(map[int]graph.Ref),
		Trace:      p.graph.Trace(),
	}
	switch c := content.(type) {
	case map[string]any:
		result.ConciseAnswer = utils.Str(c["concise_answer"])
		result.DetailedAnswer = utils.Str(c["detailed_answer"])
	default:
		result.ConciseAnswer = utils.Str(content)
		result.DetailedAnswer = utils.Str(content)
	}

	for _, t := range result.Trace {
		for id, ref := range t.Node.LocalRefs {
			result.References[id] = ref
		}
	}
	return result, nil
}
