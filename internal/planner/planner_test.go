package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/searchagent/internal/graph"
	"github.com/mohammad-safakhou/searchagent/internal/searcher"
	provider_models "github.com/mohammad-safakhou/searchagent/provider/models"
)

type scriptedProvider struct {
	responses []string
	requests  []provider_models.ChatRequest
}

func (p *scriptedProvider) ChatCompletion(_ context.Context, req provider_models.ChatRequest) (provider_models.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if len(p.responses) == 0 {
		return provider_models.ChatResponse{Text: "out of script"}, nil
	}
	text := p.responses[0]
	p.responses = p.responses[1:]
	return provider_models.ChatResponse{Text: text}, nil
}

type fakeResolver struct {
	answers map[string]string
	refs    map[string]map[int]graph.Ref
	fail    map[string]error
	g       *graph.Graph
}

func (f *fakeResolver) Resolve(_ context.Context, question string, _ []graph.QA, _ func(searcher.Step)) (string, map[int]graph.Ref, error) {
	if err, ok := f.fail[question]; ok {
		return "", nil, err
	}
	answer := f.answers[question]
	refs := f.refs[question]
	if f.g != nil {
		if err := f.g.Resolve(question, answer, refs); err != nil {
			return "", nil, err
		}
	}
	return answer, refs, nil
}

const decomposeQ1 = `{"evaluation_previous_goal": "Unknown", "actions": "extract_problems", "think": "start with the winner", "content": "who won the 2022 world cup?"}`

const finalResp = `{"evaluation_previous_goal": "Success", "actions": "final_response", "think": "enough info", "content": {"concise_answer": "Argentina.", "detailed_answer": "Argentina won the 2022 world cup [[1]]."}}`

func TestRunDecomposeThenFinal(t *testing.T) {
	g := graph.New()
	p := &scriptedProvider{responses: []string{decomposeQ1, finalResp}}
	resolver := &fakeResolver{
		g:       g,
		answers: map[string]string{"who won the 2022 world cup?": "Argentina won [[1]]."},
		refs: map[string]map[int]graph.Ref{
			"who won the 2022 world cup?": {1: {URL: "https://fifa.com", Title: "FIFA"}},
		},
	}
	planner := New(p, resolver, g, Options{MaxTurns: 5})

	result, err := planner.Run(context.Background(), "who won the 2022 world cup?", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ConciseAnswer != "Argentina." {
		t.Fatalf("unexpected concise answer: %q", result.ConciseAnswer)
	}
	if !strings.Contains(result.DetailedAnswer, "[[1]]") {
		t.Fatalf("unexpected detailed answer: %q", result.DetailedAnswer)
	}
	if result.References[1].URL != "https://fifa.com" {
		t.Fatalf("unexpected references: %+v", result.References)
	}
	if result.ID == "" {
		t.Fatalf("expected a session id")
	}

	// Graph carries root, the sub-question, and the terminal node.
	trace := result.Trace
	if len(trace) != 3 {
		t.Fatalf("expected 3 trace nodes, got %d", len(trace))
	}
	if trace[0].Node.Kind != graph.KindRoot || trace[2].Node.Kind != graph.KindTerminal {
		t.Fatalf("unexpected trace shape: %+v", trace)
	}
	if len(trace[0].Edges) != 1 {
		t.Fatalf("expected an edge from root to the sub-question")
	}

	// The resolved answer is fed back to the model before finalizing.
	feedback := p.requests[1].Messages[len(p.requests[1].Messages)-1]
	if feedback.Role != "user" || !strings.Contains(feedback.Content, "Argentina won [[1]].") {
		t.Fatalf("expected sub-answer feedback, got %+v", feedback)
	}
}

func TestRunToleratesSubQuestionFailure(t *testing.T) {
	g := graph.New()
	p := &scriptedProvider{responses: []string{decomposeQ1, finalResp}}
	resolver := &fakeResolver{
		g:    g,
		fail: map[string]error{"who won the 2022 world cup?": errors.New("turn budget exceeded")},
	}
	planner := New(p, resolver, g, Options{MaxTurns: 5})

	result, err := planner.Run(context.Background(), "who won the 2022 world cup?", nil)
	if err != nil {
		t.Fatalf("Run should tolerate resolver failure: %v", err)
	}
	if len(result.References) != 0 {
		t.Fatalf("failed sub-question must contribute no references, got %+v", result.References)
	}

	feedback := p.requests[1].Messages[len(p.requests[1].Messages)-1]
	if !strings.Contains(feedback.Content, "could not be resolved") {
		t.Fatalf("expected a failure note in feedback, got %q", feedback.Content)
	}
}

func TestRunRecoversFromMalformedPlannerOutput(t *testing.T) {
	g := graph.New()
	p := &scriptedProvider{responses: []string{"certainly! here is my plan...", finalResp}}
	planner := New(p, &fakeResolver{g: g}, g, Options{MaxTurns: 5})

	result, err := planner.Run(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ConciseAnswer != "Argentina." {
		t.Fatalf("unexpected answer: %q", result.ConciseAnswer)
	}

	second := p.requests[1].Messages[len(p.requests[1].Messages)-1]
	if !strings.Contains(second.Content, "valid JSON") {
		t.Fatalf("expected corrective JSON prompt, got %q", second.Content)
	}
}

func TestRunPlanBudgetExceeded(t *testing.T) {
	g := graph.New()
	p := &scriptedProvider{} // never emits a final response
	planner := New(p, &fakeResolver{g: g}, g, Options{MaxTurns: 3})

	_, err := planner.Run(context.Background(), "q", nil)
	if !errors.Is(err, ErrPlanBudgetExceeded) {
		t.Fatalf("expected ErrPlanBudgetExceeded, got %v", err)
	}

	last := p.requests[len(p.requests)-1]
	forced := false
	for _, m := range last.Messages {
		if m.Role == "user" && m.Content == forceFinalPrompt {
			forced = true
		}
	}
	if !forced {
		t.Fatalf("expected the forcing prompt on the last planning turn")
	}
}
