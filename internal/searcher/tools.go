package searcher

import (
	"strings"

	provider_models "github.com/mohammad-safakhou/searchagent/provider/models"
	"github.com/mohammad-safakhou/searchagent/utils"
)

const (
	toolSearch      = "web_search"
	toolVisitPage   = "visit_page"
	toolFinalAnswer = "final_answer"
)

// toolCall is the closed set of actions a model turn can request. Parsing
// happens once at this boundary; the loop only ever dispatches on these
// variants.
type toolCall interface{ isToolCall() }

type searchCall struct {
	id      string
	queries []string
	intent  string
}

type visitCall struct {
	id  string
	ids []int
}

type finalCall struct {
	id     string
	answer string
}

type unknownCall struct {
	id   string
	name string
}

func (searchCall) isToolCall()  {}
func (visitCall) isToolCall()   {}
func (finalCall) isToolCall()   {}
func (unknownCall) isToolCall() {}

// parseToolCall validates one raw tool call into the tagged union. Malformed
// arguments degrade to unknownCall so the loop can answer with a corrective
// message instead of failing the sub-question.
func parseToolCall(tc provider_models.ToolCall) toolCall {
	switch tc.Name {
	case toolSearch:
		args, err := utils.ParseLooseJSON(tc.Arguments)
		if err != nil {
			return unknownCall{id: tc.ID, name: tc.Name}
		}
		call := searchCall{id: tc.ID}
		// Models sometimes invent key variants like "queries" or
		// "search_query"; take the first key mentioning query.
		for k, v := range args {
			if strings.Contains(strings.ToLower(k), "query") {
				call.queries = utils.StringList(v)
				break
			}
		}
		if intent, ok := args["intent"]; ok {
			call.intent = strings.Join(utils.StringList(intent), " ")
		}
		if len(call.queries) == 0 {
			return unknownCall{id: tc.ID, name: tc.Name}
		}
		return call
	case toolVisitPage:
		args, err := utils.ParseLooseJSON(tc.Arguments)
		if err != nil {
			return unknownCall{id: tc.ID, name: tc.Name}
		}
		call := visitCall{id: tc.ID}
		for k, v := range args {
			lk := strings.ToLower(k)
			if strings.Contains(lk, "url") || strings.Contains(lk, "select") {
				call.ids = intList(v)
				break
			}
		}
		if len(call.ids) == 0 {
			return unknownCall{id: tc.ID, name: tc.Name}
		}
		return call
	case toolFinalAnswer:
		args, err := utils.ParseLooseJSON(tc.Arguments)
		if err != nil {
			// A bare string still counts as an answer.
			if ans := strings.TrimSpace(tc.Arguments); ans != "" {
				return finalCall{id: tc.ID, answer: ans}
			}
			return unknownCall{id: tc.ID, name: tc.Name}
		}
		return finalCall{id: tc.ID, answer: utils.Str(args["answer"])}
	default:
		return unknownCall{id: tc.ID, name: tc.Name}
	}
}

func intList(v any) []int {
	var out []int
	switch vv := v.(type) {
	case []any:
		for _, item := range vv {
			if f, ok := item.(float64); ok {
				out = append(out, int(f))
			}
		}
	case float64:
		out = append(out, int(vv))
	}
	return out
}

// toolSchemas is the tool surface advertised to the model.
func toolSchemas() []provider_models.ToolSchema {
	return []provider_models.ToolSchema{
		{
			Name:        toolSearch,
			Description: "Performs a web search for your queries and your search intent, then returns the top results.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "The search queries to perform.",
					},
					"intent": map[string]any{
						"type":        "string",
						"description": "The detailed intent of performing this search.",
					},
				},
				"required":             []string{"query", "intent"},
				"additionalProperties": false,
			},
		},
		{
			Name:        toolVisitPage,
			Description: "Visits previously returned search results and reads their full content for deep reading.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"select_urls": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "number"},
						"description": "The integer indexes of the web pages to visit for deep reading.",
					},
				},
				"required":             []string{"select_urls"},
				"additionalProperties": false,
			},
		},
		{
			Name:        toolFinalAnswer,
			Description: "Provides a final answer to the given problem.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"answer": map[string]any{
						"type":        "string",
						"description": "The final answer to the problem.",
					},
				},
				"required":             []string{"answer"},
				"additionalProperties": false,
			},
		},
	}
}
