package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/collager/internal/archive"
	"github.com/lehigh-university-libraries/collager/internal/models"
	"github.com/lehigh-university-libraries/collager/internal/providers"
)

// MaxAgentTurns is the hard cap on planning conversation turns. Hitting
// the cap is not an error; the plan accumulated so far is returned.
const MaxAgentTurns = 10

const systemPrompt = `You are a creative search planner for the Internet Archive. Your goal is to plan diverse, high-quality image searches that match the user's creative prompt.

You have two tools:

1. find_collections - discover relevant archive collections by keyword.
2. register_search - register a search to be executed later. Supports Lucene boolean syntax (AND, OR, NOT, groupings with parentheses) in the keywords field, with optional collection and date range filters.

Strategy:
1. Optionally call find_collections to discover relevant collections.
2. Register multiple searches with varied keywords, synonyms, and different angles to gather diverse material.
3. Use Lucene boolean syntax for precise queries: e.g. "(botanical OR flora) AND illustration", "vintage AND (poster OR advertisement)".
4. Searches are executed after planning completes, so you will not see search results. When you have registered enough varied searches, stop and respond with a short summary of your plan.`

const registerAck = `{"status":"registered"}`

var agentTools = []providers.Tool{
	{
		Name:        "find_collections",
		Description: "Search for archive collections by keyword. Returns collection identifiers, titles, and descriptions.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"keywords": {
					"type": "string",
					"description": "Search keywords for finding collections."
				}
			},
			"required": ["keywords"]
		}`),
	},
	{
		Name:        "register_search",
		Description: "Register an image search to be executed after planning. Supports Lucene boolean syntax (AND, OR, NOT, groupings) in the keywords field. Mediatype:image is automatically enforced.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"keywords": {
					"type": "string",
					"description": "Search keywords using Lucene boolean syntax. E.g. '(botanical OR flora) AND illustration'."
				},
				"collection": {
					"type": "string",
					"description": "Optional archive collection identifier to filter by."
				},
				"date_filter": {
					"type": "string",
					"description": "Optional date range filter, e.g. '1900 TO 1950'. Will be wrapped as date:[VALUE]."
				},
				"max_results": {
					"type": "integer",
					"description": "Optional cap on the number of results for this search."
				}
			},
			"required": ["keywords"]
		}`),
	},
}

// Agent runs a bounded-turn planning conversation against the language
// model. Searches requested by the model are recorded as plan items, not
// executed; only collection discovery runs immediately, so the model's
// context stays free of raw search results during planning.
type Agent struct {
	provider providers.Provider
	model    string
	searcher archive.Searcher
}

// NewAgent creates a new search planning agent
func NewAgent(provider providers.Provider, model string, searcher archive.Searcher) *Agent {
	return &Agent{provider: provider, model: model, searcher: searcher}
}

// PlanSearch runs the planning loop and returns the recorded plan.
// Transport errors from the provider propagate; everything else degrades
// to a shorter (possibly empty) plan.
func (a *Agent) PlanSearch(ctx context.Context, prompt string, maxItems int) ([]models.PlanItem, error) {
	var plan []models.PlanItem

	userMessage := fmt.Sprintf("Creative prompt: %s\n\nPlan up to %d searches.", prompt, maxItems)
	messages := []providers.Message{{Role: providers.RoleUser, Content: userMessage}}

	for turn := 0; turn < MaxAgentTurns; turn++ {
		resp, err := a.provider.Chat(ctx, providers.Request{
			Model:       a.model,
			System:      systemPrompt,
			Messages:    messages,
			Tools:       agentTools,
			Temperature: 0.7,
			MaxTokens:   1024,
		})
		if err != nil {
			return nil, fmt.Errorf("planning turn %d failed: %w", turn+1, err)
		}

		if resp.StopReason != providers.StopReasonToolCalls || len(resp.ToolCalls) == 0 {
			slog.Debug("Planner stopped", "turn", turn+1, "plan_items", len(plan))
			break
		}

		messages = append(messages, providers.Message{
			Role:      providers.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result := a.dispatchTool(ctx, call, &plan)
			messages = append(messages, providers.Message{
				Role:       providers.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}

		if len(plan) >= maxItems {
			slog.Debug("Plan budget reached", "turn", turn+1, "plan_items", len(plan))
			break
		}
	}

	return plan, nil
}

// dispatchTool routes one tool call. register_search records a plan item
// and returns a static acknowledgement; find_collections executes
// immediately. Unknown tools and malformed arguments are answered with a
// JSON error object so the conversation can continue.
func (a *Agent) dispatchTool(ctx context.Context, call providers.ToolCall, plan *[]models.PlanItem) string {
	switch call.Name {
	case "register_search":
		var item models.PlanItem
		if err := json.Unmarshal(call.Arguments, &item); err != nil || item.Keywords == "" {
			slog.Warn("Ignoring malformed register_search call", "arguments", string(call.Arguments))
			return `{"error":"register_search requires a keywords string"}`
		}
		*plan = append(*plan, item)
		slog.Debug("Registered search", "keywords", item.Keywords, "collection", item.Collection)
		return registerAck

	case "find_collections":
		var args struct {
			Keywords string `json:"keywords"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return `{"error":"find_collections requires a keywords string"}`
		}
		collections, err := a.searcher.FindCollections(ctx, args.Keywords, 0)
		if err != nil {
			// Collection discovery is best-effort; fall back to the
			// curated list so planning can continue offline.
			slog.Warn("Collection search failed, returning curated list", "error", err)
			collections = archive.CuratedCollections()
		}
		data, err := json.Marshal(collections)
		if err != nil {
			return "[]"
		}
		return string(data)

	default:
		return fmt.Sprintf(`{"error":"unknown tool: %s"}`, call.Name)
	}
}
