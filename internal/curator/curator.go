package curator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/collager/internal/providers"
)

const systemPrompt = `You are an art curator selecting images for a collage. Given a creative prompt and a list of candidate assets, select the best ones based on:

1. Relevance to the creative prompt
2. Visual diversity - prefer a mix of subjects, styles, and time periods
3. Aesthetic quality - prefer items with descriptive titles and rich metadata

Return ONLY a JSON array of selected identifier strings. No explanation, no markdown fences, just the raw JSON array. Example: ["id1", "id2", "id3"]`

// Candidate is the compact summary of one selectable asset sent to the
// model. Zero-valued fields are omitted from the JSON.
type Candidate struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	Year        string `json:"year,omitempty"`
	WidthPx     int    `json:"width_px,omitempty"`
	HeightPx    int    `json:"height_px,omitempty"`
}

// Curator selects assets from a candidate pool with a single LLM call.
type Curator struct {
	provider providers.Provider
	model    string
}

// New creates a new curator backed by the given provider and model
func New(provider providers.Provider, model string) *Curator {
	return &Curator{provider: provider, model: model}
}

// Select asks the model to pick up to targetCount candidate ids. The
// target is advisory: the model may return more or fewer, and callers must
// intersect the result with the known candidate set. A malformed response
// yields an empty selection, not an error.
func (c *Curator) Select(ctx context.Context, prompt string, candidates []Candidate, targetCount int) ([]string, error) {
	if len(candidates) == 0 {
		return []string{}, nil
	}

	summary, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal candidates: %w", err)
	}

	userMessage := fmt.Sprintf("Creative prompt: %s\n\nSelect up to %d assets from these candidates:\n\n%s",
		prompt, targetCount, summary)

	resp, err := c.provider.Chat(ctx, providers.Request{
		Model:       c.model,
		System:      systemPrompt,
		Messages:    []providers.Message{{Role: providers.RoleUser, Content: userMessage}},
		Temperature: 0.2,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("curator call failed: %w", err)
	}

	selected := ParseSelection(resp.Content)
	slog.Debug("Curator selection", "candidates", len(candidates), "selected", len(selected), "target", targetCount)
	return selected, nil
}

// Intersect filters ids down to those present in known, preserving the
// order of ids. Duplicate selections collapse to the first occurrence.
func Intersect(ids []string, known map[string]bool) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if known[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
