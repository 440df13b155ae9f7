package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/collager/internal/curator"
	"github.com/lehigh-university-libraries/collager/internal/models"
	"github.com/lehigh-university-libraries/collager/internal/providers"
)

// Annotator fills in fragment descriptions ahead of composition. Fragments
// are mutated in place; annotation failures degrade to metadata-derived
// text, never to a pipeline error.
type Annotator interface {
	Annotate(ctx context.Context, sources []models.SourceImage, fragments []models.Fragment)
}

// MetadataAnnotator describes each fragment from its parent source's
// metadata alone. Two passes: a context string per source, then a
// per-fragment description grounded in that context.
type MetadataAnnotator struct{}

// Annotate sets each fragment's description from its parent source
func (a *MetadataAnnotator) Annotate(ctx context.Context, sources []models.SourceImage, fragments []models.Fragment) {
	byID := make(map[string]*models.SourceImage, len(sources))
	for i := range sources {
		byID[sources[i].ExternalID] = &sources[i]
	}

	for i := range fragments {
		src, ok := byID[fragments[i].SourceID]
		if !ok {
			continue
		}
		fragments[i].Description = describeFragment(&fragments[i], src)
	}
}

// describeSource builds a high-level context string for a source item.
func describeSource(src *models.SourceImage) string {
	year := src.Meta(models.MetaYear)
	if year == "" {
		year = "unknown year"
	}
	creator := src.Meta(models.MetaCreator)
	if creator == "" {
		creator = "unknown creator"
	}
	snippet := src.Description
	if len(snippet) > 120 {
		snippet = snippet[:120]
	}
	if snippet == "" {
		snippet = "no description available"
	}
	return fmt.Sprintf("Source '%s' (%s) by %s. %s", src.Title, year, creator, snippet)
}

// describeFragment builds a fragment description referencing the parent
// source context.
func describeFragment(frag *models.Fragment, src *models.SourceImage) string {
	b := frag.BoundingBox
	return fmt.Sprintf("%s region (%dx%dpx) at (%d,%d)-(%d,%d) from %s",
		frag.Label, b.Dx(), b.Dy(), b.Min.X, b.Min.Y, b.Max.X, b.Max.Y, describeSource(src))
}

const annotatorSystemPrompt = `You are describing visual fragments extracted from archive images for use in a collage.

Given a list of fragments with their labels, sizes, and parent item metadata, write a single vivid one-line description for each fragment.

Return ONLY a JSON object mapping fragment_id to description string. No explanation, no markdown fences.`

// LLMAnnotator asks the language model for one-line fragment descriptions
// in a single batched call, falling back to metadata-derived text for any
// fragment the model skips and for whole-call failures.
type LLMAnnotator struct {
	provider providers.Provider
	model    string
}

// NewLLMAnnotator creates an annotator backed by the given provider
func NewLLMAnnotator(provider providers.Provider, model string) *LLMAnnotator {
	return &LLMAnnotator{provider: provider, model: model}
}

// Annotate describes all fragments with one model call
func (a *LLMAnnotator) Annotate(ctx context.Context, sources []models.SourceImage, fragments []models.Fragment) {
	fallback := &MetadataAnnotator{}
	fallback.Annotate(ctx, sources, fragments)
	if len(fragments) == 0 {
		return
	}

	byID := make(map[string]*models.SourceImage, len(sources))
	for i := range sources {
		byID[sources[i].ExternalID] = &sources[i]
	}

	type fragmentInfo struct {
		FragmentID    string `json:"fragment_id"`
		Label         string `json:"label"`
		WidthPx       int    `json:"width_px"`
		HeightPx      int    `json:"height_px"`
		SourceContext string `json:"source_context"`
	}
	infos := make([]fragmentInfo, 0, len(fragments))
	for i := range fragments {
		info := fragmentInfo{
			FragmentID: fragments[i].FragmentID(),
			Label:      fragments[i].Label,
			WidthPx:    fragments[i].BoundingBox.Dx(),
			HeightPx:   fragments[i].BoundingBox.Dy(),
		}
		if src, ok := byID[fragments[i].SourceID]; ok {
			info.SourceContext = describeSource(src)
		}
		infos = append(infos, info)
	}

	summary, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return
	}

	resp, err := a.provider.Chat(ctx, providers.Request{
		Model:       a.model,
		System:      annotatorSystemPrompt,
		Messages:    []providers.Message{{Role: providers.RoleUser, Content: fmt.Sprintf("Fragments:\n\n%s", summary)}},
		Temperature: 0.5,
		MaxTokens:   2048,
	})
	if err != nil {
		slog.Warn("Annotation call failed, keeping metadata descriptions", "error", err)
		return
	}

	var described map[string]string
	if err := json.Unmarshal([]byte(curator.StripFences(resp.Content)), &described); err != nil {
		slog.Warn("Could not parse annotation response, keeping metadata descriptions")
		return
	}

	annotated := 0
	for i := range fragments {
		if desc, ok := described[fragments[i].FragmentID()]; ok && strings.TrimSpace(desc) != "" {
			fragments[i].Description = desc
			annotated++
		}
	}
	slog.Debug("Annotated fragments", "total", len(fragments), "from_llm", annotated)
}
