package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/collager/internal/models"
	"github.com/lehigh-university-libraries/collager/internal/providers"
)

const backgroundSystemPrompt = `You are selecting the background image for an artistic collage.

Given a list of source images (with titles, descriptions, and the pixel dimensions of their largest available fragment) and the user's creative prompt, select the ONE source that works best as a full-canvas background.

Prefer: large, atmospheric, scenic, landscape, or abstract images.
Avoid: portraits of isolated small objects, or sources whose largest fragment is very small.

Return ONLY the identifier of the chosen source - a plain string, nothing else.`

// SelectBackground returns an AfterCuration hook that asks the model for
// the one source best suited as a full-canvas background. The hook sets
// BackgroundSourceID on the state when the model returns a known source;
// an unknown id is logged and ignored. Text metadata only, no vision.
func SelectBackground(provider providers.Provider, model string) Hook {
	return func(ctx context.Context, state *State) error {
		if len(state.Sources) == 0 {
			slog.Debug("No sources in state, skipping background selection")
			return nil
		}

		// Largest fragment per source by bounding-box area.
		largest := make(map[string][2]int)
		for i := range state.Fragments {
			frag := &state.Fragments[i]
			w, h := frag.BoundingBox.Dx(), frag.BoundingBox.Dy()
			if existing, ok := largest[frag.SourceID]; !ok || w*h > existing[0]*existing[1] {
				largest[frag.SourceID] = [2]int{w, h}
			}
		}

		type sourceInfo struct {
			Identifier        string `json:"identifier"`
			Title             string `json:"title"`
			Description       string `json:"description,omitempty"`
			Year              string `json:"year,omitempty"`
			Creator           string `json:"creator,omitempty"`
			LargestFragmentPx [2]int `json:"largest_fragment_px"`
		}
		infos := make([]sourceInfo, 0, len(state.Sources))
		for i := range state.Sources {
			src := &state.Sources[i]
			desc := src.Description
			if len(desc) > 300 {
				desc = desc[:300]
			}
			infos = append(infos, sourceInfo{
				Identifier:        src.ExternalID,
				Title:             src.Title,
				Description:       desc,
				Year:              src.Meta(models.MetaYear),
				Creator:           src.Meta(models.MetaCreator),
				LargestFragmentPx: largest[src.ExternalID],
			})
		}

		summary, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal source summaries: %w", err)
		}

		userMessage := fmt.Sprintf("Creative prompt: %s\n\nCanvas size: %dx%d pixels.\n\nSources:\n%s",
			state.Prompt, state.CanvasWidth, state.CanvasHeight, summary)

		resp, err := provider.Chat(ctx, providers.Request{
			Model:       model,
			System:      backgroundSystemPrompt,
			Messages:    []providers.Message{{Role: providers.RoleUser, Content: userMessage}},
			Temperature: 0.2,
			MaxTokens:   128,
		})
		if err != nil {
			return fmt.Errorf("background selection call failed: %w", err)
		}

		raw := strings.Trim(strings.TrimSpace(resp.Content), `"'`)

		for i := range state.Sources {
			if state.Sources[i].ExternalID == raw {
				state.BackgroundSourceID = raw
				slog.Debug("Selected background source", "identifier", raw)
				return nil
			}
		}
		slog.Warn("Model returned unknown background source id, no background set", "id", raw)
		return nil
	}
}
