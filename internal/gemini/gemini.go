package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/collager/internal/providers"
	"google.golang.org/api/option"
)

// Gemini is a provider for Google Gemini. It handles plain chat calls
// (curation, annotation) but not tool-bearing requests, so the planning
// agent refuses it.
type Gemini struct{}

// New returns a new Gemini provider
func New() *Gemini {
	return &Gemini{}
}

// Chat sends the conversation to Gemini and returns the text response
func (g *Gemini) Chat(ctx context.Context, req providers.Request) (providers.Response, error) {
	if len(req.Tools) > 0 {
		return providers.Response{}, providers.ErrToolsUnsupported
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return providers.Response{}, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return providers.Response{}, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	// Flatten the conversation into a single prompt; the curator and
	// annotator only ever send one user turn.
	var prompt strings.Builder
	for _, m := range req.Messages {
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(m.Content)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		return providers.Response{}, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return providers.Response{}, fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return providers.Response{}, fmt.Errorf("empty content returned from Gemini")
	}

	txt, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return providers.Response{}, fmt.Errorf("unexpected response format from Gemini")
	}

	return providers.Response{
		Content:    string(txt),
		StopReason: providers.StopReasonStop,
	}, nil
}
