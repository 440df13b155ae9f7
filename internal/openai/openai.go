package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/lehigh-university-libraries/collager/internal/providers"
)

const defaultURL = "https://api.openai.com/v1/chat/completions"

// OpenAI is a provider for OpenAI chat completions, including tool calls.
type OpenAI struct {
	httpClient *http.Client
	url        string
}

// New returns a new OpenAI provider
func New() *OpenAI {
	return &OpenAI{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		url:        defaultURL,
	}
}

type apiMessage struct {
	Role       string        `json:"role"`
	Content    string        `json:"content,omitempty"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type apiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type apiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

// Chat sends a chat completion request to OpenAI
func (o *OpenAI) Chat(ctx context.Context, req providers.Request) (providers.Response, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return providers.Response{}, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	messages := make([]apiMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, apiMessage{Role: providers.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		am := apiMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			atc := apiToolCall{ID: tc.ID, Type: "function"}
			atc.Function.Name = tc.Name
			atc.Function.Arguments = string(tc.Arguments)
			am.ToolCalls = append(am.ToolCalls, atc)
		}
		messages = append(messages, am)
	}

	body := map[string]interface{}{
		"model":       req.Model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		tools := make([]apiTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			at := apiTool{Type: "function"}
			at.Function.Name = t.Name
			at.Function.Description = t.Description
			at.Function.Parameters = t.Parameters
			tools = append(tools, at)
		}
		body["tools"] = tools
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return providers.Response{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.url, bytes.NewBuffer(requestBody))
	if err != nil {
		return providers.Response{}, fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return providers.Response{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return providers.Response{}, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(respBody))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content   string        `json:"content"`
				ToolCalls []apiToolCall `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return providers.Response{}, fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return providers.Response{}, fmt.Errorf("no choices returned from OpenAI")
	}

	choice := response.Choices[0]
	out := providers.Response{
		Content:    choice.Message.Content,
		StopReason: providers.StopReasonStop,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, providers.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	if choice.FinishReason == "tool_calls" || len(out.ToolCalls) > 0 {
		out.StopReason = providers.StopReasonToolCalls
	}
	return out, nil
}
