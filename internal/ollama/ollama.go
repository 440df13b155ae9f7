package ollama

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

// Ollama is a provider for a local Ollama server, using /api/chat so that
// tool calls are available with capable models.
type Ollama struct {
	httpClient *http.Client
}

// New returns a new Ollama provider
func New() *Ollama {
	return &Ollama{
		httpClient: &http.Client{Timeout: 300 * time.Second},
	}
}

func baseURL() string {
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		return url
	}
	if url := os.Getenv("OLLAMA_HOST"); url != "" {
		return url
	}
	return "http://localhost:11434"
}

type apiMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	ToolCalls []apiToolCall `json:"tool_calls,omitempty"`
}

type apiToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

// Chat sends a chat request to the Ollama /api/chat endpoint
func (o *Ollama) Chat(ctx context.Context, req providers.Request) (providers.Response, error) {
	url := baseURL() + "/api/chat"

	messages := make([]apiMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, apiMessage{Role: providers.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		am := apiMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			var atc apiToolCall
			atc.Function.Name = tc.Name
			atc.Function.Arguments = tc.Arguments
			am.ToolCalls = append(am.ToolCalls, atc)
		}
		messages = append(messages, am)
	}

	body := map[string]interface{}{
		"model":    req.Model,
		"messages": messages,
		"stream":   false,
		"options": map[string]interface{}{
			"temperature": req.Temperature,
		},
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]interface{}, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		body["tools"] = tools
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return providers.Response{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return providers.Response{}, fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		Message struct {
			Content   string        `json:"content"`
			ToolCalls []apiToolCall `json:"tool_calls"`
		} `json:"message"`
		DoneReason string `json:"done_reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return providers.Response{}, fmt.Errorf("failed to decode response body: %w", err)
	}

	out := providers.Response{
		Content:    response.Message.Content,
		StopReason: providers.StopReasonStop,
	}
	// Ollama tool calls carry no id; synthesize stable ones so callers can
	// thread results back the same way as with OpenAI.
	for i, tc := range response.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, providers.ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if len(out.ToolCalls) > 0 {
		out.StopReason = providers.StopReasonToolCalls
	}
	return out, nil
}
