package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Default OpenAI-compatible configuration values
const (
	DefaultOpenAITimeout = 5 * time.Minute
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// OpenAILLM talks to any backend exposing the OpenAI Chat Completions API,
// including Gemini's OpenAI-compatible endpoint.
type OpenAILLM struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	model      string
	backoff    backoffFunc
}

// OpenAIOption configures the OpenAI-compatible client.
type OpenAIOption func(*OpenAILLM)

// WithOpenAIAPIKey sets the API key sent as a bearer token.
func WithOpenAIAPIKey(key string) OpenAIOption {
	return func(o *OpenAILLM) {
		o.apiKey = key
	}
}

// WithOpenAIModel sets the model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(o *OpenAILLM) {
		o.model = model
	}
}

// WithOpenAIBaseURL sets the base URL, including the version path
// (".../v1"). The client appends "/chat/completions".
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *OpenAILLM) {
		o.baseURL = strings.TrimRight(url, "/")
	}
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(o *OpenAILLM) {
		o.httpClient = client
	}
}

// NewOpenAI creates a client for the OpenAI API.
func NewOpenAI(opts ...OpenAIOption) *OpenAILLM {
	return newOpenAICompatible("openai", DefaultOpenAIBaseURL, DefaultOpenAIModel, opts)
}

// NewGemini creates a client for Gemini through its OpenAI-compatible endpoint.
func NewGemini(opts ...OpenAIOption) *OpenAILLM {
	return newOpenAICompatible("gemini", DefaultGeminiBaseURL, DefaultGeminiModel, opts)
}

func newOpenAICompatible(name, baseURL, model string, opts []OpenAIOption) *OpenAILLM {
	o := &OpenAILLM{
		name:    name,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: DefaultOpenAITimeout,
		},
		backoff: retryAfterDelay,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Model returns the model requests are sent to.
func (o *OpenAILLM) Model() string {
	return o.model
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []chatTool    `json:"tools,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    *string        `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string          `json:"type"`
	Function chatFunctionDef `json:"function"`
}

type chatFunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

// Generate sends a request and returns the complete response.
func (o *OpenAILLM) Generate(ctx context.Context, messages []Message, tools []ToolSchema) (*LLMResponse, error) {
	start := time.Now()

	req, err := o.buildRequest(messages, tools)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := doWithRetry(ctx, o.httpClient, o.name, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if o.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
		}
		return httpReq, nil
	}, o.backoff, http.StatusTooManyRequests, http.StatusServiceUnavailable)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return o.parseResponse(&resp, time.Since(start))
}

// buildRequest translates the conversation into Chat Completions messages.
// Assistant tool calls become tool_calls, and each tool result becomes its
// own "tool" message directly after the assistant message that issued it.
func (o *OpenAILLM) buildRequest(messages []Message, tools []ToolSchema) (*chatRequest, error) {
	req := &chatRequest{Model: o.model}

	for _, msg := range messages {
		if len(msg.ToolCalls) == 0 && len(msg.ToolResults) == 0 {
			content := msg.Content
			req.Messages = append(req.Messages, chatMessage{Role: string(msg.Role), Content: &content})
			continue
		}

		var text *string
		if s := strings.TrimSpace(msg.Content); s != "" {
			text = &s
		}

		if len(msg.ToolCalls) > 0 {
			calls := make([]chatToolCall, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil {
					return nil, fmt.Errorf("marshal tool arguments: %w", err)
				}
				if tc.Arguments == nil {
					args = []byte("{}")
				}
				calls = append(calls, chatToolCall{
					ID:       tc.ID,
					Type:     "function",
					Function: chatFunctionCall{Name: tc.Name, Arguments: string(args)},
				})
			}
			req.Messages = append(req.Messages, chatMessage{Role: string(msg.Role), Content: text, ToolCalls: calls})
			text = nil
		}

		for _, tr := range msg.ToolResults {
			content := tr.Content
			req.Messages = append(req.Messages, chatMessage{Role: "tool", Content: &content, ToolCallID: tr.ToolCallID})
		}
		if text != nil {
			req.Messages = append(req.Messages, chatMessage{Role: string(msg.Role), Content: text})
		}
	}

	for _, t := range tools {
		params, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal tool schema %s: %w", t.Name, err)
		}
		req.Tools = append(req.Tools, chatTool{
			Type: "function",
			Function: chatFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	return req, nil
}

func (o *OpenAILLM) parseResponse(resp *chatResponse, latency time.Duration) (*LLMResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s response has no choices", o.name)
	}
	choice := resp.Choices[0]

	result := &LLMResponse{LatencyMs: latency.Milliseconds()}
	if choice.Message.Content != nil {
		result.Content = *choice.Message.Content
	}
	if resp.Usage != nil {
		result.InputTokens = resp.Usage.PromptTokens
		result.OutputTokens = resp.Usage.CompletionTokens
	}

	model := resp.Model
	if model == "" {
		model = o.model
	}
	result.CostUSD = CalculateCost(model, result.InputTokens, result.OutputTokens, 0, 0)

	switch choice.FinishReason {
	case "stop":
		result.StopReason = StopReasonEnd
	case "tool_calls", "function_call":
		result.StopReason = StopReasonToolUse
	case "length":
		result.StopReason = StopReasonLength
	case "content_filter":
		result.StopReason = StopReasonFiltered
	}

	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("tool call %s: invalid arguments: %w", tc.Function.Name, err)
			}
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return result, nil
}
