package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AnthropicProvider implements the anthropic-direct backend: the
// native Messages API with content blocks. Grounded on the teacher's
// internal/providers/anthropic.go (buildRequestBody/doRequest/
// parseResponse), narrowed to a single non-streaming Generate call
// since C2's public contract (spec.md §4.2) is synchronous from the
// caller's perspective — streaming is this build's concern only at the
// Streaming Session Layer (C7), not at the provider boundary.
type AnthropicProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
	retryConfig  RetryConfig
}

// AnthropicOption configures an AnthropicProvider at construction.
type AnthropicOption func(*AnthropicProvider)

func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) { p.baseURL = url }
}

func WithAnthropicHTTPClient(c *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) { p.httpClient = c }
}

// NewAnthropicProvider creates a provider bound to apiKey and the
// given default model.
func NewAnthropicProvider(apiKey, defaultModel string, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:       apiKey,
		baseURL:      "https://api.anthropic.com",
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		retryConfig:  DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AnthropicProvider) Name() Name          { return NameAnthropicDirect }
func (p *AnthropicProvider) DefaultModel() string { return p.defaultModel }

type anthropicContentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	System      string             `json:"system,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Model   string                  `json:"model"`
	Usage   anthropicUsage          `json:"usage"`
}

// buildRequestBody translates a normalized ChatRequest per spec.md
// §4.2's claude-family policy: messages=[{role,content}], max_tokens
// defaulting to 4000, temperature defaulting to 0.7, tool schemas
// mapped to {name, description, input_schema}.
func (p *AnthropicProvider) buildRequestBody(req ChatRequest) anthropicRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	var system string
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		messages = append(messages, anthropicMessage{
			Role:    m.Role,
			Content: []anthropicContentBlock{{Type: "text", Text: m.Content}},
		})
	}

	tools := make([]anthropicTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	return anthropicRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Tools:       tools,
		System:      system,
	}
}

func (p *AnthropicProvider) Generate(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	req.Model = model

	return RetryDo(ctx, p.retryConfig, func() (ChatResponse, error) {
		return p.doRequest(ctx, req)
	})
}

func (p *AnthropicProvider) doRequest(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	body := p.buildRequestBody(req)
	raw, err := json.Marshal(body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(raw))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("anthropic: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("anthropic: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return ChatResponse{}, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: ParseRetryAfter(resp.Header.Get("retry-after")),
		}
	}

	return p.parseResponse(respBody)
}

// parseResponse iterates content blocks, concatenating text blocks
// and collecting tool_use blocks into ToolCalls preserving emission
// order, per spec.md §4.2's message-style response policy.
func (p *AnthropicProvider) parseResponse(raw []byte) (ChatResponse, error) {
	var wire anthropicResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ChatResponse{}, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}

	var text string
	var calls []ToolCall
	for _, block := range wire.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			calls = append(calls, ToolCall{FunctionName: block.Name, Arguments: block.Input})
		}
	}

	usage := Usage{InputTokens: wire.Usage.InputTokens, OutputTokens: wire.Usage.OutputTokens}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		usage = EstimateUsage(text)
	}

	return ChatResponse{
		Text:      text,
		ToolCalls: calls,
		Usage:     usage,
		Model:     wire.Model,
		Provider:  NameAnthropicDirect,
	}, nil
}
