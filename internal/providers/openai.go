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

// OpenAIChatProvider implements the OpenAI-chat-style wire format
// shared by the local (self-hosted) and openrouter-aggregator
// providers, per spec.md §4.2: "For OpenRouter and Anthropic-direct:
// OpenAI-chat-style messages with authentication header; referrer/
// title headers are attached for OpenRouter." Grounded on the
// teacher's internal/providers/openai.go, narrowed from the teacher's
// Gemini-specific thought_signature passthrough (handled separately by
// GeminiProvider) to the plain chat-completions shape.
type OpenAIChatProvider struct {
	name         Name
	apiKey       string
	apiBase      string
	chatPath     string
	defaultModel string
	httpClient   *http.Client
	retryConfig  RetryConfig

	// openRouterHeaders, when true, attaches the HTTP-Referer/X-Title
	// headers OpenRouter's API expects for attribution.
	openRouterHeaders bool
	referer           string
	title             string
}

// NewLocalProvider builds an OpenAI-compatible provider for a
// self-hosted endpoint (no attribution headers), per spec.md's "local
// (self-hosted)" provider entry.
func NewLocalProvider(apiBase, apiKey, defaultModel string) *OpenAIChatProvider {
	return &OpenAIChatProvider{
		name:         NameLocal,
		apiKey:       apiKey,
		apiBase:      apiBase,
		chatPath:     "/v1/chat/completions",
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		retryConfig:  DefaultRetryConfig(),
	}
}

// NewOpenRouterProvider builds the openrouter-aggregator provider,
// attaching the referrer/title attribution headers OpenRouter expects.
func NewOpenRouterProvider(apiKey, defaultModel, referer, title string) *OpenAIChatProvider {
	return &OpenAIChatProvider{
		name:              NameOpenRouterAggregator,
		apiKey:            apiKey,
		apiBase:           "https://openrouter.ai/api",
		chatPath:          "/v1/chat/completions",
		defaultModel:      defaultModel,
		httpClient:        &http.Client{Timeout: 5 * time.Minute},
		retryConfig:       DefaultRetryConfig(),
		openRouterHeaders: true,
		referer:           referer,
		title:             title,
	}
}

func (p *OpenAIChatProvider) Name() Name           { return p.name }
func (p *OpenAIChatProvider) DefaultModel() string { return p.defaultModel }

type openAIMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIToolDefinition struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIRequest struct {
	Model       string                 `json:"model"`
	Messages    []openAIMessage        `json:"messages"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Temperature float64                `json:"temperature"`
	Tools       []openAIToolDefinition `json:"tools,omitempty"`
}

type openAIChoice struct {
	Message openAIMessage `json:"message"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Model   string         `json:"model"`
	Usage   openAIUsage    `json:"usage"`
}

func (p *OpenAIChatProvider) buildRequestBody(req ChatRequest) openAIRequest {
	messages := make([]openAIMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openAIMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID})
	}

	tools := make([]openAIToolDefinition, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, openAIToolDefinition{
			Type: "function",
			Function: openAIToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	return openAIRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
		Tools:       tools,
	}
}

func (p *OpenAIChatProvider) Generate(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	req.Model = model

	return RetryDo(ctx, p.retryConfig, func() (ChatResponse, error) {
		return p.doRequest(ctx, req)
	})
}

func (p *OpenAIChatProvider) doRequest(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	body := p.buildRequestBody(req)
	raw, err := json.Marshal(body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+p.chatPath, bytes.NewReader(raw))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	httpReq.Header.Set("content-type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("authorization", "Bearer "+p.apiKey)
	}
	if p.openRouterHeaders {
		if p.referer != "" {
			httpReq.Header.Set("http-referer", p.referer)
		}
		if p.title != "" {
			httpReq.Header.Set("x-title", p.title)
		}
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%s: do request: %w", p.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%s: read response: %w", p.name, err)
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

func (p *OpenAIChatProvider) parseResponse(raw []byte) (ChatResponse, error) {
	var wire openAIResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ChatResponse{}, fmt.Errorf("%s: unmarshal response: %w", p.name, err)
	}
	if len(wire.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("%s: empty choices in response", p.name)
	}

	msg := wire.Choices[0].Message
	var calls []ToolCall
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		calls = append(calls, ToolCall{FunctionName: tc.Function.Name, Arguments: args})
	}

	usage := Usage{
		InputTokens:  wire.Usage.PromptTokens,
		OutputTokens: wire.Usage.CompletionTokens,
		TotalTokens:  wire.Usage.TotalTokens,
	}
	if usage.TotalTokens == 0 {
		usage = EstimateUsage(msg.Content)
	}

	return ChatResponse{
		Text:      msg.Content,
		ToolCalls: calls,
		Usage:     usage,
		Model:     wire.Model,
		Provider:  p.name,
	}, nil
}
