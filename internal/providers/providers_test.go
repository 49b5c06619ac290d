package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func TestAnthropicProviderParsesTextAndToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Fatalf("missing api key header")
		}
		resp := anthropicResponse{
			Content: []anthropicContentBlock{
				{Type: "text", Text: "hello "},
				{Type: "tool_use", Name: "write_file", Input: map[string]any{"file_path": "a.txt"}},
			},
			Model: "claude-3-5-sonnet",
			Usage: anthropicUsage{InputTokens: 10, OutputTokens: 5},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", "claude-3-5-sonnet", WithAnthropicBaseURL(server.URL))
	resp, err := p.Generate(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "hello " {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].FunctionName != "write_file" {
		t.Fatalf("unexpected tool calls: %+v", resp.ToolCalls)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestAnthropicProviderHTTPErrorIsRetryable(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContentBlock{{Type: "text", Text: "ok"}},
		})
	}))
	defer server.Close()

	p := NewAnthropicProvider("key", "claude", WithAnthropicBaseURL(server.URL))
	p.retryConfig = RetryConfig{MaxAttempts: 3, BaseDelay: 0, MaxDelay: 0}

	resp, err := p.Generate(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("expected eventual success, got: %v", err)
	}
	if resp.Text != "ok" || attempts != 2 {
		t.Fatalf("unexpected retry behavior: text=%q attempts=%d", resp.Text, attempts)
	}
}

func TestOpenAIChatProviderParsesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{
			Choices: []openAIChoice{{Message: openAIMessage{
				Content: "",
				ToolCalls: []openAIToolCall{{
					Function: openAIFunctionCall{Name: "read_file", Arguments: `{"file_path":"a.txt"}`},
				}},
			}}},
			Model: "gpt-test",
			Usage: openAIUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewLocalProvider(server.URL, "", "gpt-test")
	resp, err := p.Generate(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Arguments["file_path"] != "a.txt" {
		t.Fatalf("unexpected tool calls: %+v", resp.ToolCalls)
	}
}

func TestClientSwitchAffectsOnlySubsequentGenerate(t *testing.T) {
	serverA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openAIResponse{Choices: []openAIChoice{{Message: openAIMessage{Content: "from-a"}}}})
	}))
	defer serverA.Close()
	serverB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openAIResponse{Choices: []openAIChoice{{Message: openAIMessage{Content: "from-b"}}}})
	}))
	defer serverB.Close()

	pa := NewLocalProvider(serverA.URL, "", "model-a")
	pb := NewLocalProvider(serverB.URL, "", "model-b")

	client, err := NewClient(map[Name]Provider{NameLocal: pa}, nil, rate.NewLimiter(rate.Inf, 1), NameLocal, "model-a")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Generate(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil || resp.Text != "from-a" {
		t.Fatalf("expected from-a, got %q err=%v", resp.Text, err)
	}

	client.providers[NameLocal] = pb
	if err := client.Switch(NameLocal, "model-b"); err != nil {
		t.Fatalf("switch: %v", err)
	}

	resp2, err := client.Generate(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil || resp2.Text != "from-b" {
		t.Fatalf("expected from-b after switch, got %q err=%v", resp2.Text, err)
	}
}

// R3: switching to the currently active (provider, model) pair is a
// no-op observable to agents — Current() and subsequent Generate
// behavior are unchanged.
func TestSwitchToCurrentProviderAndModelIsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openAIResponse{Choices: []openAIChoice{{Message: openAIMessage{Content: "steady"}}}})
	}))
	defer server.Close()

	p := NewLocalProvider(server.URL, "", "model-a")
	client, err := NewClient(map[Name]Provider{NameLocal: p}, nil, rate.NewLimiter(rate.Inf, 1), NameLocal, "model-a")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	beforeProvider, beforeModel := client.Current()

	if err := client.Switch(NameLocal, "model-a"); err != nil {
		t.Fatalf("switch: %v", err)
	}

	afterProvider, afterModel := client.Current()
	if afterProvider != beforeProvider || afterModel != beforeModel {
		t.Fatalf("expected (provider, model) unchanged, got (%v,%v) -> (%v,%v)", beforeProvider, beforeModel, afterProvider, afterModel)
	}

	resp, err := client.Generate(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil || resp.Text != "steady" {
		t.Fatalf("expected unaffected Generate behavior, got %q err=%v", resp.Text, err)
	}
}

func TestEstimateUsageMatchesWhitespaceRule(t *testing.T) {
	usage := EstimateUsage("one two three four five six")
	if usage.OutputTokens != 6 {
		t.Fatalf("expected 6 output tokens, got %d", usage.OutputTokens)
	}
	if usage.InputTokens != 2 {
		t.Fatalf("expected input = output/3 = 2, got %d", usage.InputTokens)
	}
	if usage.TotalTokens < usage.InputTokens+usage.OutputTokens {
		t.Fatalf("total must be >= input+output")
	}
}
