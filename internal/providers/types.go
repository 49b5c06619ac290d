// Package providers implements the LLM Client (C2): a normalized
// request/response shape over five backends, each with its own
// request builder and response parser, grounded on the teacher's
// internal/providers package.
package providers

import "context"

// Name is the closed provider enum spec.md §4.2 names.
type Name string

const (
	NameLocal                Name = "local"
	NameAWSManaged            Name = "aws-managed"
	NameOpenRouterAggregator Name = "openrouter-aggregator"
	NameGoogleGemini         Name = "google-gemini"
	NameAnthropicDirect      Name = "anthropic-direct"
)

// Message is one turn in a conversation handed to generate, already
// normalized across providers.
type Message struct {
	Role    string // "user", "assistant", "system", "tool"
	Content string
	// ToolCallID links a tool-role message back to the ToolCall that
	// produced it, when the provider's wire format needs that linkage
	// (OpenAI-chat-style providers).
	ToolCallID string
}

// ToolDefinition is the provider-agnostic shape a ToolSpec is
// translated into before being attached to a request.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is the normalized shape spec.md §4.2 mandates: any
// provider-specific id is discarded, only function_name and the
// string-keyed argument map survive past the parser.
type ToolCall struct {
	FunctionName string
	Arguments    map[string]any
}

// Usage carries token accounting. TokensEstimated is set when the
// provider did not report usage and the fallback estimator (spec.md
// §3) was used instead.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	TotalTokens     int
	TokensEstimated bool
	// EstimatedTiktokenOutputTokens is an informational refinement
	// computed alongside the authoritative whitespace estimator; it
	// never replaces InputTokens/OutputTokens (SPEC_FULL.md §4.2).
	EstimatedTiktokenOutputTokens int
}

// ChatRequest is the normalized request every provider's builder
// translates into its own wire shape.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the normalized response every provider's parser
// produces.
type ChatResponse struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
	Model     string
	Provider  Name
}

// Provider is the interface every backend implements; the Agent and
// Coordinator only ever see this interface, never a concrete type, so
// switch(provider, model) is a clean atomic pointer swap (§5).
type Provider interface {
	Name() Name
	DefaultModel() string
	Generate(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// ModelFamily groups an ordered list of model identifiers under one
// family name, for available_models().
type ModelFamily struct {
	Family string
	Models []string
}
