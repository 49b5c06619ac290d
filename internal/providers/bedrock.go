package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockProvider implements the aws-managed backend: titan/llama
// families via InvokeModel. Grounded on goadesign-goa-ai's use of
// aws-sdk-go-v2/service/bedrockruntime — the teacher (vanducng-goclaw)
// has no Bedrock analogue in its own pack subset, so this file follows
// goa-ai's SDK usage pattern instead, shaped to spec.md §4.2's exact
// titan/llama request bodies.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// NewBedrockProvider wraps an already-configured bedrockruntime
// client (region/credentials resolved by the caller via
// aws-sdk-go-v2/config, as cmd/wire.go's buildProviderClient does).
func NewBedrockProvider(client *bedrockruntime.Client, defaultModel string) *BedrockProvider {
	return &BedrockProvider{client: client, defaultModel: defaultModel}
}

func (p *BedrockProvider) Name() Name           { return NameAWSManaged }
func (p *BedrockProvider) DefaultModel() string { return p.defaultModel }

type titanTextGenerationConfig struct {
	MaxTokenCount int     `json:"maxTokenCount"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"topP"`
}

type titanRequest struct {
	InputText            string                    `json:"inputText"`
	TextGenerationConfig titanTextGenerationConfig `json:"textGenerationConfig"`
}

type titanResult struct {
	OutputText string `json:"outputText"`
}

type titanResponse struct {
	Results []titanResult `json:"results"`
}

type llamaRequest struct {
	Prompt      string  `json:"prompt"`
	MaxGenLen   int     `json:"max_gen_len"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type llamaResponse struct {
	Generation           string `json:"generation"`
	PromptTokenCount     int    `json:"prompt_token_count"`
	GenerationTokenCount int    `json:"generation_token_count"`
}

func promptFromMessages(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func (p *BedrockProvider) Generate(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	switch {
	case strings.Contains(model, "titan"):
		return p.generateTitan(ctx, model, req)
	case strings.Contains(model, "llama"):
		return p.generateLlama(ctx, model, req)
	default:
		return ChatResponse{}, fmt.Errorf("aws-managed: unsupported model family for %q", model)
	}
}

func (p *BedrockProvider) generateTitan(ctx context.Context, model string, req ChatRequest) (ChatResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	body := titanRequest{
		InputText: promptFromMessages(req.Messages),
		TextGenerationConfig: titanTextGenerationConfig{
			MaxTokenCount: maxTokens,
			Temperature:   temperature,
			TopP:          0.9,
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("aws-managed: marshal titan request: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Body:        raw,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("aws-managed: invoke titan model: %w", err)
	}

	var wire titanResponse
	if err := json.Unmarshal(out.Body, &wire); err != nil {
		return ChatResponse{}, fmt.Errorf("aws-managed: unmarshal titan response: %w", err)
	}

	var text string
	if len(wire.Results) > 0 {
		text = wire.Results[0].OutputText
	}

	return ChatResponse{Text: text, Usage: EstimateUsage(text), Model: model, Provider: NameAWSManaged}, nil
}

func (p *BedrockProvider) generateLlama(ctx context.Context, model string, req ChatRequest) (ChatResponse, error) {
	maxGenLen := req.MaxTokens
	if maxGenLen <= 0 {
		maxGenLen = 2048
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	body := llamaRequest{
		Prompt:      promptFromMessages(req.Messages),
		MaxGenLen:   maxGenLen,
		Temperature: temperature,
		TopP:        0.9,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("aws-managed: marshal llama request: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Body:        raw,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("aws-managed: invoke llama model: %w", err)
	}

	var wire llamaResponse
	if err := json.Unmarshal(out.Body, &wire); err != nil {
		return ChatResponse{}, fmt.Errorf("aws-managed: unmarshal llama response: %w", err)
	}

	usage := Usage{
		InputTokens:  wire.PromptTokenCount,
		OutputTokens: wire.GenerationTokenCount,
		TotalTokens:  wire.PromptTokenCount + wire.GenerationTokenCount,
	}
	if usage.TotalTokens == 0 {
		usage = EstimateUsage(wire.Generation)
	}

	return ChatResponse{Text: wire.Generation, Usage: usage, Model: model, Provider: NameAWSManaged}, nil
}
