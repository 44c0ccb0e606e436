package committee

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	orderrs "github.com/orderflow/core/pkg/shared/errors"
	"github.com/orderflow/core/pkg/orders"
)

// responseSchema is what every provider, regardless of family, must
// produce: field mappings restricted to the evidence pack's candidate
// column ids, plus any parsing issues it noticed.
type responseSchema struct {
	FieldMappings []orders.FieldMapping `json:"field_mappings"`
	Issues        []orders.Issue        `json:"issues"`
	Confidence    float64               `json:"overall_confidence"`
}

// Provider is the capability every committee member exposes: build a
// prompt from the evidence pack, invoke the model, and validate its
// response. Deliberately modeled as an interface plus per-family
// implementations rather than a class hierarchy (the "deep
// inheritance" redesign flag).
type Provider interface {
	ID() string
	Family() string
	Weight() float64
	// Invoke returns the raw, unvalidated model output. validateResponse
	// performs the shared candidate-id check across every family.
	Invoke(ctx context.Context, prompt string, budget time.Duration) (string, error)
}

// validateResponse parses a provider's raw JSON and rejects responses
// that reference a column id absent from the pack's candidate set
// (the "invented column ids" rejection).
func validateResponse(raw string, pack EvidencePack) (responseSchema, error) {
	var parsed responseSchema
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return responseSchema{}, orderrs.WithCode(orderrs.FailedTo("parse provider response", err), orderrs.CodeInvalidRequest)
	}
	candidateIDs := pack.candidateIDs()
	for _, fm := range parsed.FieldMappings {
		if fm.SelectedColumnID == "" {
			continue
		}
		if !candidateIDs[fm.SelectedColumnID] {
			return responseSchema{}, orderrs.New("validate provider response", "committee", fm.SelectedColumnID, orderrs.CodeInvalidRequest,
				fmt.Errorf("column id %q not present in evidence pack candidate set", fm.SelectedColumnID))
		}
	}
	return parsed, nil
}

// AnthropicProvider calls the Claude family via the official SDK.
type AnthropicProvider struct {
	id, family string
	weight     float64
	model      anthropic.Model
	client     anthropic.Client
}

func NewAnthropicProvider(id, family string, weight float64, apiKey string, model anthropic.Model) *AnthropicProvider {
	return &AnthropicProvider{
		id:     id,
		family: family,
		weight: weight,
		model:  model,
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

func (p *AnthropicProvider) ID() string      { return p.id }
func (p *AnthropicProvider) Family() string  { return p.family }
func (p *AnthropicProvider) Weight() float64 { return p.weight }

func (p *AnthropicProvider) Invoke(ctx context.Context, prompt string, budget time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", orderrs.WithCode(orderrs.FailedToWithDetails("invoke provider", p.id, p.family, err), orderrs.CodeProviderTimeout)
	}
	if len(resp.Content) == 0 {
		return "", orderrs.New("invoke provider", p.id, p.family, orderrs.CodeInvalidRequest, fmt.Errorf("empty response content"))
	}
	return resp.Content[0].Text, nil
}

// BedrockProvider calls a model hosted behind AWS Bedrock.
type BedrockProvider struct {
	id, family string
	weight     float64
	modelID    string
	client     *bedrockruntime.Client
}

func NewBedrockProvider(id, family string, weight float64, modelID string, client *bedrockruntime.Client) *BedrockProvider {
	return &BedrockProvider{id: id, family: family, weight: weight, modelID: modelID, client: client}
}

func (p *BedrockProvider) ID() string      { return p.id }
func (p *BedrockProvider) Family() string  { return p.family }
func (p *BedrockProvider) Weight() float64 { return p.weight }

func (p *BedrockProvider) Invoke(ctx context.Context, prompt string, budget time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"prompt":     prompt,
		"max_tokens": 2048,
	})
	if err != nil {
		return "", orderrs.WithCode(orderrs.FailedTo("marshal bedrock request", err), orderrs.CodeInvalidRequest)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", orderrs.WithCode(orderrs.FailedToWithDetails("invoke provider", p.id, p.family, err), orderrs.CodeProviderTimeout)
	}

	var decoded struct {
		Completion string `json:"completion"`
	}
	if err := json.Unmarshal(out.Body, &decoded); err != nil {
		return "", orderrs.WithCode(orderrs.FailedTo("decode bedrock response", err), orderrs.CodeInvalidRequest)
	}
	return decoded.Completion, nil
}

// LangchainProvider covers the remainder of the configured pool through
// langchaingo's OpenAI-compatible client, pointed at any provider
// (including a locally hosted model) that speaks that protocol.
type LangchainProvider struct {
	id, family string
	weight     float64
	llm        llms.Model
}

func NewLangchainProvider(id, family string, weight float64, baseURL, apiKey, model string) (*LangchainProvider, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, orderrs.WithCode(orderrs.FailedToWithDetails("construct provider", id, family, err), orderrs.CodeInvalidRequest)
	}
	return &LangchainProvider{id: id, family: family, weight: weight, llm: llm}, nil
}

func (p *LangchainProvider) ID() string      { return p.id }
func (p *LangchainProvider) Family() string  { return p.family }
func (p *LangchainProvider) Weight() float64 { return p.weight }

func (p *LangchainProvider) Invoke(ctx context.Context, prompt string, budget time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt)
	if err != nil {
		return "", orderrs.WithCode(orderrs.FailedToWithDetails("invoke provider", p.id, p.family, err), orderrs.CodeProviderTimeout)
	}
	return completion, nil
}

// Registry maps a configured provider id to its constructed Provider,
// the "registry maps provider id to constructor" pattern  asks
// for instead of identity-via-class-hierarchy.
type Registry struct {
	providers map[string]Provider
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) {
	if _, exists := r.providers[p.ID()]; !exists {
		r.order = append(r.order, p.ID())
	}
	r.providers[p.ID()] = p
}

func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// Pool returns the registered providers in registration order, matching
// COMMITTEE_POOL's "ordered list of provider ids" configuration shape.
func (r *Registry) Pool() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}
