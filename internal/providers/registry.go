package providers

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Client is the C2 public contract: generate, available_models,
// switch. It holds the active Provider behind an atomic pointer so
// switch(provider, model) never blocks or tears an in-flight
// generation (§5: "in-flight generations complete under the prior
// backend").
type Client struct {
	active    atomic.Pointer[activeBackend]
	providers map[Name]Provider
	models    map[Name][]ModelFamily
	limiter   *rate.Limiter
}

type activeBackend struct {
	provider Provider
	model    string
}

// NewClient builds a Client over the given set of configured
// providers and their available model catalogs, starting on
// initialProvider/initialModel. limiter is a token-bucket rate limit
// on generate calls shared across every backend; it limits how often
// calls start, not how many run at once.
func NewClient(providerSet map[Name]Provider, models map[Name][]ModelFamily, limiter *rate.Limiter, initialProvider Name, initialModel string) (*Client, error) {
	p, ok := providerSet[initialProvider]
	if !ok {
		return nil, fmt.Errorf("providers: unknown initial provider %q", initialProvider)
	}
	if initialModel == "" {
		initialModel = p.DefaultModel()
	}

	c := &Client{providers: providerSet, models: models, limiter: limiter}
	c.active.Store(&activeBackend{provider: p, model: initialModel})
	return c, nil
}

// Generate blocks the caller for up to ctx's deadline, per spec.md
// §4.2's "generate(request) -> response" contract.
func (c *Client) Generate(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	backend := c.active.Load()
	if req.Model == "" {
		req.Model = backend.model
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return ChatResponse{}, err
		}
	}
	return backend.provider.Generate(ctx, req)
}

// AvailableModels returns the provider -> family -> ordered model list
// mapping, per spec.md §4.2.
func (c *Client) AvailableModels() map[Name][]ModelFamily {
	return c.models
}

// Switch atomically swaps the active backend. A prior call's
// in-flight Generate already captured its own *activeBackend pointer,
// so it completes under the old provider/model unaffected by this
// store.
func (c *Client) Switch(provider Name, model string) error {
	p, ok := c.providers[provider]
	if !ok {
		return fmt.Errorf("providers: unknown provider %q", provider)
	}
	if model == "" {
		model = p.DefaultModel()
	}
	c.active.Store(&activeBackend{provider: p, model: model})
	return nil
}

// Current reports the provider/model the next Generate call will use.
func (c *Client) Current() (Name, string) {
	b := c.active.Load()
	return b.provider.Name(), b.model
}
