// Package gateway normalizes the three upstream chat-completion protocols
// behind one call signature and one error type. A gateway call performs
// exactly one network request; retry policy belongs to the caller.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fixyhq/fixy/internal/catalog"
)

// Chat roles used in the normalized request shape.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversation context, oldest-first.
type Message struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// Request carries everything a provider call needs. APIKey is the resolved
// credential; it must never be logged.
type Request struct {
	ModelID      string
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
	APIKey       string
}

// Completion defaults applied when the agent config leaves fields unset.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
)

// ProviderError describes an upstream completion failure. Retryable marks
// rate limits, 5xx responses, and transport errors; credential and request
// shape problems are terminal.
type ProviderError struct {
	Provider  string
	Status    int
	Message   string
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("gateway: %s: status=%d retryable=%t: %s", e.Provider, e.Status, e.Retryable, e.Message)
}

// Unwrap returns the transport-level cause, if any.
func (e *ProviderError) Unwrap() error { return e.Err }

// ProviderClient performs a single chat completion against one provider.
type ProviderClient interface {
	Provider() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Gateway routes completion requests to the registered provider clients.
type Gateway struct {
	clients map[string]ProviderClient
}

// New constructs a Gateway with the three standard provider clients sharing
// one HTTP client. The HTTP client's timeout bounds each provider call.
func New(httpClient *http.Client) *Gateway {
	g := &Gateway{clients: make(map[string]ProviderClient)}
	g.Register(NewOpenAIClient(httpClient, ""))
	g.Register(NewAnthropicClient(httpClient, ""))
	g.Register(NewGoogleClient(httpClient, ""))
	return g
}

// Register adds or replaces the client for a provider.
func (g *Gateway) Register(client ProviderClient) {
	if client == nil {
		return
	}
	g.clients[client.Provider()] = client
}

// Complete dispatches one completion call to the provider's client.
func (g *Gateway) Complete(ctx context.Context, provider string, req Request) (string, error) {
	if !catalog.ValidProvider(provider) {
		return "", &ProviderError{Provider: provider, Message: "unknown provider"}
	}
	client, ok := g.clients[provider]
	if !ok {
		return "", &ProviderError{Provider: provider, Message: "no client registered"}
	}
	if req.Temperature <= 0 {
		req.Temperature = defaultTemperature
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	return client.Complete(ctx, req)
}

// retryableStatus reports whether an HTTP status warrants a retry.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
