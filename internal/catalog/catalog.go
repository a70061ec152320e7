// Package catalog is the static registry of AI models the platform can serve.
// Changing it is a deploy-time operation; nothing mutates it at runtime.
package catalog

// Provider identifiers for the supported upstream vendors.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// Model describes one catalog entry: provider routing, credit pricing, and
// plan/BYOK eligibility.
type Model struct {
	ID            string  `json:"id"`             // Catalog and provider-wire model identifier.
	Name          string  `json:"name"`           // Display name.
	Provider      string  `json:"provider"`       // Upstream provider identifier.
	CreditCost    float64 `json:"credit_cost"`    // Credits debited per reply; fractional.
	RequiresElite bool    `json:"requires_elite"` // Only Elite/Teams plans may use it.
	RequiresBYOK  bool    `json:"requires_byok"`  // An active user-supplied key is mandatory.
}

var models = []Model{
	{ID: "gpt-4o", Name: "GPT-4o", Provider: ProviderOpenAI, CreditCost: 2},
	{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Provider: ProviderOpenAI, CreditCost: 1},
	{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Provider: ProviderOpenAI, CreditCost: 0.2},
	{ID: "claude-3-opus", Name: "Claude 3 Opus", Provider: ProviderAnthropic, CreditCost: 3, RequiresElite: true, RequiresBYOK: true},
	{ID: "claude-3-sonnet", Name: "Claude 3 Sonnet", Provider: ProviderAnthropic, CreditCost: 1.5, RequiresElite: true, RequiresBYOK: true},
	{ID: "claude-3-haiku", Name: "Claude 3 Haiku", Provider: ProviderAnthropic, CreditCost: 0.5, RequiresBYOK: true},
	{ID: "gemini-pro", Name: "Gemini Pro", Provider: ProviderGoogle, CreditCost: 0.5, RequiresBYOK: true},
	{ID: "gemini-ultra", Name: "Gemini Ultra", Provider: ProviderGoogle, CreditCost: 2, RequiresElite: true, RequiresBYOK: true},
}

// List returns every catalog model in display order.
func List() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// Lookup returns the model with the given id.
func Lookup(id string) (Model, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// ValidProvider reports whether the provider identifier is supported.
func ValidProvider(provider string) bool {
	switch provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		return true
	}
	return false
}
