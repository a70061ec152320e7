package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/fixyhq/fixy/internal/catalog"
	"github.com/tidwall/gjson"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
)

// AnthropicClient calls the Anthropic messages API. The system prompt is a
// separate top-level field, not a message role.
type AnthropicClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewAnthropicClient constructs an AnthropicClient. An empty baseURL selects
// the production endpoint.
func NewAnthropicClient(httpClient *http.Client, baseURL string) *AnthropicClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &AnthropicClient{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// Provider implements ProviderClient.
func (c *AnthropicClient) Provider() string { return catalog.ProviderAnthropic }

// Complete implements ProviderClient with a single network call.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]map[string]string, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, map[string]string{"role": role, "content": msg.Content})
	}

	body := map[string]any{
		"model":       req.ModelID,
		"messages":    messages,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return "", &ProviderError{Provider: c.Provider(), Message: "marshal request", Err: errMarshal}
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if errReq != nil {
		return "", &ProviderError{Provider: c.Provider(), Message: "build request", Err: errReq}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, errDo := c.httpClient.Do(httpReq)
	if errDo != nil {
		return "", transportError(c.Provider(), errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return "", transportError(c.Provider(), errRead)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(c.Provider(), resp.StatusCode, raw, "error.message")
	}

	content := gjson.GetBytes(raw, "content.0.text")
	if !content.Exists() {
		return "", &ProviderError{Provider: c.Provider(), Status: resp.StatusCode, Message: "empty completion"}
	}
	return content.String(), nil
}
