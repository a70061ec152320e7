package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fixyhq/fixy/internal/catalog"
	"github.com/tidwall/gjson"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient calls the OpenAI chat completions API. The system prompt
// travels as a leading system-role message.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewOpenAIClient constructs an OpenAIClient. An empty baseURL selects the
// production endpoint; tests point it at a local server.
func NewOpenAIClient(httpClient *http.Client, baseURL string) *OpenAIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = openAIDefaultBaseURL
	}
	return &OpenAIClient{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// Provider implements ProviderClient.
func (c *OpenAIClient) Provider() string { return catalog.ProviderOpenAI }

// Complete implements ProviderClient with a single network call.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]map[string]string, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		messages = append(messages, map[string]string{"role": msg.Role, "content": msg.Content})
	}

	body := map[string]any{
		"model":       req.ModelID,
		"messages":    messages,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	}
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return "", &ProviderError{Provider: c.Provider(), Message: "marshal request", Err: errMarshal}
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if errReq != nil {
		return "", &ProviderError{Provider: c.Provider(), Message: "build request", Err: errReq}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

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

	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		return "", &ProviderError{Provider: c.Provider(), Status: resp.StatusCode, Message: "empty completion"}
	}
	return content.String(), nil
}

// transportError classifies a network-level failure. Context cancellation and
// deadline expiry stay detectable through Unwrap.
func transportError(provider string, err error) *ProviderError {
	retryable := !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	return &ProviderError{Provider: provider, Message: err.Error(), Retryable: retryable, Err: err}
}

// statusError builds a ProviderError from a non-2xx response, pulling the
// provider's message field out of the raw body for logging.
func statusError(provider string, status int, raw []byte, messagePath string) *ProviderError {
	message := gjson.GetBytes(raw, messagePath).String()
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", status)
	}
	return &ProviderError{Provider: provider, Status: status, Message: message, Retryable: retryableStatus(status)}
}
