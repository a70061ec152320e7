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

const googleDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleClient calls the Gemini generateContent API. Assistant turns are
// labeled "model" and the system prompt becomes a synthetic leading turn.
type GoogleClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewGoogleClient constructs a GoogleClient. An empty baseURL selects the
// production endpoint.
func NewGoogleClient(httpClient *http.Client, baseURL string) *GoogleClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = googleDefaultBaseURL
	}
	return &GoogleClient{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// Provider implements ProviderClient.
func (c *GoogleClient) Provider() string { return catalog.ProviderGoogle }

// Complete implements ProviderClient with a single network call.
func (c *GoogleClient) Complete(ctx context.Context, req Request) (string, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role"`
		Parts []part `json:"parts"`
	}

	contents := make([]content, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		contents = append(contents, content{Role: "user", Parts: []part{{Text: req.SystemPrompt}}})
	}
	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: msg.Content}}})
	}

	body := map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"temperature":     req.Temperature,
			"maxOutputTokens": req.MaxTokens,
		},
	}
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return "", &ProviderError{Provider: c.Provider(), Message: "marshal request", Err: errMarshal}
	}

	url := c.baseURL + "/models/" + req.ModelID + ":generateContent?key=" + req.APIKey
	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if errReq != nil {
		return "", &ProviderError{Provider: c.Provider(), Message: "build request", Err: errReq}
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	text := gjson.GetBytes(raw, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		return "", &ProviderError{Provider: c.Provider(), Status: resp.StatusCode, Message: "empty completion"}
	}
	return text.String(), nil
}
