package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fixyhq/fixy/internal/catalog"
	"github.com/tidwall/gjson"
)

func testRequest() Request {
	return Request{
		ModelID:      "gpt-4o",
		SystemPrompt: "You are terse.",
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi"},
			{Role: RoleUser, Content: "bye"},
		},
		Temperature: 0.5,
		MaxTokens:   128,
		APIKey:      "sk-test",
	}
}

func TestOpenAIClient_WireShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		if got := gjson.GetBytes(raw, "messages.0.role").String(); got != "system" {
			t.Errorf("expected leading system message, got role %q", got)
		}
		if got := gjson.GetBytes(raw, "messages.0.content").String(); got != "You are terse." {
			t.Errorf("system prompt missing, got %q", got)
		}
		if got := gjson.GetBytes(raw, "messages.#").Int(); got != 4 {
			t.Errorf("expected 4 messages, got %d", got)
		}
		if got := gjson.GetBytes(raw, "max_tokens").Int(); got != 128 {
			t.Errorf("expected max_tokens=128, got %d", got)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"pong"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.Client(), server.URL)
	content, errComplete := client.Complete(context.Background(), testRequest())
	if errComplete != nil {
		t.Fatalf("complete: %v", errComplete)
	}
	if content != "pong" {
		t.Fatalf("expected pong, got %q", content)
	}
}

func TestAnthropicClient_WireShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-test" {
			t.Errorf("unexpected api key header %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Errorf("missing anthropic-version header")
		}
		raw, _ := io.ReadAll(r.Body)
		if got := gjson.GetBytes(raw, "system").String(); got != "You are terse." {
			t.Errorf("expected top-level system field, got %q", got)
		}
		if got := gjson.GetBytes(raw, "messages.#").Int(); got != 3 {
			t.Errorf("expected 3 messages, got %d", got)
		}
		if got := gjson.GetBytes(raw, "messages.1.role").String(); got != "assistant" {
			t.Errorf("expected assistant role, got %q", got)
		}
		_, _ = w.Write([]byte(`{"content":[{"text":"pong"}]}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(server.Client(), server.URL)
	content, errComplete := client.Complete(context.Background(), testRequest())
	if errComplete != nil {
		t.Fatalf("complete: %v", errComplete)
	}
	if content != "pong" {
		t.Fatalf("expected pong, got %q", content)
	}
}

func TestGoogleClient_WireShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-pro:generateContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "sk-test" {
			t.Errorf("expected key query parameter, got %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		// The system prompt becomes a synthetic leading user turn.
		if got := gjson.GetBytes(raw, "contents.0.parts.0.text").String(); got != "You are terse." {
			t.Errorf("expected system prompt as first turn, got %q", got)
		}
		if got := gjson.GetBytes(raw, "contents.2.role").String(); got != "model" {
			t.Errorf("expected assistant mapped to model role, got %q", got)
		}
		if got := gjson.GetBytes(raw, "generationConfig.maxOutputTokens").Int(); got != 128 {
			t.Errorf("expected maxOutputTokens=128, got %d", got)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"pong"}]}}]}`))
	}))
	defer server.Close()

	req := testRequest()
	req.ModelID = "gemini-pro"
	client := NewGoogleClient(server.Client(), server.URL)
	content, errComplete := client.Complete(context.Background(), req)
	if errComplete != nil {
		t.Fatalf("complete: %v", errComplete)
	}
	if content != "pong" {
		t.Fatalf("expected pong, got %q", content)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true},
		{"server error", http.StatusBadGateway, `{}`, true},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, false},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad shape"}}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewOpenAIClient(server.Client(), server.URL)
			_, errComplete := client.Complete(context.Background(), testRequest())

			var provErr *ProviderError
			if !errors.As(errComplete, &provErr) {
				t.Fatalf("expected ProviderError, got %v", errComplete)
			}
			if provErr.Retryable != tc.retryable {
				t.Fatalf("expected retryable=%t, got %+v", tc.retryable, provErr)
			}
			if provErr.Status != tc.status {
				t.Fatalf("expected status=%d, got %d", tc.status, provErr.Status)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background connection read;
		// otherwise r.Context() is never cancelled and server.Close() hangs.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewOpenAIClient(server.Client(), server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, errComplete := client.Complete(ctx, testRequest())
	if errComplete == nil {
		t.Fatalf("expected timeout error")
	}
	var provErr *ProviderError
	if !errors.As(errComplete, &provErr) {
		t.Fatalf("expected ProviderError, got %v", errComplete)
	}
	if provErr.Retryable {
		t.Fatalf("expected deadline expiry to be terminal, got %+v", provErr)
	}
	if !errors.Is(errComplete, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded through Unwrap, got %v", errComplete)
	}
}

func TestGateway_Dispatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"pong"}}]}`))
	}))
	defer server.Close()

	g := New(server.Client())
	g.Register(NewOpenAIClient(server.Client(), server.URL))

	content, errComplete := g.Complete(context.Background(), catalog.ProviderOpenAI, Request{ModelID: "gpt-4o", APIKey: "sk"})
	if errComplete != nil {
		t.Fatalf("complete: %v", errComplete)
	}
	if content != "pong" {
		t.Fatalf("expected pong, got %q", content)
	}

	if _, errUnknown := g.Complete(context.Background(), "azure", Request{}); errUnknown == nil {
		t.Fatalf("expected unknown provider to fail")
	}
}

func TestGateway_AppliesDefaults(t *testing.T) {
	var gotTemperature float64
	var gotMaxTokens int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotTemperature = gjson.GetBytes(raw, "temperature").Float()
		gotMaxTokens = gjson.GetBytes(raw, "max_tokens").Int()
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"pong"}}]}`))
	}))
	defer server.Close()

	g := New(server.Client())
	g.Register(NewOpenAIClient(server.Client(), server.URL))

	if _, errComplete := g.Complete(context.Background(), catalog.ProviderOpenAI, Request{ModelID: "gpt-4o", APIKey: "sk"}); errComplete != nil {
		t.Fatalf("complete: %v", errComplete)
	}
	if gotTemperature != 0.7 {
		t.Fatalf("expected default temperature 0.7, got %v", gotTemperature)
	}
	if gotMaxTokens != 1000 {
		t.Fatalf("expected default max_tokens 1000, got %d", gotMaxTokens)
	}
}
