package brain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/abelbrown/roundup/internal/config"
)

func fastOptions() TransportOptions {
	return TransportOptions{
		Timeout:         2 * time.Second,
		MaxRetries:      2,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BreakerFailures: 50,
		BreakerWindow:   50,
		BreakerDelay:    time.Minute,
	}
}

func claudeServer(t *testing.T, status func(n int32) int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}
		if code := status(n); code != http.StatusOK {
			w.WriteHeader(code)
			w.Write([]byte(`{"error":"nope"}`))
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["system"] != "sys" {
			t.Errorf("system prompt = %v", body["system"])
		}
		w.Write([]byte(`{"model":"claude-test","content":[{"type":"text","text":"{\"section\":\"politics\"}"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newClaude(url string, opts TransportOptions) *HTTPProvider {
	cfg := ClaudeConfig(config.ModelSettings{APIKey: "sk-test", Endpoint: url})
	return NewHTTPProvider(cfg, opts)
}

func TestGenerateParsesClaudeResponse(t *testing.T) {
	srv, hits := claudeServer(t, func(int32) int { return http.StatusOK })
	p := newClaude(srv.URL, fastOptions())

	resp, err := p.Generate(context.Background(), Request{SystemPrompt: "sys", UserPrompt: "classify"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != `{"section":"politics"}` || resp.Model != "claude-test" {
		t.Errorf("response = %+v", resp)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	srv, hits := claudeServer(t, func(n int32) int {
		if n <= 2 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	})
	p := newClaude(srv.URL, fastOptions())

	if _, err := p.Generate(context.Background(), Request{SystemPrompt: "sys"}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestGenerateDoesNotRetryBadRequest(t *testing.T) {
	srv, hits := claudeServer(t, func(int32) int { return http.StatusBadRequest })
	p := newClaude(srv.URL, fastOptions())

	_, err := p.Generate(context.Background(), Request{})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 StatusError, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	srv, hits := claudeServer(t, func(int32) int { return http.StatusInternalServerError })
	opts := fastOptions()
	opts.MaxRetries = 0
	opts.BreakerFailures = 3
	opts.BreakerWindow = 3
	p := newClaude(srv.URL, opts)

	for i := 0; i < 3; i++ {
		if _, err := p.Generate(context.Background(), Request{}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	_, err := p.Generate(context.Background(), Request{})
	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Errorf("expected breaker open, got %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3 (open breaker must not call the server)", hits.Load())
	}
}

func TestAvailability(t *testing.T) {
	if ClaudeProvider := NewHTTPProvider(ClaudeConfig(config.ModelSettings{}), fastOptions()); ClaudeProvider.Available() {
		t.Error("claude without key should be unavailable")
	}
	ollama := NewHTTPProvider(OllamaConfig(config.ModelSettings{Model: "llama3.2", Endpoint: "http://127.0.0.1:1"}), fastOptions())
	if !ollama.Available() {
		t.Error("ollama with a model should be available without a key")
	}
}

func TestManagerPrefersConfiguredProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Models.Claude = config.ModelSettings{Enabled: true, APIKey: "a"}
	cfg.Models.OpenAI = config.ModelSettings{Enabled: true, APIKey: "b"}
	cfg.PreferredModel = "openai"

	pm := NewManagerFromConfig(cfg, fastOptions(), nil)
	if got := pm.Pick(); got == nil || got.Name() != "openai" {
		t.Fatalf("Pick = %v, want openai", got)
	}
	if names := pm.Names(); len(names) != 2 {
		t.Errorf("Names = %v", names)
	}

	cfg.Models.OpenAI.APIKey = ""
	pm = NewManagerFromConfig(cfg, fastOptions(), nil)
	if got := pm.Pick(); got == nil || got.Name() != "claude" {
		t.Errorf("fallback provider = %v, want claude", got)
	}
}
