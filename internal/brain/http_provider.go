package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/abelbrown/roundup/internal/logging"
)

// Compile-time interface satisfaction check
var _ Provider = (*HTTPProvider)(nil)

// ProviderConfig defines how to communicate with an LLM API
type ProviderConfig struct {
	Name         string
	Endpoint     string
	APIKey       string
	Model        string
	AuthHeader   string            // "x-api-key" or "Authorization"
	AuthPrefix   string            // "" or "Bearer "
	ExtraHeaders map[string]string // Additional headers (e.g., anthropic-version)
	KeyOptional  bool              // local providers need no key

	// Request building
	BuildBody func(cfg *ProviderConfig, req Request) map[string]any

	// Response parsing
	ParseResponse func(body []byte) (content, model string, err error)
}

// TransportOptions tunes retries and the circuit breaker.
type TransportOptions struct {
	Timeout    time.Duration // per attempt
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// The breaker opens once BreakerFailures of the last BreakerWindow
	// calls failed, and stays open for BreakerDelay.
	BreakerFailures uint
	BreakerWindow   uint
	BreakerDelay    time.Duration
}

// DefaultTransportOptions returns sensible defaults.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		BaseDelay:       250 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BreakerFailures: 5,
		BreakerWindow:   8,
		BreakerDelay:    30 * time.Second,
	}
}

// StatusError is a non-200 reply from the provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Code, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// HTTPProvider is a generic HTTP-based LLM provider. Calls run through a
// retry policy with jittered backoff and a circuit breaker, so a provider
// that is down fails fast after a few calls.
type HTTPProvider struct {
	config   *ProviderConfig
	client   *http.Client
	executor failsafe.Executor[[]byte]
}

// NewHTTPProvider creates a provider from config
func NewHTTPProvider(cfg *ProviderConfig, opts TransportOptions) *HTTPProvider {
	breaker := circuitbreaker.NewBuilder[[]byte]().
		WithFailureThresholdRatio(opts.BreakerFailures, opts.BreakerWindow).
		WithDelay(opts.BreakerDelay).
		WithSuccessThreshold(1).
		HandleIf(func(_ []byte, err error) bool { return countsAsFailure(err) }).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			logging.Warn("provider circuit breaker", "provider", cfg.Name, "from", e.OldState, "to", e.NewState)
		}).
		Build()

	executor := failsafe.With[[]byte](breaker)
	if opts.MaxRetries > 0 {
		retry := retrypolicy.NewBuilder[[]byte]().
			WithBackoff(opts.BaseDelay, opts.MaxDelay).
			WithMaxRetries(opts.MaxRetries).
			WithJitterFactor(0.1).
			HandleIf(func(_ []byte, err error) bool { return countsAsFailure(err) }).
			ReturnLastFailure().
			Build()
		executor = failsafe.With[[]byte](retry, breaker)
	}

	return &HTTPProvider{
		config:   cfg,
		client:   &http.Client{Timeout: opts.Timeout},
		executor: executor,
	}
}

// countsAsFailure is true for transport errors and retryable statuses.
// Bad requests and cancellations are returned immediately.
func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded)
}

func (p *HTTPProvider) Name() string {
	return p.config.Name
}

func (p *HTTPProvider) Available() bool {
	if p.config.KeyOptional {
		return p.config.Model != ""
	}
	return p.config.APIKey != ""
}

func (p *HTTPProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if !p.Available() {
		return Response{}, fmt.Errorf("%s provider not configured", p.config.Name)
	}

	logging.Debug("HTTP provider request", "provider", p.config.Name, "model", p.config.Model)

	jsonBody, err := json.Marshal(p.config.BuildBody(p.config, req))
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := p.executor.WithContext(ctx).Get(func() ([]byte, error) {
		return p.post(ctx, jsonBody)
	})
	if err != nil {
		return Response{}, err
	}

	content, model, err := p.config.ParseResponse(respBody)
	if err != nil {
		return Response{}, fmt.Errorf("parse response: %w", err)
	}

	logging.Debug("API response", "provider", p.config.Name, "model", model, "content_len", len(content))

	return Response{
		Content:     content,
		Model:       model,
		RawResponse: string(respBody),
	}, nil
}

func (p *HTTPProvider) post(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.Error("API error", "provider", p.config.Name, "status", resp.StatusCode)
		return nil, &StatusError{Provider: p.config.Name, Code: resp.StatusCode, Body: truncateBody(respBody)}
	}
	return respBody, nil
}

func (p *HTTPProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")

	if p.config.AuthHeader != "" && p.config.APIKey != "" {
		req.Header.Set(p.config.AuthHeader, p.config.AuthPrefix+p.config.APIKey)
	}

	for k, v := range p.config.ExtraHeaders {
		req.Header.Set(k, v)
	}
}

func truncateBody(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
