// Package classify implements the multi-provider AI-classification chain:
// prompt construction, HTTP completion calls, free-text JSON extraction,
// bounded retry, and degradation to a deterministic fallback.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leadscout/leadscout/internal/config"
)

// ProviderError is a typed failure from one completion provider. Retryable
// marks rate-limit and generic 4xx responses; everything else should move
// the chain to the next provider immediately.
type ProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v (status=%d retryable=%t)", e.Provider, e.Err, e.StatusCode, e.Retryable)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Provider is one completion endpoint. Complete returns the raw model text,
// which is expected (not guaranteed) to embed a JSON object.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// HTTPProvider reaches a remote completion service over HTTP with a fixed
// JSON body and a bearer key.
type HTTPProvider struct {
	cfg    config.ProviderConfig
	client *http.Client
}

// NewHTTPProvider builds a provider from configuration.
func NewHTTPProvider(cfg config.ProviderConfig) *HTTPProvider {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	return &HTTPProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the configured provider name.
func (p *HTTPProvider) Name() string { return p.cfg.Name }

type completionRequest struct {
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

// Complete posts the prompt and returns the completion text. Non-2xx
// responses become ProviderErrors classified for retryability.
func (p *HTTPProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       p.cfg.Model,
		Prompt:      prompt,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	})
	if err != nil {
		return "", &ProviderError{Provider: p.cfg.Name, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Provider: p.cfg.Name, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: p.cfg.Name, Err: fmt.Errorf("send completion: %w", err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &ProviderError{Provider: p.cfg.Name, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{
			Provider:   p.cfg.Name,
			StatusCode: resp.StatusCode,
			Retryable:  isRetryableStatus(resp.StatusCode),
			Err:        fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(payload))),
		}
	}

	return unwrapCompletion(payload), nil
}

// isRetryableStatus marks rate limiting and generic client errors as worth
// retrying against the same provider. Server errors are not retried; the
// next provider takes over.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 400 && code < 500)
}

// unwrapCompletion pulls the text out of common completion envelopes. When
// the body is not a recognizable envelope the raw text is returned and the
// extraction layer deals with it.
func unwrapCompletion(payload []byte) string {
	var envelope struct {
		Completion string `json:"completion"`
		Text       string `json:"text"`
		Response   string `json:"response"`
		Choices    []struct {
			Text    string `json:"text"`
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil {
		switch {
		case envelope.Completion != "":
			return envelope.Completion
		case envelope.Text != "":
			return envelope.Text
		case envelope.Response != "":
			return envelope.Response
		case len(envelope.Choices) > 0 && envelope.Choices[0].Message.Content != "":
			return envelope.Choices[0].Message.Content
		case len(envelope.Choices) > 0 && envelope.Choices[0].Text != "":
			return envelope.Choices[0].Text
		}
	}
	return string(payload)
}

// IsRetryable reports whether err is a retryable provider failure. Context
// cancellation is never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
