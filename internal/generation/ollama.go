package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"sparserag/internal/domain"
	"sparserag/internal/resilience"
)

const (
	DefaultBaseURL = "http://127.0.0.1:11434"
	DefaultModel   = "llama3.2:1b-instruct-fp16"

	generatePath = "/api/generate"
)

// StatusError reports a non-2xx answer to the submit request.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return domain.ErrBackend }

// OllamaClient submits prompts to an Ollama server and hands back the raw
// NDJSON response stream. Only the submit phase is retried; once the body
// is returned the caller owns it.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	retry      resilience.RetryPolicy
	breaker    *resilience.Breaker
	logger     *slog.Logger
}

// Option configures an OllamaClient.
type Option func(*OllamaClient)

// WithBaseURL sets the server address. A trailing slash or /v1 suffix is
// stripped.
func WithBaseURL(url string) Option {
	return func(c *OllamaClient) {
		if url == "" {
			return
		}
		url = strings.TrimSuffix(url, "/")
		c.baseURL = strings.TrimSuffix(url, "/v1")
	}
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(c *OllamaClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OllamaClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds how long the server may take to start answering.
// It does not limit the length of the stream itself.
func WithTimeout(d time.Duration) Option {
	return func(c *OllamaClient) {
		if d > 0 {
			c.httpClient = newHTTPClient(d)
		}
	}
}

// WithRetry sets the submit retry policy.
func WithRetry(p resilience.RetryPolicy) Option {
	return func(c *OllamaClient) {
		retryable := c.retry.Retryable
		c.retry = p
		if c.retry.Retryable == nil {
			c.retry.Retryable = retryable
		}
	}
}

// WithBreaker replaces the circuit breaker guarding the submit phase.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *OllamaClient) {
		if b != nil {
			c.breaker = b
		}
	}
}

// NewOllamaClient returns a client for the default local server unless
// options say otherwise.
func NewOllamaClient(opts ...Option) *OllamaClient {
	c := &OllamaClient{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: newHTTPClient(60 * time.Second),
		retry:      resilience.RetryPolicy{Retryable: retryableSubmit},
		breaker: resilience.NewBreaker("ollama", resilience.BreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     15 * time.Second,
			Counts:           func(err error) bool { return errors.Is(err, domain.ErrBackendUnreachable) },
		}),
		logger: slog.Default().With("component", "ollama"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(headerTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			ResponseHeaderTimeout: headerTimeout,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// Model returns the default model id.
func (c *OllamaClient) Model() string { return c.model }

type generatePayload struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options *generateOption `json:"options,omitempty"`
}

type generateOption struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// Open submits req and returns the streaming response body.
func (c *OllamaClient) Open(ctx context.Context, req domain.GenerateRequest) (io.ReadCloser, error) {
	payload := generatePayload{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: true,
	}
	if payload.Model == "" {
		payload.Model = c.model
	}
	if req.TargetTokens > 0 {
		payload.Options = &generateOption{NumPredict: req.TargetTokens}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}

	var stream io.ReadCloser
	err = resilience.Retry(ctx, "ollama submit", c.retry, func(ctx context.Context) error {
		return c.breaker.Execute(func() error {
			rc, err := c.submit(ctx, body)
			if err != nil {
				return err
			}
			stream = rc
			return nil
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.Cancelled(ctx.Err())
		}
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnreachable, err)
		}
		return nil, err
	}
	c.logger.Debug("stream opened", "model", payload.Model, "num_predict", req.TargetTokens)
	return stream, nil
}

func (c *OllamaClient) submit(ctx context.Context, body []byte) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrBackend, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.Cancelled(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrBackendUnreachable, c.baseURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return resp.Body, nil
}

// retryableSubmit retries connection failures and 5xx answers. Client errors
// and an open circuit are returned immediately.
func retryableSubmit(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, domain.ErrCancelled) {
		return false
	}
	if errors.Is(err, domain.ErrBackendUnreachable) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 500
}
