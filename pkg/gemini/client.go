// Package gemini provides HTTP clients for the Gemini-style embedContent and
// generateContent endpoints used by the analysis pipeline.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/WessleyAI/minesafe/pkg/resilience"
)

// DefaultBaseURL is the public Generative Language API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Options configures the shared transport used by EmbedClient and GenerateClient.
type Options struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each individual HTTP call. Zero means no per-call bound
	// beyond the caller's context.
	Timeout    time.Duration
	HTTPClient *http.Client
	Limiter    *resilience.Limiter
	Breaker    *resilience.Breaker
	Logger     *slog.Logger
}

// Client is the transport shared by the embedding and generation clients.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	limiter *resilience.Limiter
	breaker *resilience.Breaker
	logger  *slog.Logger
}

// NewClient creates a Client. Nil limiter or breaker disables that layer.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		limiter: opts.Limiter,
		breaker: opts.Breaker,
		logger:  opts.Logger,
	}
}

// errMalformed marks a 2xx reply whose body could not be decoded.
var errMalformed = errors.New("malformed response")

// statusError is returned by post for non-2xx replies.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string { return fmt.Sprintf("status %d: %s", e.code, e.body) }

// post sends body as JSON to {base}/models/{model}:{method} and decodes the
// reply into out. It applies the limiter, breaker, and per-call timeout.
func (c *Client) post(ctx context.Context, model, method string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	call := func(ctx context.Context) error { return c.do(ctx, model, method, body, out) }
	if c.breaker != nil {
		return c.breaker.Call(ctx, call)
	}
	return call(ctx)
}

func (c *Client) do(ctx context.Context, model, method string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:%s", c.baseURL, model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("gemini call failed", "method", method, "model", model, "status", resp.StatusCode, "duration", time.Since(start))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	c.logger.Debug("gemini call", "method", method, "model", model, "duration", time.Since(start))
	return nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}
