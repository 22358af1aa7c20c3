package gemini

import (
	"context"
	"errors"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/pkg/fn"
	"github.com/WessleyAI/minesafe/pkg/resilience"
)

// DefaultEmbedModel is the embedding model used when none is configured.
const DefaultEmbedModel = "text-embedding-004"

// EmbedClient turns text into an embedding vector.
type EmbedClient struct {
	c     *Client
	model string
	retry fn.RetryOpts
}

// NewEmbedClient creates an embedding client on c. Transient failures
// (429, 5xx, transport errors) are retried with fn.DefaultRetry.
func NewEmbedClient(c *Client, model string) *EmbedClient {
	if model == "" {
		model = DefaultEmbedModel
	}
	retry := fn.DefaultRetry
	retry.Retryable = retryable
	return &EmbedClient{c: c, model: model, retry: retry}
}

// WithRetry returns a copy of the client using opts for retries. The
// transient-error predicate is kept when opts leaves it nil.
func (e *EmbedClient) WithRetry(opts fn.RetryOpts) *EmbedClient {
	if opts.Retryable == nil {
		opts.Retryable = retryable
	}
	cp := *e
	cp.retry = opts
	return &cp
}

type embedReq struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedResp struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding of text. Every failure is a *domain.EmbeddingError.
func (e *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	res := fn.Retry(ctx, e.retry, func(ctx context.Context) fn.Result[[]float32] {
		return fn.FromPair(e.embedOnce(ctx, text))
	})
	vals, err := res.Unwrap()
	if err != nil {
		var ee *domain.EmbeddingError
		if !errors.As(err, &ee) {
			err = &domain.EmbeddingError{Message: "request", Wrapped: err}
		}
		return nil, err
	}
	return vals, nil
}

func (e *EmbedClient) embedOnce(ctx context.Context, text string) ([]float32, error) {
	var out embedResp
	req := embedReq{Model: "models/" + e.model, Content: content{Parts: []part{{Text: text}}}}
	if err := e.c.post(ctx, e.model, "embedContent", req, &out); err != nil {
		var se *statusError
		switch {
		case errors.As(err, &se):
			return nil, &domain.EmbeddingError{Status: se.code, Message: se.body}
		case errors.Is(err, errMalformed):
			return nil, &domain.EmbeddingError{Message: err.Error()}
		}
		return nil, &domain.EmbeddingError{Message: "request", Wrapped: err}
	}
	if len(out.Embedding.Values) == 0 {
		return nil, &domain.EmbeddingError{Message: "response has no embedding values"}
	}
	return out.Embedding.Values, nil
}

func retryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ee *domain.EmbeddingError
	return errors.As(err, &ee) && ee.Temporary()
}
