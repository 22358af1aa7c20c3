package semantic

import (
	"context"
	"log/slog"

	"github.com/WessleyAI/minesafe/engine/domain"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts knowledge-base-filtered vector search.
type Searcher interface {
	SearchKB(ctx context.Context, kbID string, embedding []float32, topK int) ([]SearchResult, error)
}

// Fallback retrieves from another source when Qdrant cannot answer.
type Fallback interface {
	Retrieve(ctx context.Context, kb domain.KnowledgeBase, query string, k int) ([]domain.DocumentChunk, error)
}

// Retriever answers knowledge-base retrieval from Qdrant. When the query
// cannot be embedded, the search fails, or the knowledge base has no points,
// it asks the fallback instead.
type Retriever struct {
	search   Searcher
	embed    Embedder
	fallback Fallback
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. fallback may be nil.
func NewRetriever(search Searcher, embed Embedder, fallback Fallback, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{search: search, embed: embed, fallback: fallback, logger: logger}
}

// Retrieve returns up to k chunks of kb relevant to query.
func (r *Retriever) Retrieve(ctx context.Context, kb domain.KnowledgeBase, query string, k int) ([]domain.DocumentChunk, error) {
	vec, err := r.embed.Embed(ctx, query)
	if err != nil {
		return r.fallBack(ctx, kb, query, k, "embed", err)
	}
	hits, err := r.search.SearchKB(ctx, kb.ID, vec, k)
	if err != nil {
		return r.fallBack(ctx, kb, query, k, "search", err)
	}
	if len(hits) == 0 {
		return r.fallBack(ctx, kb, query, k, "empty", nil)
	}
	out := make([]domain.DocumentChunk, len(hits))
	for i, h := range hits {
		out[i] = domain.DocumentChunk{Text: h.Content, Similarity: float64(h.Score)}
	}
	return out, nil
}

func (r *Retriever) fallBack(ctx context.Context, kb domain.KnowledgeBase, query string, k int, stage string, cause error) ([]domain.DocumentChunk, error) {
	if r.fallback == nil {
		if cause == nil {
			return nil, nil
		}
		return nil, cause
	}
	r.logger.Warn("semantic: qdrant retrieval unavailable, using fallback", "kb", kb.ID, "stage", stage, "err", cause)
	return r.fallback.Retrieve(ctx, kb, query, k)
}
