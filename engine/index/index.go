package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"slices"
	"sync"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/pkg/fn"
	"github.com/WessleyAI/minesafe/pkg/metrics"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configures an Index.
type Options struct {
	// Workers bounds concurrent chunk embeddings during Build.
	Workers int
	Logger  *slog.Logger
	Metrics *metrics.Analysis
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{Workers: 4}
}

// Index is an in-memory similarity index over one knowledge-base text.
// Build and Clear are serialized against Retrieve.
type Index struct {
	embed  Embedder
	opts   Options
	logger *slog.Logger

	buildMu sync.Mutex // one Build at a time

	mu     sync.RWMutex
	chunks []domain.DocumentChunk
	hash   string
}

// New creates an empty Index.
func New(embed Embedder, opts Options) *Index {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{embed: embed, opts: opts, logger: logger}
}

// ContentHash returns the hex SHA-256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Build splits text into chunks and embeds each one. It is a no-op when the
// index already holds text with the same content hash, and a full rebuild
// otherwise. A chunk whose embedding fails is kept without one. When no chunk
// could be embedded the chunks are kept but the hash is not, so the next
// Build tries again.
func (ix *Index) Build(ctx context.Context, text string) error {
	hash := ContentHash(text)

	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	if ix.Hash() == hash {
		return nil
	}

	pieces := Split(text)
	chunks := fn.ParMap(pieces, ix.opts.Workers, func(_ int, p string) domain.DocumentChunk {
		vec, err := ix.embed.Embed(ctx, p)
		if err != nil {
			ix.logger.Warn("index: chunk embedding failed, keeping unembedded", "err", err, "chunk_len", len(p))
			if ix.opts.Metrics != nil {
				ix.opts.Metrics.EmbedFailures.Inc()
			}
			return domain.DocumentChunk{Text: p}
		}
		return domain.DocumentChunk{Text: p, Embedding: vec}
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	embedded := countEmbedded(chunks)
	if embedded == 0 && len(chunks) > 0 {
		hash = ""
		ix.logger.Warn("index: no chunk embedded, will rebuild on next use", "chunks", len(chunks))
	}

	ix.mu.Lock()
	ix.chunks = chunks
	ix.hash = hash
	ix.mu.Unlock()

	ix.logger.Info("index built", "chunks", len(chunks), "embedded", embedded)
	return nil
}

// Clear empties the index so the next Build repopulates it.
func (ix *Index) Clear() {
	ix.mu.Lock()
	ix.chunks = nil
	ix.hash = ""
	ix.mu.Unlock()
}

// Len returns the number of chunks held.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Hash returns the content hash of the indexed text, or "" when empty.
func (ix *Index) Hash() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.hash
}

// Built reports whether the index holds a built text.
func (ix *Index) Built() bool { return ix.Hash() != "" }

// Chunks returns a copy of the indexed chunks in insertion order.
func (ix *Index) Chunks() []domain.DocumentChunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return slices.Clone(ix.chunks)
}

// Retrieve returns up to k chunks ranked by cosine similarity to query,
// highest first, ties in insertion order. Only embedded chunks are ranked.
// If the query cannot be embedded, the first k chunks are returned unranked.
func (ix *Index) Retrieve(ctx context.Context, query string, k int) []domain.DocumentChunk {
	if k <= 0 {
		return nil
	}
	qv, err := ix.embed.Embed(ctx, query)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err != nil {
		ix.logger.Warn("index: query embedding failed, returning unranked chunks", "err", err)
		return slices.Clone(ix.chunks[:min(k, len(ix.chunks))])
	}

	ranked := make([]domain.DocumentChunk, 0, len(ix.chunks))
	for _, c := range ix.chunks {
		if !c.HasEmbedding() {
			continue
		}
		c.Similarity = CosineSimilarity(qv, c.Embedding)
		ranked = append(ranked, c)
	}
	slices.SortStableFunc(ranked, func(a, b domain.DocumentChunk) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})
	return ranked[:min(k, len(ranked))]
}

func countEmbedded(chunks []domain.DocumentChunk) int {
	n := 0
	for _, c := range chunks {
		if c.HasEmbedding() {
			n++
		}
	}
	return n
}
