package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/engine/index"
	"github.com/WessleyAI/minesafe/pkg/fn"
)

// Writer is the subset of VectorStore used by Sync.
type Writer interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	DeleteStale(ctx context.Context, kbID, hash string) error
}

// ErrNothingEmbedded is returned when every chunk of a knowledge base failed
// to embed. The stored points are left untouched.
var ErrNothingEmbedded = errors.New("semantic: no chunk embedded")

// SyncStats summarizes one knowledge base's ingestion.
type SyncStats struct {
	KBID     string
	Chunks   int
	Upserted int
	Failed   int
}

// Sync replaces the stored chunks of kb with freshly embedded ones. Chunks
// whose embedding fails are skipped and counted in Failed. New points are
// written before stale ones are removed, so searches never see an empty
// knowledge base mid-sync.
func Sync(ctx context.Context, w Writer, embed Embedder, kb domain.KnowledgeBase, workers int, logger *slog.Logger) (SyncStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	chunks := index.Split(kb.Content)
	stats := SyncStats{KBID: kb.ID, Chunks: len(chunks)}
	hash := index.ContentHash(kb.Content)

	type embedded struct {
		i   int
		vec []float32
		err error
	}
	results := fn.ParMap(chunks, workers, func(i int, c string) embedded {
		vec, err := embed.Embed(ctx, c)
		return embedded{i: i, vec: vec, err: err}
	})

	records := make([]VectorRecord, 0, len(chunks))
	for _, r := range results {
		if r.err != nil {
			stats.Failed++
			logger.Warn("semantic: chunk embedding failed", "kb", kb.ID, "chunk", r.i, "err", r.err)
			continue
		}
		records = append(records, ChunkRecord(kb.ID, hash, r.i, chunks[r.i], r.vec))
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	if len(records) == 0 && stats.Chunks > 0 {
		return stats, fmt.Errorf("semantic: sync %s: %w", kb.ID, ErrNothingEmbedded)
	}

	if err := w.Upsert(ctx, records); err != nil {
		return stats, fmt.Errorf("semantic: sync %s: %w", kb.ID, err)
	}
	stats.Upserted = len(records)
	if err := w.DeleteStale(ctx, kb.ID, hash); err != nil {
		return stats, fmt.Errorf("semantic: sync %s: %w", kb.ID, err)
	}
	logger.Info("semantic: kb synced", "kb", kb.ID, "chunks", stats.Chunks, "upserted", stats.Upserted, "failed", stats.Failed)
	return stats, nil
}
