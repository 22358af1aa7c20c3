package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/engine/kbstore"
	"github.com/WessleyAI/minesafe/engine/semantic"
)

type memWriter struct {
	upserts map[string]int
	deletes int
}

func (m *memWriter) DeleteStale(context.Context, string, string) error { m.deletes++; return nil }

func (m *memWriter) Upsert(_ context.Context, recs []semantic.VectorRecord) error {
	for _, r := range recs {
		m.upserts[r.KBID]++
	}
	return nil
}

type flakyEmbedder struct{ fail bool }

func (f *flakyEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.fail {
		return nil, errors.New("quota")
	}
	return []float32{1, 0, 0}, nil
}

func newTestSyncer(emb semantic.Embedder) (*syncer, *memWriter) {
	w := &memWriter{upserts: map[string]int{}}
	return &syncer{
		store:   kbstore.NewStaticStore(kbstore.Defaults()),
		writer:  w,
		embed:   emb,
		workers: 2,
		hashes:  map[string]string{},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, w
}

func TestSyncAllSkipsUnchanged(t *testing.T) {
	s, w := newTestSyncer(&flakyEmbedder{})
	ctx := context.Background()
	if err := s.syncAll(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if len(w.upserts) != len(kbstore.Defaults()) {
		t.Fatalf("expected every kb upserted, got %v", w.upserts)
	}
	deletes := w.deletes
	if err := s.syncAll(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if w.deletes != deletes {
		t.Fatal("unchanged knowledge bases should be skipped")
	}
}

func TestSyncOneRetriesAfterEmbeddingOutage(t *testing.T) {
	emb := &flakyEmbedder{fail: true}
	s, w := newTestSyncer(emb)
	kb := domain.KnowledgeBase{ID: "kb", Content: "A paragraph long enough to survive the chunk splitter minimum length rule."}
	if err := s.syncOne(context.Background(), kb); !errors.Is(err, semantic.ErrNothingEmbedded) {
		t.Fatalf("expected ErrNothingEmbedded, got %v", err)
	}
	if w.deletes != 0 || w.upserts["kb"] != 0 {
		t.Fatal("an outage must leave stored points alone")
	}
	if s.hashes["kb"] != "" {
		t.Fatal("a failed sync should not be remembered")
	}
	emb.fail = false
	if err := s.syncOne(context.Background(), kb); err != nil {
		t.Fatal(err)
	}
	if s.hashes["kb"] == "" {
		t.Fatal("a clean sync should be remembered")
	}
}

func TestSyncAllUnknownKB(t *testing.T) {
	s, _ := newTestSyncer(&flakyEmbedder{})
	if err := s.syncAll(context.Background(), []string{"nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSplitIDs(t *testing.T) {
	got := splitIDs(" golden-rules, ,risk-matrix,")
	if len(got) != 2 || got[0] != "golden-rules" || got[1] != "risk-matrix" {
		t.Fatalf("unexpected ids %v", got)
	}
	if splitIDs("") != nil {
		t.Fatal("empty flag should select all")
	}
}
