package rag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/engine/index"
	"github.com/WessleyAI/minesafe/pkg/metrics"
)

// --- mocks ---

type mockEmbedder struct {
	vecs map[string][]float32
	err  error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vecs[text]; ok {
		return v, nil
	}
	return []float32{0, 1}, nil
}

type mockGenerator struct {
	mu      sync.Mutex
	gen     domain.Generation
	err     error
	prompts []string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (domain.Generation, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.gen, m.err
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

const (
	chunkA = "Ground control: loose rock on the highwall must be scaled before work resumes below it."
	chunkB = "Vehicle interaction: light vehicles must keep a safe distance from haul trucks at all times."
	hazard = "Loose rock observed on the highwall above the loading area"
)

func kbText() string { return chunkA + "\n\n" + chunkB }

func newIndex(emb index.Embedder) *index.Index {
	return index.New(emb, index.Options{Workers: 2, Logger: quietLogger()})
}

// --- Service ---

func TestAnalyzeSuccess(t *testing.T) {
	emb := &mockEmbedder{vecs: map[string][]float32{
		hazard: {1, 0},
		chunkA: {1, 0.1},
		chunkB: {0, 1},
	}}
	gen := &mockGenerator{gen: domain.Generation{Text: "KATEGORI: Ground Control\nCONFIDENCE: 85%\nALASAN: loose rock", FinishReason: "STOP"}}
	reg := metrics.New()
	svc := New(gen, Options{TopK: 3, Metrics: metrics.NewAnalysis(reg)}, quietLogger())

	res, err := svc.Analyze(context.Background(), newIndex(emb), hazard, kbText(), "CTX:\n{RETRIEVED_CONTEXT}\nIN:{USER_INPUT}")
	if err != nil {
		t.Fatal(err)
	}
	if res.Category != "Ground Control" || res.Confidence != "85%" || res.Reasoning != "loose rock" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.RetrievedContext) != 2 || res.RetrievedContext[0].Text != chunkA {
		t.Fatalf("expected chunkA ranked first, got %+v", res.RetrievedContext)
	}
	if res.FullResponse != gen.gen.Text || res.Truncated {
		t.Fatal("full response not carried")
	}
	p := gen.prompts[0]
	if !strings.Contains(p, "Context 1: "+chunkA) || !strings.Contains(p, "IN:"+hazard) {
		t.Fatalf("prompt not composed: %q", p)
	}
	if !strings.Contains(reg.Render(), `minesafe_analyses_total{outcome="ok"} 1`) {
		t.Fatalf("expected ok outcome recorded:\n%s", reg.Render())
	}
}

func TestAnalyzeReusesIndex(t *testing.T) {
	emb := &countingEmbedder{}
	gen := &mockGenerator{gen: domain.Generation{Text: "KATEGORI: X"}}
	svc := New(gen, DefaultOptions(), quietLogger())
	ix := newIndex(emb)

	svc.Analyze(context.Background(), ix, hazard, kbText(), "")
	svc.Analyze(context.Background(), ix, hazard, kbText(), "")
	// 2 chunks once, plus one query per call.
	if emb.n != 4 {
		t.Fatalf("expected 4 embed calls, got %d", emb.n)
	}
}

type countingEmbedder struct {
	mu sync.Mutex
	n  int
}

func (c *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return []float32{1}, nil
}

func TestAnalyzeTruncated(t *testing.T) {
	gen := &mockGenerator{gen: domain.Generation{Text: "KATEGORI: Foo", FinishReason: domain.FinishReasonMaxTokens}}
	svc := New(gen, DefaultOptions(), quietLogger())
	res, err := svc.Analyze(context.Background(), newIndex(&mockEmbedder{}), hazard, kbText(), "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Category != "Foo (Partial)" || res.Confidence != domain.ConfidenceTruncated || !res.Truncated {
		t.Fatalf("truncation not flagged: %+v", res)
	}
}

func TestAnalyzeEmptyKnowledgeBaseUsesPlaceholder(t *testing.T) {
	gen := &mockGenerator{gen: domain.Generation{Text: "KATEGORI: X"}}
	svc := New(gen, DefaultOptions(), quietLogger())
	if _, err := svc.Analyze(context.Background(), newIndex(&mockEmbedder{}), hazard, "", "{RETRIEVED_CONTEXT}"); err != nil {
		t.Fatal(err)
	}
	if gen.prompts[0] != domain.NoContextPlaceholder {
		t.Fatalf("expected context placeholder, got %q", gen.prompts[0])
	}
}

func TestAnalyzeErrors(t *testing.T) {
	genErr := &domain.GenerationError{Status: 500, Message: "boom"}
	tests := []struct {
		name   string
		hazard string
		ix     *index.Index
		gen    *mockGenerator
		target error
	}{
		{"generation failure", hazard, newIndex(&mockEmbedder{}), &mockGenerator{err: genErr}, genErr},
		{"empty hazard", "  ", newIndex(&mockEmbedder{}), &mockGenerator{}, domain.ErrEmptyHazard},
		{"nil index", hazard, nil, &mockGenerator{}, errNilIndex},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := New(tc.gen, DefaultOptions(), quietLogger()).Analyze(context.Background(), tc.ix, tc.hazard, kbText(), "")
			if res != nil {
				t.Fatal("no partial result expected")
			}
			var ae *domain.AnalysisError
			if !errors.As(err, &ae) {
				t.Fatalf("expected AnalysisError, got %T", err)
			}
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected %v in chain, got %v", tc.target, err)
			}
		})
	}
}

func TestAnalyzeQueryEmbeddingFailureStillAnswers(t *testing.T) {
	emb := &mockEmbedder{err: &domain.EmbeddingError{Status: 503}}
	gen := &mockGenerator{gen: domain.Generation{Text: "KATEGORI: X\nCONFIDENCE: 1%\nALASAN: r"}}
	res, err := New(gen, DefaultOptions(), quietLogger()).Analyze(context.Background(), newIndex(emb), hazard, kbText(), "")
	if err != nil {
		t.Fatalf("embedding failures should degrade, got %v", err)
	}
	if len(res.RetrievedContext) != 2 || res.RetrievedContext[0].Text != chunkA {
		t.Fatalf("expected unranked fallback chunks, got %+v", res.RetrievedContext)
	}
}
