// Package rag orchestrates retrieval-augmented hazard analysis.
// Service analyzes one hazard against one knowledge base and fails as a
// unit. Batch analyzes one hazard against many knowledge bases at once and
// reports per-item failures in-band.
package rag

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/engine/index"
	"github.com/WessleyAI/minesafe/engine/parse"
	"github.com/WessleyAI/minesafe/engine/prompt"
	"github.com/WessleyAI/minesafe/pkg/fn"
	"github.com/WessleyAI/minesafe/pkg/metrics"
)

// Generator sends a composed prompt to the text-generation endpoint.
type Generator interface {
	Generate(ctx context.Context, prompt string) (domain.Generation, error)
}

// Retriever returns the chunks of a knowledge base most relevant to query.
type Retriever interface {
	Retrieve(ctx context.Context, kb domain.KnowledgeBase, query string, k int) ([]domain.DocumentChunk, error)
}

var errNilIndex = errors.New("rag: nil index")

// Options configures the single-analysis pipeline.
type Options struct {
	TopK    int
	Parser  *parse.Parser
	Metrics *metrics.Analysis
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{TopK: 3}
}

// Service runs single hazard analyses. It holds no index state; callers pass
// the index for the knowledge base being analyzed.
type Service struct {
	gen    Generator
	parser *parse.Parser
	opts   Options
	logger *slog.Logger
}

// New creates a Service.
func New(gen Generator, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	parser := opts.Parser
	if parser == nil {
		parser = parse.Default
	}
	return &Service{gen: gen, parser: parser, opts: opts, logger: logger}
}

// Analyze builds ix from kbText if its content changed, retrieves the top
// chunks for hazard, composes template, generates, and parses the reply.
// Any failure is returned as a single *domain.AnalysisError.
func (s *Service) Analyze(ctx context.Context, ix *index.Index, hazard, kbText, template string) (*domain.AnalysisResult, error) {
	start := time.Now()
	res, err := s.analyze(ctx, ix, hazard, kbText, template)
	elapsed := time.Since(start)
	if err != nil {
		s.observe("error", elapsed)
		s.logger.Warn("rag analyze failed", "err", err, "elapsed", elapsed)
		return nil, &domain.AnalysisError{Elapsed: elapsed, Wrapped: err}
	}
	res.ProcessingTime = elapsed.Milliseconds()
	outcome := "ok"
	if res.Truncated {
		outcome = "truncated"
	}
	s.observe(outcome, elapsed)
	s.logger.Info("rag analyze done", "category", res.Category, "chunks", len(res.RetrievedContext), "elapsed", elapsed)
	return res, nil
}

func (s *Service) analyze(ctx context.Context, ix *index.Index, hazard, kbText, template string) (*domain.AnalysisResult, error) {
	if err := domain.ValidateHazard(hazard); err != nil {
		return nil, err
	}
	if ix == nil {
		return nil, errNilIndex
	}
	if strings.TrimSpace(template) == "" {
		template = prompt.DefaultTemplate
	}

	chunks, err := fn.Traced(ctx, "rag.retrieve", func(ctx context.Context) ([]domain.DocumentChunk, error) {
		if err := ix.Build(ctx, kbText); err != nil {
			return nil, err
		}
		return ix.Retrieve(ctx, hazard, s.opts.TopK), nil
	})
	if err != nil {
		return nil, err
	}

	p := prompt.Compose(template, contextOrPlaceholder(prompt.FormatContext(chunks)), hazard)
	gen, err := fn.Traced(ctx, "rag.generate", func(ctx context.Context) (domain.Generation, error) {
		return s.gen.Generate(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	if err := gen.Err(); err != nil {
		s.logger.Warn("rag analysis truncated", "err", err)
		if s.opts.Metrics != nil {
			s.opts.Metrics.Truncated.Inc()
		}
	}

	text := gen.Text
	if strings.TrimSpace(text) == "" {
		text = s.parser.PlaceholderReply(gen.FinishReason)
	}
	f := s.parser.Parse(text, gen.Truncated())
	return &domain.AnalysisResult{
		Category:         f.Category,
		Confidence:       f.Confidence,
		Reasoning:        f.Reasoning,
		RetrievedContext: chunks,
		FullResponse:     text,
		Truncated:        f.Truncated,
	}, nil
}

func (s *Service) observe(outcome string, elapsed time.Duration) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveAnalysis(outcome, elapsed)
	}
}

func contextOrPlaceholder(ctx string) string {
	if strings.TrimSpace(ctx) == "" {
		return domain.NoContextPlaceholder
	}
	return ctx
}

func hazardOrPlaceholder(h string) string {
	if strings.TrimSpace(h) == "" {
		return domain.NoHazardPlaceholder
	}
	return h
}
