package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/engine/parse"
	"github.com/WessleyAI/minesafe/engine/prompt"
	"github.com/WessleyAI/minesafe/pkg/fn"
	"github.com/WessleyAI/minesafe/pkg/metrics"
)

// Recorder receives a summary of every finished batch. Failures are logged
// and never affect the batch response.
type Recorder interface {
	RecordBatch(ctx context.Context, ev domain.BatchCompleted) error
}

// BatchOptions configures the batch orchestrator.
type BatchOptions struct {
	// ItemTimeout bounds each knowledge base's analysis.
	ItemTimeout time.Duration
	// RecordTimeout bounds each Recorder call.
	RecordTimeout time.Duration
	Parser        *parse.Parser
	Metrics       *metrics.Analysis
}

// DefaultBatchOptions returns sensible defaults.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{ItemTimeout: 60 * time.Second, RecordTimeout: 5 * time.Second}
}

// Batch runs one analysis per knowledge base concurrently and joins them all.
type Batch struct {
	gen       Generator
	parser    *parse.Parser
	opts      BatchOptions
	recorders []Recorder
	logger    *slog.Logger
}

// NewBatch creates a Batch.
func NewBatch(gen Generator, opts BatchOptions, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultBatchOptions()
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = def.ItemTimeout
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = def.RecordTimeout
	}
	parser := opts.Parser
	if parser == nil {
		parser = parse.Default
	}
	return &Batch{gen: gen, parser: parser, opts: opts, logger: logger}
}

// WithRecorders returns b with recorders notified after each batch.
func (b *Batch) WithRecorders(rs ...Recorder) *Batch {
	cp := *b
	cp.recorders = append(append([]Recorder(nil), b.recorders...), rs...)
	return &cp
}

// Run analyzes req. Results always has one item per analysis, in request
// order; a failed item carries Category "Error". Only an invalid request
// produces a top-level Error with no results.
func (b *Batch) Run(ctx context.Context, req domain.BatchRequest) domain.BatchResponse {
	if err := domain.ValidateBatchRequest(req); err != nil {
		b.logger.Warn("batch rejected", "err", err)
		return domain.BatchResponse{Results: []domain.BatchItem{}, Error: err.Error()}
	}

	hazard := hazardOrPlaceholder(req.HazardDescription)
	start := time.Now()
	tasks := make([]func() domain.BatchItem, len(req.Analyses))
	for i, spec := range req.Analyses {
		tasks[i] = func() domain.BatchItem { return b.runItem(ctx, hazard, spec) }
	}
	results := fn.FanOut(tasks...)
	total := time.Since(start)

	resp := domain.BatchResponse{Results: results, TotalProcessingTime: total.Milliseconds()}
	if m := b.opts.Metrics; m != nil {
		m.BatchSize.Observe(float64(len(results)))
		m.BatchDuration.Observe(total.Seconds())
	}
	b.logger.Info("batch done", "items", len(results), "succeeded", resp.Succeeded(), "total_ms", resp.TotalProcessingTime)

	b.record(ctx, req.HazardDescription, resp)
	return resp
}

func (b *Batch) runItem(ctx context.Context, hazard string, spec domain.AnalysisSpec) domain.BatchItem {
	start := time.Now()
	item := domain.BatchItem{
		KnowledgeBaseID:   spec.KnowledgeBaseID,
		KnowledgeBaseName: spec.KnowledgeBaseName,
		Color:             spec.Color,
	}

	ctx, cancel := context.WithTimeout(ctx, b.opts.ItemTimeout)
	defer cancel()
	if m := b.opts.Metrics; m != nil {
		m.InFlight.Inc()
		defer m.InFlight.Dec()
	}

	template := spec.PromptTemplate
	if strings.TrimSpace(template) == "" {
		template = prompt.DefaultTemplate
	}
	p := prompt.Compose(template, contextOrPlaceholder(spec.RetrievedContext), hazard)

	gen, err := b.generate(ctx, p)
	elapsed := time.Since(start)
	item.ProcessingTime = elapsed.Milliseconds()
	if err != nil {
		b.logger.Warn("batch item failed", "kb", spec.KnowledgeBaseID, "err", err, "elapsed", elapsed)
		item.Category = domain.CategoryError
		item.Confidence = domain.ConfidenceFailed
		item.Reasoning = "Analysis failed: " + b.describe(err)
		b.observe(spec.KnowledgeBaseID, "error", elapsed)
		return item
	}

	text := gen.Text
	if strings.TrimSpace(text) == "" {
		b.logger.Warn("batch item returned no content", "kb", spec.KnowledgeBaseID, "finish_reason", gen.FinishReason)
		text = b.parser.PlaceholderReply(gen.FinishReason)
	}
	f := b.parser.Parse(text, gen.Truncated())
	item.Category = f.Category
	item.Confidence = f.Confidence
	item.Reasoning = f.Reasoning
	item.Truncated = f.Truncated

	outcome := "ok"
	if err := gen.Err(); err != nil {
		outcome = "truncated"
		b.logger.Warn("batch item partial", "kb", spec.KnowledgeBaseID, "err", err)
		if b.opts.Metrics != nil {
			b.opts.Metrics.Truncated.Inc()
		}
	}
	b.observe(spec.KnowledgeBaseID, outcome, elapsed)
	return item
}

// generate calls the generator but returns as soon as ctx is done, even if
// the generator ignores cancellation.
func (b *Batch) generate(ctx context.Context, p string) (domain.Generation, error) {
	done := make(chan fn.Result[domain.Generation], 1)
	go func() { done <- fn.FromPair(b.gen.Generate(ctx, p)) }()
	select {
	case r := <-done:
		return r.Unwrap()
	case <-ctx.Done():
		return domain.Generation{}, ctx.Err()
	}
}

func (b *Batch) describe(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timed out after %s", b.opts.ItemTimeout)
	}
	return err.Error()
}

func (b *Batch) observe(kbID, outcome string, elapsed time.Duration) {
	if b.opts.Metrics != nil {
		b.opts.Metrics.ObserveBatchItem(kbID, outcome, elapsed)
	}
}

func (b *Batch) record(ctx context.Context, hazard string, resp domain.BatchResponse) {
	if len(b.recorders) == 0 {
		return
	}
	ev := domain.BatchCompleted{
		HazardID:            uuid.NewString(),
		HazardDescription:   hazard,
		Results:             resp.Results,
		Succeeded:           resp.Succeeded(),
		TotalProcessingTime: resp.TotalProcessingTime,
		CompletedAt:         time.Now().UTC(),
	}
	ctx = context.WithoutCancel(ctx)
	for _, r := range b.recorders {
		rctx, cancel := context.WithTimeout(ctx, b.opts.RecordTimeout)
		if err := r.RecordBatch(rctx, ev); err != nil {
			b.logger.Warn("batch record failed", "hazard_id", ev.HazardID, "err", err)
		}
		cancel()
	}
}
