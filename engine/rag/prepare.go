package rag

import (
	"context"
	"log/slog"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/engine/prompt"
	"github.com/WessleyAI/minesafe/pkg/fn"
)

// Prepare performs the upstream retrieval for a batch: one concurrent
// retrieval per knowledge base, formatted into an AnalysisSpec. A failed
// retrieval leaves that spec's context empty.
func Prepare(ctx context.Context, r Retriever, hazard string, kbs []domain.KnowledgeBase, topK int, logger *slog.Logger) domain.BatchRequest {
	if logger == nil {
		logger = slog.Default()
	}
	tasks := make([]func() domain.AnalysisSpec, len(kbs))
	for i, kb := range kbs {
		tasks[i] = func() domain.AnalysisSpec {
			spec := domain.AnalysisSpec{
				KnowledgeBaseID:   kb.ID,
				KnowledgeBaseName: kb.Name,
				Color:             kb.Color,
				PromptTemplate:    kb.PromptTemplate,
			}
			if hazard == "" {
				return spec
			}
			chunks, err := r.Retrieve(ctx, kb, hazard, topK)
			if err != nil {
				logger.Warn("rag: retrieval failed, continuing without context", "kb", kb.ID, "err", err)
				return spec
			}
			spec.RetrievedContext = prompt.FormatContext(chunks)
			return spec
		}
	}
	return domain.BatchRequest{HazardDescription: hazard, Analyses: fn.FanOut(tasks...)}
}
