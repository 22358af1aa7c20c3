// Package kbstore serves knowledge bases and their prompt templates from
// Postgres, a static default table, or a TTL cache in front of either.
package kbstore

import (
	"context"

	"github.com/WessleyAI/minesafe/engine/domain"
)

// Store reads knowledge bases and saves edited prompt templates.
type Store interface {
	// List returns all knowledge bases ordered by name.
	List(ctx context.Context) ([]domain.KnowledgeBase, error)
	// Get returns one knowledge base or domain.ErrNotFound.
	Get(ctx context.Context, id string) (domain.KnowledgeBase, error)
	// SavePromptTemplate replaces the template and returns the updated record
	// with its server-set UpdatedAt.
	SavePromptTemplate(ctx context.Context, id, template string) (domain.KnowledgeBase, error)
}

// GetMany returns the knowledge bases for ids in order, or every knowledge
// base when ids is empty.
func GetMany(ctx context.Context, s Store, ids []string) ([]domain.KnowledgeBase, error) {
	if len(ids) == 0 {
		return s.List(ctx)
	}
	out := make([]domain.KnowledgeBase, 0, len(ids))
	for _, id := range ids {
		kb, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, kb)
	}
	return out, nil
}
