// Package graph keeps the hazard assessment history in Neo4j. Every finished
// batch becomes a Hazard node linked to the knowledge bases that assessed it.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DefaultRecentLimit caps RecentHazards when no limit is given.
const DefaultRecentLimit = 20

// Store provides hazard history operations on top of the generic Neo4j repository.
type Store struct {
	hazards *repo.Neo4jRepo[Hazard, string]
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	sessions repo.SessionFunc
	logger   *slog.Logger
}

// WithSessions replaces driver sessions.
func WithSessions(f repo.SessionFunc) Option {
	return func(o *storeOptions) { o.sessions = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *storeOptions) { o.logger = l }
}

// New creates a Store.
func New(driver neo4j.DriverWithContext, opts ...Option) *Store {
	var o storeOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	var ropts []repo.Neo4jOption[Hazard, string]
	if o.sessions != nil {
		ropts = append(ropts, repo.WithSessions[Hazard, string](o.sessions))
	}
	return &Store{hazards: newHazardRepo(driver, ropts...), logger: o.logger}
}

// EnsureSchema creates the uniqueness constraints the MERGE statements rely on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, c := range []string{
		"CREATE CONSTRAINT hazard_id IF NOT EXISTS FOR (h:Hazard) REQUIRE h.id IS UNIQUE",
		"CREATE CONSTRAINT knowledge_base_id IF NOT EXISTS FOR (k:KnowledgeBase) REQUIRE k.id IS UNIQUE",
	} {
		if err := s.hazards.Exec(ctx, c, nil); err != nil {
			return fmt.Errorf("graph: schema: %w", err)
		}
	}
	return nil
}

const recordBatchCypher = `MERGE (h:Hazard {id: $id})
SET h += $props
WITH h
UNWIND $results AS r
MERGE (k:KnowledgeBase {id: r.kb_id})
SET k.name = r.kb_name, k.color = r.color
MERGE (h)-[a:ASSESSED_BY]->(k)
SET a.category = r.category,
    a.confidence = r.confidence,
    a.processing_ms = r.processing_ms,
    a.truncated = r.truncated,
    a.failed = r.failed`

// RecordBatch stores a finished batch. It satisfies rag.Recorder.
func (s *Store) RecordBatch(ctx context.Context, ev domain.BatchCompleted) error {
	if ev.HazardID == "" {
		return fmt.Errorf("graph: record batch: empty hazard id")
	}
	h := Hazard{
		ID:          ev.HazardID,
		Description: ev.HazardDescription,
		CreatedAt:   ev.CompletedAt,
		Succeeded:   int64(ev.Succeeded),
		Total:       int64(len(ev.Results)),
		TotalMs:     ev.TotalProcessingTime,
	}
	results := make([]map[string]any, 0, len(ev.Results))
	for _, it := range ev.Results {
		if it.KnowledgeBaseID == "" {
			continue
		}
		results = append(results, map[string]any{
			"kb_id":         it.KnowledgeBaseID,
			"kb_name":       it.KnowledgeBaseName,
			"color":         it.Color,
			"category":      it.Category,
			"confidence":    it.Confidence,
			"processing_ms": it.ProcessingTime,
			"truncated":     it.Truncated,
			"failed":        it.Failed(),
		})
	}
	err := s.hazards.Exec(ctx, recordBatchCypher, map[string]any{
		"id":      h.ID,
		"props":   hazardToMap(h),
		"results": results,
	})
	if err != nil {
		return fmt.Errorf("graph: record batch %s: %w", ev.HazardID, err)
	}
	s.logger.Debug("hazard recorded", "hazard_id", ev.HazardID, "assessments", len(results))
	return nil
}

const recentCypher = `MATCH (h:Hazard)
WITH h ORDER BY h.created_at DESC LIMIT $limit
OPTIONAL MATCH (h)-[a:ASSESSED_BY]->(k:KnowledgeBase)
WITH h, collect({kb_id: k.id, kb_name: k.name, category: a.category,
  confidence: a.confidence, processing_ms: a.processing_ms, truncated: a.truncated}) AS assessments
RETURN h AS n, assessments
ORDER BY h.created_at DESC`

// RecentHazards returns the newest hazards with their assessments.
func (s *Store) RecentHazards(ctx context.Context, limit int) ([]HazardRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	out, err := repo.QueryWith(ctx, s.hazards, recentCypher, map[string]any{"limit": limit}, hazardRecordFromRecord)
	if err != nil {
		return nil, fmt.Errorf("graph: recent hazards: %w", err)
	}
	if out == nil {
		out = []HazardRecord{}
	}
	return out, nil
}

// GetHazard returns one hazard node without its assessments.
func (s *Store) GetHazard(ctx context.Context, id string) (Hazard, error) {
	h, err := s.hazards.Get(ctx, id)
	if err != nil {
		return Hazard{}, fmt.Errorf("graph: %w", err)
	}
	return h, nil
}

// DeleteHazard removes a hazard and its assessment edges.
func (s *Store) DeleteHazard(ctx context.Context, id string) error {
	return s.hazards.Delete(ctx, id)
}
