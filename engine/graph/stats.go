package graph

import (
	"context"
	"fmt"

	"github.com/WessleyAI/minesafe/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const categoryCountsCypher = `MATCH (:Hazard)-[a:ASSESSED_BY]->(k:KnowledgeBase)
WHERE $kb = '' OR k.id = $kb
RETURN k.id AS kb_id, a.category AS category, count(*) AS count
ORDER BY kb_id, count DESC, category`

// CategoryCounts returns how often each category was assigned, per knowledge
// base. An empty kbID covers all knowledge bases.
func (s *Store) CategoryCounts(ctx context.Context, kbID string) ([]CategoryCount, error) {
	out, err := repo.QueryWith(ctx, s.hazards, categoryCountsCypher, map[string]any{"kb": kbID},
		func(rec *neo4j.Record) (CategoryCount, error) {
			vals := rec.AsMap()
			return CategoryCount{
				KnowledgeBaseID: strProp(vals, "kb_id"),
				Category:        strProp(vals, "category"),
				Count:           intProp(vals, "count"),
			}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("graph: category counts: %w", err)
	}
	if out == nil {
		out = []CategoryCount{}
	}
	return out, nil
}

// NodeCounts returns node counts grouped by label.
func (s *Store) NodeCounts(ctx context.Context) (map[string]int64, error) {
	type row struct {
		label string
		count int64
	}
	rows, err := repo.QueryWith(ctx, s.hazards, `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`, nil,
		func(rec *neo4j.Record) (row, error) {
			vals := rec.AsMap()
			return row{label: strProp(vals, "type"), count: intProp(vals, "count")}, nil
		})
	if err != nil {
		return nil, fmt.Errorf("graph: node counts: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		if r.label != "" {
			counts[r.label] = r.count
		}
	}
	return counts, nil
}
