package graph

import (
	"time"

	"github.com/WessleyAI/minesafe/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

func newHazardRepo(driver neo4j.DriverWithContext, opts ...repo.Neo4jOption[Hazard, string]) *repo.Neo4jRepo[Hazard, string] {
	return repo.NewNeo4jRepo[Hazard, string](
		driver,
		"Hazard",
		hazardToMap,
		hazardFromRecord,
		opts...,
	)
}

func hazardToMap(h Hazard) map[string]any {
	return map[string]any{
		"id":          h.ID,
		"description": h.Description,
		"created_at":  h.CreatedAt,
		"succeeded":   h.Succeeded,
		"total":       h.Total,
		"total_ms":    h.TotalMs,
	}
}

func hazardFromRecord(rec *neo4j.Record) (Hazard, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Hazard{}, err
	}
	return hazardFromProps(node.Props), nil
}

func hazardFromProps(props map[string]any) Hazard {
	return Hazard{
		ID:          strProp(props, "id"),
		Description: strProp(props, "description"),
		CreatedAt:   timeProp(props, "created_at"),
		Succeeded:   intProp(props, "succeeded"),
		Total:       intProp(props, "total"),
		TotalMs:     intProp(props, "total_ms"),
	}
}

// hazardRecordFromRecord decodes a hazard node "n" and its collected "assessments".
func hazardRecordFromRecord(rec *neo4j.Record) (HazardRecord, error) {
	h, err := hazardFromRecord(rec)
	if err != nil {
		return HazardRecord{}, err
	}
	out := HazardRecord{Hazard: h, Assessments: []Assessment{}}
	raw, _ := rec.Get("assessments")
	list, _ := raw.([]any)
	for _, v := range list {
		m, ok := v.(map[string]any)
		if !ok || strProp(m, "kb_id") == "" {
			continue
		}
		out.Assessments = append(out.Assessments, Assessment{
			KnowledgeBaseID:   strProp(m, "kb_id"),
			KnowledgeBaseName: strProp(m, "kb_name"),
			Category:          strProp(m, "category"),
			Confidence:        strProp(m, "confidence"),
			ProcessingMs:      intProp(m, "processing_ms"),
			Truncated:         boolProp(m, "truncated"),
		})
	}
	return out, nil
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intProp(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func boolProp(props map[string]any, key string) bool {
	b, _ := props[key].(bool)
	return b
}

func timeProp(props map[string]any, key string) time.Time {
	switch v := props[key].(type) {
	case time.Time:
		return v
	case dbtype.LocalDateTime:
		return v.Time()
	}
	return time.Time{}
}
