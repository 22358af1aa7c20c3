//go:build integration

package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func testDriver(t *testing.T) neo4j.DriverWithContext {
	t.Helper()
	url := envOr("NEO4J_URL", "neo4j://localhost:7687")
	driver, err := neo4j.NewDriverWithContext(url, neo4j.NoAuth())
	if err != nil {
		t.Fatalf("neo4j connect: %v", err)
	}
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Skipf("neo4j not reachable: %v", err)
	}
	t.Cleanup(func() {
		sess := driver.NewSession(ctx, neo4j.SessionConfig{})
		sess.Run(ctx, "MATCH (n) WHERE n:Hazard OR n:KnowledgeBase DETACH DELETE n", nil)
		sess.Close(ctx)
		driver.Close(ctx)
	})
	return driver
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestNeo4j_RecordAndReadBack(t *testing.T) {
	store := New(testDriver(t))
	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	ev := domain.BatchCompleted{
		HazardID:          "it-hazard-1",
		HazardDescription: "Operator walking behind a reversing loader",
		CompletedAt:       time.Now().UTC().Truncate(time.Millisecond),
		Succeeded:         1,
		Results: []domain.BatchItem{
			{KnowledgeBaseID: "unsafe-act-condition", KnowledgeBaseName: "Unsafe Act / Condition", Category: "Unsafe Act", Confidence: "85%"},
		},
	}
	if err := store.RecordBatch(ctx, ev); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}
	// Recording twice must not duplicate the edge.
	if err := store.RecordBatch(ctx, ev); err != nil {
		t.Fatalf("RecordBatch again: %v", err)
	}

	recent, err := store.RecentHazards(ctx, 5)
	if err != nil {
		t.Fatalf("RecentHazards: %v", err)
	}
	if len(recent) == 0 || recent[0].ID != ev.HazardID || len(recent[0].Assessments) != 1 {
		t.Fatalf("unexpected recent hazards %+v", recent)
	}

	counts, err := store.CategoryCounts(ctx, "unsafe-act-condition")
	if err != nil || len(counts) != 1 || counts[0].Count != 1 {
		t.Fatalf("CategoryCounts = %+v, %v", counts, err)
	}

	if err := store.DeleteHazard(ctx, ev.HazardID); err != nil {
		t.Fatalf("DeleteHazard: %v", err)
	}
	if _, err := store.GetHazard(ctx, ev.HazardID); err == nil {
		t.Fatal("expected not found after delete")
	}
}
