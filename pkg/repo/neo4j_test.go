package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type item struct {
	ID   string
	Name string
}

type mockResult struct {
	records []*neo4j.Record
	idx     int
	err     error
}

func (m *mockResult) Next(context.Context) bool {
	if m.idx < len(m.records) {
		m.idx++
		return true
	}
	return false
}

func (m *mockResult) Record() *neo4j.Record { return m.records[m.idx-1] }
func (m *mockResult) Err() error            { return m.err }

type mockRunner struct {
	result  *mockResult
	err     error
	cyphers []string
	params  []map[string]any
	modes   []neo4j.AccessMode
	closed  int
}

func (m *mockRunner) Run(_ context.Context, cypher string, params map[string]any) (Result, error) {
	m.cyphers = append(m.cyphers, cypher)
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &mockResult{}, nil
	}
	return m.result, nil
}

func (m *mockRunner) Close(context.Context) error { m.closed++; return nil }

func rec(id, name string) *neo4j.Record {
	return &neo4j.Record{Values: []any{id, name}, Keys: []string{"id", "name"}}
}

func newTestRepo(r *mockRunner) *Neo4jRepo[item, string] {
	return NewNeo4jRepo[item, string](nil, "Item",
		func(it item) map[string]any { return map[string]any{"id": it.ID, "name": it.Name} },
		func(rec *neo4j.Record) (item, error) {
			id, _ := rec.Get("id")
			name, _ := rec.Get("name")
			return item{ID: id.(string), Name: name.(string)}, nil
		},
		WithSessions[item, string](func(_ context.Context, mode neo4j.AccessMode) Runner {
			r.modes = append(r.modes, mode)
			return r
		}),
	)
}

func TestGet(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{rec("a", "Alpha")}}}
	got, err := newTestRepo(r).Get(context.Background(), "a")
	if err != nil || got.Name != "Alpha" {
		t.Fatalf("got %+v, %v", got, err)
	}
	if !strings.Contains(r.cyphers[0], "MATCH (n:Item {id: $id})") {
		t.Fatalf("unexpected cypher %q", r.cyphers[0])
	}
	if r.closed != 1 {
		t.Fatal("session should be closed")
	}
	if r.modes[0] != neo4j.AccessModeRead {
		t.Fatal("Get should use a read session")
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := newTestRepo(&mockRunner{}).Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRunError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := newTestRepo(&mockRunner{err: boom}).Get(context.Background(), "a"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestListOrdering(t *testing.T) {
	cases := []struct {
		name string
		opts ListOpts
		want string
	}{
		{"default", ListOpts{}, "RETURN n SKIP"},
		{"asc", ListOpts{OrderBy: "name"}, "ORDER BY n.name SKIP"},
		{"desc", ListOpts{OrderBy: "created_at", Desc: true}, "ORDER BY n.created_at DESC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &mockRunner{result: &mockResult{records: []*neo4j.Record{rec("a", "A"), rec("b", "B")}}}
			items, err := newTestRepo(r).List(context.Background(), tc.opts)
			if err != nil || len(items) != 2 {
				t.Fatalf("got %v, %v", items, err)
			}
			if !strings.Contains(r.cyphers[0], tc.want) {
				t.Fatalf("cypher %q missing %q", r.cyphers[0], tc.want)
			}
			if r.params[0]["limit"] != 100 {
				t.Fatalf("expected default limit 100, got %v", r.params[0]["limit"])
			}
		})
	}
}

func TestListRejectsInjectedOrder(t *testing.T) {
	r := &mockRunner{}
	if _, err := newTestRepo(r).List(context.Background(), ListOpts{OrderBy: "name DETACH DELETE n"}); err == nil {
		t.Fatal("expected error for invalid order property")
	}
	if len(r.cyphers) != 0 {
		t.Fatal("no query should run")
	}
}

func TestUpsert(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{rec("a", "Alpha")}}}
	got, err := newTestRepo(r).Upsert(context.Background(), item{ID: "a", Name: "Alpha"})
	if err != nil || got.ID != "a" {
		t.Fatalf("got %+v, %v", got, err)
	}
	if !strings.HasPrefix(r.cyphers[0], "MERGE (n:Item {id: $id}) SET n += $props") {
		t.Fatalf("unexpected cypher %q", r.cyphers[0])
	}
	if r.params[0]["id"] != "a" {
		t.Fatalf("expected id param, got %v", r.params[0])
	}
	if r.modes[0] != neo4j.AccessModeWrite {
		t.Fatal("Upsert should use a write session")
	}
}

func TestUpsertNoNode(t *testing.T) {
	if _, err := newTestRepo(&mockRunner{}).Upsert(context.Background(), item{ID: "a"}); err == nil {
		t.Fatal("expected error when MERGE returns nothing")
	}
}

func TestDeleteAndExec(t *testing.T) {
	r := &mockRunner{}
	if err := newTestRepo(r).Delete(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.cyphers[0], "DETACH DELETE n") || r.modes[0] != neo4j.AccessModeWrite {
		t.Fatalf("unexpected cypher %q in mode %v", r.cyphers[0], r.modes[0])
	}

	boom := errors.New("result failed")
	r = &mockRunner{result: &mockResult{err: boom}}
	if err := newTestRepo(r).Exec(context.Background(), "RETURN 1", nil); !errors.Is(err, boom) {
		t.Fatalf("expected result error, got %v", err)
	}
}

func TestQueryWithCustomDecoder(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{
		{Values: []any{int64(3)}, Keys: []string{"c"}},
		{Values: []any{int64(5)}, Keys: []string{"c"}},
	}}}
	counts, err := QueryWith(context.Background(), newTestRepo(r), "RETURN c", nil, func(rec *neo4j.Record) (int64, error) {
		v, _ := rec.Get("c")
		return v.(int64), nil
	})
	if err != nil || len(counts) != 2 || counts[1] != 5 {
		t.Fatalf("got %v, %v", counts, err)
	}
}

func TestQueryWithDecodeError(t *testing.T) {
	r := &mockRunner{result: &mockResult{records: []*neo4j.Record{rec("a", "A")}}}
	bad := errors.New("decode")
	_, err := QueryWith(context.Background(), newTestRepo(r), "RETURN n", nil, func(*neo4j.Record) (string, error) {
		return "", bad
	})
	if !errors.Is(err, bad) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
