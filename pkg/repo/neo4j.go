package repo

import (
	"context"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the part of a Neo4j result the repository reads.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// Runner is the part of a Neo4j session the repository uses.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// SessionFunc opens a session in the given access mode.
type SessionFunc func(ctx context.Context, mode neo4j.AccessMode) Runner

// Neo4jRepo stores T as nodes with one label, keyed by an ID property.
// Queries return the node as "n".
type Neo4jRepo[T any, ID comparable] struct {
	label   string
	idKey   string
	encode  func(T) map[string]any
	decode  func(*neo4j.Record) (T, error)
	session SessionFunc
}

var _ Repository[any, string] = (*Neo4jRepo[any, string])(nil)

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey sets the ID property name. The default is "id".
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// WithSessions replaces driver sessions, e.g. with a fake in tests.
func WithSessions[T any, ID comparable](f SessionFunc) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.session = f }
}

// NewNeo4jRepo creates a repository for label. encode maps an entity to node
// properties and must include the ID property; decode reads one record.
func NewNeo4jRepo[T any, ID comparable](
	driver neo4j.DriverWithContext,
	label string,
	encode func(T) map[string]any,
	decode func(*neo4j.Record) (T, error),
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{label: label, idKey: "id", encode: encode, decode: decode}
	for _, o := range opts {
		o(r)
	}
	if r.session == nil {
		r.session = driverSessions(driver)
	}
	return r
}

type driverSession struct{ neo4j.SessionWithContext }

func (s driverSession) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return s.SessionWithContext.Run(ctx, cypher, params)
}

func driverSessions(driver neo4j.DriverWithContext) SessionFunc {
	return func(ctx context.Context, mode neo4j.AccessMode) Runner {
		return driverSession{driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})}
	}
}

// Label returns the node label.
func (r *Neo4jRepo[T, ID]) Label() string { return r.label }

// Get returns the node with the given ID or an error wrapping ErrNotFound.
func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n LIMIT 1", r.label, r.idKey)
	items, err := r.Query(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
	}
	return items[0], nil
}

var propName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// List pages through nodes. Limit defaults to 100.
func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	var order string
	if opts.OrderBy != "" {
		if !propName.MatchString(opts.OrderBy) {
			return nil, fmt.Errorf("repo: invalid order property %q", opts.OrderBy)
		}
		order = " ORDER BY n." + opts.OrderBy
		if opts.Desc {
			order += " DESC"
		}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN n%s SKIP $offset LIMIT $limit", r.label, order)
	return r.Query(ctx, cypher, map[string]any{"offset": opts.Offset, "limit": limit})
}

// Upsert merges the node on its ID and overwrites the encoded properties.
func (r *Neo4jRepo[T, ID]) Upsert(ctx context.Context, entity T) (T, error) {
	var zero T
	props := r.encode(entity)
	cypher := fmt.Sprintf("MERGE (n:%s {%s: $id}) SET n += $props RETURN n", r.label, r.idKey)
	items, err := run(ctx, r, neo4j.AccessModeWrite, cypher, map[string]any{"id": props[r.idKey], "props": props}, r.decode)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("repo: upsert %s returned no node", r.label)
	}
	return items[0], nil
}

// Delete removes the node and its relationships. Deleting a missing node is not an error.
func (r *Neo4jRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	return r.Exec(ctx, fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n", r.label, r.idKey), map[string]any{"id": id})
}

// Query runs a read query and decodes every record as T.
func (r *Neo4jRepo[T, ID]) Query(ctx context.Context, cypher string, params map[string]any) ([]T, error) {
	return run(ctx, r, neo4j.AccessModeRead, cypher, params, r.decode)
}

// Exec runs a write statement and discards its records.
func (r *Neo4jRepo[T, ID]) Exec(ctx context.Context, cypher string, params map[string]any) error {
	_, err := run(ctx, r, neo4j.AccessModeWrite, cypher, params, func(*neo4j.Record) (struct{}, error) {
		return struct{}{}, nil
	})
	return err
}

// QueryWith runs a read query on r's sessions and decodes each record with
// decode, for projections that are not T.
func QueryWith[U, T any, ID comparable](ctx context.Context, r *Neo4jRepo[T, ID], cypher string, params map[string]any, decode func(*neo4j.Record) (U, error)) ([]U, error) {
	return run(ctx, r, neo4j.AccessModeRead, cypher, params, decode)
}

func run[U, T any, ID comparable](ctx context.Context, r *Neo4jRepo[T, ID], mode neo4j.AccessMode, cypher string, params map[string]any, decode func(*neo4j.Record) (U, error)) ([]U, error) {
	sess := r.session(ctx, mode)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("repo: %s: %w", r.label, err)
	}
	var out []U
	for res.Next(ctx) {
		v, err := decode(res.Record())
		if err != nil {
			return nil, fmt.Errorf("repo: decode %s: %w", r.label, err)
		}
		out = append(out, v)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("repo: %s: %w", r.label, err)
	}
	return out, nil
}
