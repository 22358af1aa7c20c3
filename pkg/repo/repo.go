// Package repo defines the generic Repository interface and a Neo4j
// implementation of it.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no node matches an ID.
var ErrNotFound = errors.New("repo: not found")

// Repository is a generic keyed store.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Upsert(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination and ordering for List operations.
type ListOpts struct {
	Offset int
	Limit  int
	// OrderBy is a node property name; Desc reverses it.
	OrderBy string
	Desc    bool
}
