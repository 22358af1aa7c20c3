package index

import (
	"context"
	"sync"

	"github.com/WessleyAI/minesafe/engine/domain"
)

// Registry keeps one Index per knowledge base, created on first use.
type Registry struct {
	embed Embedder
	opts  Options

	mu      sync.Mutex
	indexes map[string]*Index
}

// NewRegistry creates an empty Registry whose indexes share embed and opts.
func NewRegistry(embed Embedder, opts Options) *Registry {
	return &Registry{embed: embed, opts: opts, indexes: make(map[string]*Index)}
}

// Get returns the index for id, creating an empty one if needed.
func (r *Registry) Get(id string) *Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	ix, ok := r.indexes[id]
	if !ok {
		ix = New(r.embed, r.opts)
		r.indexes[id] = ix
	}
	return ix
}

// Invalidate drops the index for id.
func (r *Registry) Invalidate(id string) {
	r.mu.Lock()
	delete(r.indexes, id)
	r.mu.Unlock()
}

// Len returns the number of indexes held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.indexes)
}

// Retrieve builds the knowledge base's index if its content changed, then
// returns the top k chunks for query.
func (r *Registry) Retrieve(ctx context.Context, kb domain.KnowledgeBase, query string, k int) ([]domain.DocumentChunk, error) {
	ix := r.Get(kb.ID)
	if err := ix.Build(ctx, kb.Content); err != nil {
		return nil, err
	}
	return ix.Retrieve(ctx, query, k), nil
}
