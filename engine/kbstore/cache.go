package kbstore

import (
	"context"
	"sync"
	"time"

	"github.com/WessleyAI/minesafe/engine/domain"
)

// DefaultTTL is how long a cached knowledge base stays fresh.
const DefaultTTL = 5 * time.Minute

type entry struct {
	kb      domain.KnowledgeBase
	expires time.Time
}

// Cache is a read-through Store with a fixed TTL. Entries are local to this
// process; other instances keep their own copies until they expire.
type Cache struct {
	next Store
	ttl  time.Duration
	now  func() time.Time

	mu          sync.Mutex
	entries     map[string]entry
	list        []domain.KnowledgeBase
	listExpires time.Time
	// gen counts invalidations. A fetch that overlaps one is not stored.
	gen uint64
}

// NewCache wraps next. A non-positive ttl uses DefaultTTL.
func NewCache(next Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{next: next, ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

// List implements Store.
func (c *Cache) List(ctx context.Context) ([]domain.KnowledgeBase, error) {
	c.mu.Lock()
	if c.list != nil && c.now().Before(c.listExpires) {
		out := append([]domain.KnowledgeBase(nil), c.list...)
		c.mu.Unlock()
		return out, nil
	}
	gen := c.gen
	c.mu.Unlock()

	kbs, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return kbs, nil
	}
	now := c.now()
	c.list = append([]domain.KnowledgeBase(nil), kbs...)
	c.listExpires = now.Add(c.ttl)
	for _, kb := range kbs {
		c.entries[kb.ID] = entry{kb: kb, expires: now.Add(c.ttl)}
	}
	return kbs, nil
}

// Get implements Store.
func (c *Cache) Get(ctx context.Context, id string) (domain.KnowledgeBase, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.kb, nil
	}
	gen := c.gen
	c.mu.Unlock()

	kb, err := c.next.Get(ctx, id)
	if err != nil {
		return domain.KnowledgeBase{}, err
	}
	c.mu.Lock()
	if c.gen == gen {
		c.entries[id] = entry{kb: kb, expires: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()
	return kb, nil
}

// SavePromptTemplate writes through and invalidates the cached entry.
func (c *Cache) SavePromptTemplate(ctx context.Context, id, template string) (domain.KnowledgeBase, error) {
	kb, err := c.next.SavePromptTemplate(ctx, id, template)
	c.Invalidate(id)
	return kb, err
}

// Invalidate drops the entry for id and the cached list.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.list = nil
	c.gen++
	c.mu.Unlock()
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.list = nil
	c.gen++
	c.mu.Unlock()
}
