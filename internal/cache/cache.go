// Package cache keeps recently rebuilt histories in memory between runs.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ALT-F4-LLC/rewind/internal/history"
	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// DefaultSize is the number of entities kept when no size is configured.
const DefaultSize = 4096

// Lookup is a read-through cache in front of a persisted history lookup. It
// is also a sink: saving an entity replaces the cached copy, so the cache
// never serves a history older than the store's.
//
// Entities are copied on the way in and out; callers may modify what they
// get.
type Lookup[F model.Facet, M model.Field] struct {
	next    history.Lookup[F, M]
	entries *lru.Cache[int64, *model.Entity[F, M]]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

var _ history.Lookup[model.IssueFacet, model.IssueMeasure] = (*Lookup[model.IssueFacet, model.IssueMeasure])(nil)

// New wraps next with a cache of the given size. A size of zero or less
// uses DefaultSize.
func New[F model.Facet, M model.Field](next history.Lookup[F, M], size int) (*Lookup[F, M], error) {
	if size <= 0 {
		size = DefaultSize
	}
	l := &Lookup[F, M]{next: next}
	entries, err := lru.NewWithEvict[int64, *model.Entity[F, M]](size, func(int64, *model.Entity[F, M]) {
		l.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("creating history cache: %w", err)
	}
	l.entries = entries
	return l, nil
}

// Find returns the cached history of an entity, loading it on a miss.
func (l *Lookup[F, M]) Find(ctx context.Context, id int64) (*model.Entity[F, M], error) {
	if e, ok := l.entries.Get(id); ok {
		l.hits.Add(1)
		return e.Clone(), nil
	}
	l.misses.Add(1)

	e, err := l.next.Find(ctx, id)
	if err != nil || e == nil {
		return e, err
	}
	l.entries.Add(id, e.Clone())
	return e, nil
}

// Save caches a copy of the entity as it is after a successful write.
func (l *Lookup[F, M]) Save(_ context.Context, e *model.Entity[F, M]) error {
	saved := e.Clone()
	saved.MarkSaved()
	l.entries.Add(e.ID, saved)
	return nil
}

// Purge drops every cached entity.
func (l *Lookup[F, M]) Purge() {
	l.entries.Purge()
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// Stats returns the current counters.
func (l *Lookup[F, M]) Stats() Stats {
	return Stats{
		Hits:      l.hits.Load(),
		Misses:    l.misses.Load(),
		Evictions: l.evictions.Load(),
		Size:      l.entries.Len(),
	}
}
