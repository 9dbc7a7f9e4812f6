package history

import (
	"context"
	"time"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// Row is one input row. All rows of an entity are contiguous and repeat the
// entity's identity and current facets; each carries at most one activity.
type Row[F model.Facet] struct {
	EntityID  int64
	ParentID  int64
	Creator   string
	CreatedAt time.Time
	Current   map[F]string
	Activity  *model.Activity[F]
}

// Cursor is a forward-only source of rows, grouped by entity, with each
// entity's activities ordered most recent first.
type Cursor[F model.Facet] interface {
	Next() bool
	Row() Row[F]
	Err() error
}

// Lookup finds the persisted history of an entity. It returns a nil entity and
// a nil error when nothing was persisted yet.
type Lookup[F model.Facet, M model.Field] interface {
	Find(ctx context.Context, id int64) (*model.Entity[F, M], error)
}

// SliceCursor iterates over rows held in memory.
type SliceCursor[F model.Facet] struct {
	rows []Row[F]
	pos  int
}

// NewSliceCursor returns a cursor positioned before the first row.
func NewSliceCursor[F model.Facet](rows ...Row[F]) *SliceCursor[F] {
	return &SliceCursor[F]{rows: rows, pos: -1}
}

func (c *SliceCursor[F]) Next() bool {
	if c.pos+1 >= len(c.rows) {
		c.pos = len(c.rows)
		return false
	}
	c.pos++
	return true
}

func (c *SliceCursor[F]) Row() Row[F] { return c.rows[c.pos] }

func (c *SliceCursor[F]) Err() error { return nil }
