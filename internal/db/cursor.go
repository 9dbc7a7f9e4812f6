package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/ALT-F4-LLC/rewind/internal/history"
	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// DefaultCursorBatch is the number of entities an ActivityCursor loads per query.
const DefaultCursorBatch = 500

// cursorQuery selects a page of entities that were created or changed after
// a point in time, joined with their activity log entries after that point.
// Entries sharing an instant and an author are adjacent.
const cursorQuery = `
SELECT s.id, s.parent_id, s.creator, s.created_at, s.facets,
       a.field, a.old_value, a.new_value, a.changed_by, a.changed_at
FROM (
	SELECT kind, id, parent_id, creator, created_at, facets
	FROM snapshots
	WHERE kind = ? AND id > ?
	  AND (created_at > ? OR EXISTS (
		SELECT 1 FROM activity_log x
		WHERE x.kind = snapshots.kind AND x.entity_id = snapshots.id AND x.changed_at > ?))
	ORDER BY id
	LIMIT ?
) s
LEFT JOIN activity_log a ON a.kind = s.kind AND a.entity_id = s.id AND a.changed_at > ?
ORDER BY s.id, a.changed_at DESC, a.changed_by, a.id`

// ActivityCursor reads snapshots and the activity log as rebuild rows. It
// pivots the narrow log into one activity per entity, author and instant.
//
// Entities are loaded a page at a time and the page is fully read before it
// is served, so the connection is free for lookups while rows are consumed.
type ActivityCursor[F model.Facet, M model.Field] struct {
	db     *sql.DB
	schema *model.Schema[F, M]
	since  int64
	batch  int

	lastID int64
	done   bool
	page   []history.Row[F]
	pos    int
	row    history.Row[F]
	err    error
}

// NewActivityCursor creates a cursor over the entities of schema's kind that
// changed after since. A zero since selects everything.
func NewActivityCursor[F model.Facet, M model.Field](db *sql.DB, schema *model.Schema[F, M], since time.Time, batch int) *ActivityCursor[F, M] {
	if batch <= 0 {
		batch = DefaultCursorBatch
	}
	floor := int64(math.MinInt64)
	if !since.IsZero() {
		floor = toMillis(since)
	}
	return &ActivityCursor[F, M]{db: db, schema: schema, since: floor, batch: batch}
}

func (c *ActivityCursor[F, M]) Next() bool {
	for c.pos >= len(c.page) {
		if c.done || c.err != nil {
			return false
		}
		c.err = c.load()
	}
	c.row = c.page[c.pos]
	c.pos++
	return true
}

func (c *ActivityCursor[F, M]) Row() history.Row[F] { return c.row }

func (c *ActivityCursor[F, M]) Err() error { return c.err }

// load reads the next page of entities.
func (c *ActivityCursor[F, M]) load() error {
	rows, err := c.db.Query(cursorQuery,
		string(c.schema.Kind), c.lastID, c.since, c.since, c.batch, c.since)
	if err != nil {
		return fmt.Errorf("querying %s activity: %w", c.schema.Kind, err)
	}
	defer rows.Close()

	c.page = c.page[:0]
	c.pos = 0
	var (
		entities int
		current  map[F]string
		last     *model.Activity[F]
	)
	for rows.Next() {
		var (
			id, parentID, createdAt int64
			creator, facets         string
			field, oldVal, newVal   sql.NullString
			changedBy               sql.NullString
			changedAt               sql.NullInt64
		)
		if err := rows.Scan(&id, &parentID, &creator, &createdAt, &facets,
			&field, &oldVal, &newVal, &changedBy, &changedAt); err != nil {
			return fmt.Errorf("scanning %s activity row: %w", c.schema.Kind, err)
		}

		if id != c.lastID || entities == 0 {
			entities++
			c.lastID = id
			last = nil
			if current, err = c.decodeFacets(id, facets); err != nil {
				return err
			}
		}

		row := history.Row[F]{
			EntityID:  id,
			ParentID:  parentID,
			Creator:   creator,
			CreatedAt: fromMillis(createdAt),
			Current:   current,
		}
		if !field.Valid {
			c.page = append(c.page, row)
			continue
		}

		f, ok := c.schema.Facet(field.String)
		if !ok || f.Computed() {
			return fmt.Errorf("%s: activity on unknown field %q", c.schema.Kind.FormatID(id), field.String)
		}
		at := fromMillis(changedAt.Int64)
		if last == nil || !last.ModifiedAt.Equal(at) || last.ModifiedBy != changedBy.String {
			last = &model.Activity[F]{
				EntityID:   id,
				ModifiedBy: changedBy.String,
				ModifiedAt: at,
				Changes:    make(map[F]model.Change),
			}
			row.Activity = last
			c.page = append(c.page, row)
		}
		last.Changes[f] = model.Change{From: oldVal.String, To: newVal.String}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s activity rows: %w", c.schema.Kind, err)
	}
	if entities < c.batch {
		c.done = true
	}
	return nil
}

func (c *ActivityCursor[F, M]) decodeFacets(id int64, raw string) (map[F]string, error) {
	var byName map[string]string
	if err := json.Unmarshal([]byte(raw), &byName); err != nil {
		return nil, fmt.Errorf("decoding snapshot of %s: %w", c.schema.Kind.FormatID(id), err)
	}
	out := make(map[F]string, len(byName))
	for name, val := range byName {
		f, ok := c.schema.Facet(name)
		if !ok {
			return nil, fmt.Errorf("snapshot of %s has unknown facet %q", c.schema.Kind.FormatID(id), name)
		}
		out[f] = val
	}
	return out, nil
}
