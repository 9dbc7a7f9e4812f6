package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// VersionStore persists rebuilt histories of one entity kind.
type VersionStore[F model.Facet, M model.Field] struct {
	db     *sql.DB
	schema *model.Schema[F, M]
}

// NewVersionStore creates a store for schema's kind.
func NewVersionStore[F model.Facet, M model.Field](db *sql.DB, schema *model.Schema[F, M]) *VersionStore[F, M] {
	return &VersionStore[F, M]{db: db, schema: schema}
}

// Find loads the persisted history of an entity, oldest version first. It
// returns nil without error when nothing was persisted.
func (s *VersionStore[F, M]) Find(ctx context.Context, id int64) (*model.Entity[F, M], error) {
	kind := string(s.schema.Kind)
	rows, err := s.db.QueryContext(ctx,
		`SELECT valid_from, valid_to, author, annotation, facets, measurements
		 FROM versions WHERE kind = ? AND entity_id = ?
		 ORDER BY valid_from`,
		kind, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying versions of %s: %w", s.schema.Kind.FormatID(id), err)
	}
	var versions []*model.Version[F, M]
	for rows.Next() {
		v, err := s.scanVersion(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("reading version of %s: %w", s.schema.Kind.FormatID(id), err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating versions of %s: %w", s.schema.Kind.FormatID(id), err)
	}
	rows.Close()
	if len(versions) == 0 {
		return nil, nil
	}

	var (
		parentID  int64
		creator   string
		createdAt int64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT parent_id, creator, created_at FROM snapshots WHERE kind = ? AND id = ?`, kind, id,
	).Scan(&parentID, &creator, &createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading snapshot of %s: %w", s.schema.Kind.FormatID(id), err)
	}

	e := model.NewEntity[F, M](s.schema.Kind, id, parentID, creator, fromMillis(createdAt))
	if err := e.SetVersions(versions); err != nil {
		return nil, fmt.Errorf("persisted history of %s: %w", s.schema.Kind.FormatID(id), err)
	}
	return e, nil
}

func (s *VersionStore[F, M]) scanVersion(sc scanner) (*model.Version[F, M], error) {
	var (
		from, to             int64
		annotation           sql.NullString
		facets, measurements string
		r                    model.VersionRecord
	)
	if err := sc.Scan(&from, &to, &r.Author, &annotation, &facets, &measurements); err != nil {
		return nil, err
	}
	r.From, r.To, r.Annotation = fromMillis(from), fromMillis(to), annotation.String
	if err := json.Unmarshal([]byte(facets), &r.Facets); err != nil {
		return nil, fmt.Errorf("decoding facets: %w", err)
	}
	if err := json.Unmarshal([]byte(measurements), &r.Measurements); err != nil {
		return nil, fmt.Errorf("decoding measurements: %w", err)
	}
	v, err := s.schema.Version(r)
	if err != nil {
		return nil, err
	}
	v.State = model.StateSaved
	return v, nil
}

// Save writes the new and extended versions of an entity in one transaction.
// A history that was never written replaces whatever is stored for the
// entity. Persistence states are left alone; the caller marks the entity
// saved once every sink succeeded.
func (s *VersionStore[F, M]) Save(ctx context.Context, e *model.Entity[F, M]) error {
	unsaved := e.Unsaved()
	if len(unsaved) == 0 {
		return nil
	}
	kind := string(s.schema.Kind)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if e.IsNew() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM versions WHERE kind = ? AND entity_id = ?`, kind, e.ID); err != nil {
			return fmt.Errorf("replacing versions of %s: %w", e.Kind.FormatID(e.ID), err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO versions (kind, entity_id, valid_from, valid_to, author, annotation, facets, measurements)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (kind, entity_id, valid_from) DO UPDATE SET
			valid_to = excluded.valid_to,
			author = excluded.author,
			annotation = excluded.annotation,
			facets = excluded.facets,
			measurements = excluded.measurements`)
	if err != nil {
		return fmt.Errorf("preparing version insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range unsaved {
		r := s.schema.Record(v)
		facets, err := json.Marshal(r.Facets)
		if err != nil {
			return fmt.Errorf("encoding facets: %w", err)
		}
		measurements, err := json.Marshal(r.Measurements)
		if err != nil {
			return fmt.Errorf("encoding measurements: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, kind, e.ID, toMillis(v.From), toMillis(v.To),
			v.Author, v.Annotation, string(facets), string(measurements)); err != nil {
			return fmt.Errorf("writing version %s of %s: %w", v, e.Kind.FormatID(e.ID), err)
		}
	}

	return tx.Commit()
}

// CountVersions returns the number of stored versions and distinct entities of the store's kind.
func (s *VersionStore[F, M]) CountVersions(ctx context.Context) (versions, entities int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT entity_id) FROM versions WHERE kind = ?`, string(s.schema.Kind),
	).Scan(&versions, &entities)
	if err != nil {
		return 0, 0, fmt.Errorf("counting %s versions: %w", s.schema.Kind, err)
	}
	return versions, entities, nil
}
