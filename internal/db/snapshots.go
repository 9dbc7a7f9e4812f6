package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Snapshot is the current state of a source entity, the starting point of a
// backward rebuild.
type Snapshot struct {
	Kind      string
	ID        int64
	ParentID  int64
	Creator   string
	CreatedAt time.Time
	Facets    map[string]string
}

// PutSnapshot inserts or replaces the snapshot of an entity.
func PutSnapshot(ex execer, s Snapshot) error {
	facets, err := json.Marshal(nonNil(s.Facets))
	if err != nil {
		return fmt.Errorf("encoding facets of %s %d: %w", s.Kind, s.ID, err)
	}
	_, err = ex.Exec(
		`INSERT INTO snapshots (kind, id, parent_id, creator, created_at, facets)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (kind, id) DO UPDATE SET
			parent_id = excluded.parent_id,
			creator = excluded.creator,
			created_at = excluded.created_at,
			facets = excluded.facets`,
		s.Kind, s.ID, s.ParentID, s.Creator, toMillis(s.CreatedAt), string(facets),
	)
	if err != nil {
		return fmt.Errorf("storing snapshot of %s %d: %w", s.Kind, s.ID, err)
	}
	return nil
}

// GetSnapshot returns the snapshot of an entity, or ErrNotFound.
func GetSnapshot(db *sql.DB, kind string, id int64) (*Snapshot, error) {
	row := db.QueryRow(
		`SELECT kind, id, parent_id, creator, created_at, facets FROM snapshots WHERE kind = ? AND id = ?`,
		kind, id,
	)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return s, err
}

// CountSnapshots returns the number of source entities of a kind.
func CountSnapshots(db *sql.DB, kind string) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE kind = ?`, kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s snapshots: %w", kind, err)
	}
	return n, nil
}

func scanSnapshot(s scanner) (*Snapshot, error) {
	var (
		snap      Snapshot
		createdAt int64
		facets    string
	)
	if err := s.Scan(&snap.Kind, &snap.ID, &snap.ParentID, &snap.Creator, &createdAt, &facets); err != nil {
		return nil, err
	}
	snap.CreatedAt = fromMillis(createdAt)
	if err := json.Unmarshal([]byte(facets), &snap.Facets); err != nil {
		return nil, fmt.Errorf("decoding facets of %s %d: %w", snap.Kind, snap.ID, err)
	}
	return &snap, nil
}

func nonNil[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return m
}
