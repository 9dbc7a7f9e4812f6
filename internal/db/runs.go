package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunFailed   = "failed"
)

// Run records one rebuild of an entity kind.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Since      time.Time `json:"since"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Entities   int       `json:"entities"`
	Failures   int       `json:"failures"`
}

// StartRun records the start of a rebuild covering activity after since.
func StartRun(ex execer, kind string, since, now time.Time) (*Run, error) {
	r := &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Since:     since.UTC(),
		StartedAt: now.UTC(),
		Status:    RunRunning,
	}
	var sinceMs int64
	if !since.IsZero() {
		sinceMs = toMillis(since)
	}
	_, err := ex.Exec(
		`INSERT INTO runs (id, kind, since, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Kind, sinceMs, toMillis(r.StartedAt), r.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("starting %s run: %w", kind, err)
	}
	return r, nil
}

// FinishRun stores the outcome of a run.
func FinishRun(ex execer, r *Run, status string, now time.Time) error {
	r.Status = status
	r.FinishedAt = now.UTC()
	res, err := ex.Exec(
		`UPDATE runs SET status = ?, finished_at = ?, entities = ?, failures = ? WHERE id = ?`,
		r.Status, toMillis(r.FinishedAt), r.Entities, r.Failures, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", r.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

// LastFinishedRun returns the most recent successful run of a kind, or
// ErrNotFound.
func LastFinishedRun(db *sql.DB, kind string) (*Run, error) {
	row := db.QueryRow(
		`SELECT id, kind, since, started_at, finished_at, status, entities, failures
		 FROM runs WHERE kind = ? AND status = ?
		 ORDER BY started_at DESC LIMIT 1`,
		kind, RunFinished,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finished %s run: %w", kind, ErrNotFound)
	}
	return r, err
}

// ListRuns returns the most recent runs, newest first. An empty kind lists all kinds.
func ListRuns(db *sql.DB, kind string, limit int) ([]*Run, error) {
	query := `SELECT id, kind, since, started_at, finished_at, status, entities, failures FROM runs`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

func scanRun(s scanner) (*Run, error) {
	var (
		r                Run
		since, startedAt int64
		finishedAt       sql.NullInt64
	)
	if err := s.Scan(&r.ID, &r.Kind, &since, &startedAt, &finishedAt, &r.Status, &r.Entities, &r.Failures); err != nil {
		return nil, err
	}
	if since != 0 {
		r.Since = fromMillis(since)
	}
	r.StartedAt = fromMillis(startedAt)
	if finishedAt.Valid {
		r.FinishedAt = fromMillis(finishedAt.Int64)
	}
	return &r, nil
}
