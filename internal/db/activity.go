package db

import (
	"database/sql"
	"fmt"
	"time"
)

// ActivityEntry is one row of the activity log: a single field change.
// Changes sharing entity, author and instant form one activity.
type ActivityEntry struct {
	ID        int64
	Kind      string
	EntityID  int64
	Field     string
	OldValue  string
	NewValue  string
	ChangedBy string
	ChangedAt time.Time
}

// RecordActivity logs a field change on an entity.
func RecordActivity(ex execer, e ActivityEntry) error {
	_, err := ex.Exec(
		`INSERT INTO activity_log (kind, entity_id, field, old_value, new_value, changed_by, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Kind, e.EntityID, e.Field, e.OldValue, e.NewValue, e.ChangedBy, toMillis(e.ChangedAt),
	)
	if err != nil {
		return fmt.Errorf("recording activity: %w", err)
	}
	return nil
}

// GetActivity retrieves activity log entries for an entity, ordered by most recent first.
func GetActivity(db *sql.DB, kind string, entityID int64, limit int) ([]ActivityEntry, error) {
	query := `SELECT id, kind, entity_id, field, old_value, new_value, changed_by, changed_at
	          FROM activity_log
	          WHERE kind = ? AND entity_id = ?
	          ORDER BY changed_at DESC, id DESC`
	args := []any{kind, entityID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var (
			e              ActivityEntry
			oldVal, newVal sql.NullString
			changedAt      int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.EntityID, &e.Field, &oldVal, &newVal, &e.ChangedBy, &changedAt); err != nil {
			return nil, fmt.Errorf("scanning activity row: %w", err)
		}
		e.OldValue = oldVal.String
		e.NewValue = newVal.String
		e.ChangedAt = fromMillis(changedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity rows: %w", err)
	}

	return entries, nil
}

// CountActivity returns the number of activity log entries of a kind.
func CountActivity(db *sql.DB, kind string) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM activity_log WHERE kind = ?`, kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s activity: %w", kind, err)
	}
	return n, nil
}
