package db

import (
	"database/sql"
	"fmt"
	"strconv"
)

const currentSchemaVersion = 2

// schemaDDL contains the CREATE TABLE statements for the initial schema.
// Instants are stored as Unix milliseconds.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS snapshots (
	kind       TEXT NOT NULL,
	id         INTEGER NOT NULL,
	parent_id  INTEGER NOT NULL DEFAULT 0,
	creator    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	facets     TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (kind, id)
);

CREATE TABLE IF NOT EXISTS activity_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	entity_id  INTEGER NOT NULL,
	field      TEXT NOT NULL,
	old_value  TEXT,
	new_value  TEXT,
	changed_by TEXT NOT NULL,
	changed_at INTEGER NOT NULL,
	FOREIGN KEY (kind, entity_id) REFERENCES snapshots(kind, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS versions (
	kind         TEXT NOT NULL,
	entity_id    INTEGER NOT NULL,
	valid_from   INTEGER NOT NULL,
	valid_to     INTEGER NOT NULL,
	author       TEXT NOT NULL,
	annotation   TEXT,
	facets       TEXT NOT NULL DEFAULT '{}',
	measurements TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (kind, entity_id, valid_from)
);

CREATE INDEX IF NOT EXISTS idx_activity_log_entity ON activity_log(kind, entity_id, changed_at);
CREATE INDEX IF NOT EXISTS idx_activity_log_changed_at ON activity_log(kind, changed_at);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	since       INTEGER NOT NULL DEFAULT 0,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	status      TEXT NOT NULL DEFAULT 'running',
	entities    INTEGER NOT NULL DEFAULT 0,
	failures    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_kind_started ON runs(kind, started_at);
`

// Initialize creates all tables if they don't exist and sets the schema version.
func Initialize(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaDDL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	_, err = tx.Exec(
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(currentSchemaVersion),
	)
	if err != nil {
		return fmt.Errorf("setting schema version: %w", err)
	}

	return tx.Commit()
}

// SchemaVersion returns the current schema version from the meta table.
func SchemaVersion(db *sql.DB) (int, error) {
	var val string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&val)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}

	v, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing schema version %q: %w", val, err)
	}

	return v, nil
}

// migrations is a list of migration functions keyed by the version they migrate TO.
// Version 1 workspaces predate run tracking.
var migrations = map[int]func(tx *sql.Tx) error{
	2: func(tx *sql.Tx) error {
		_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	since       INTEGER NOT NULL DEFAULT 0,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	status      TEXT NOT NULL DEFAULT 'running',
	entities    INTEGER NOT NULL DEFAULT 0,
	failures    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_kind_started ON runs(kind, started_at);
`)
		return err
	},
}

// Migrate checks the current schema version and applies any pending migrations
// sequentially. It is a no-op when already at the latest version.
func Migrate(db *sql.DB) error {
	version, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		return nil
	}

	for v := version + 1; v <= currentSchemaVersion; v++ {
		migrateFn, ok := migrations[v]
		if !ok {
			return fmt.Errorf("missing migration for version %d", v)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d transaction: %w", v, err)
		}

		if err := migrateFn(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", v, err)
		}

		if _, err := tx.Exec(
			`UPDATE meta SET value = ? WHERE key = 'schema_version'`,
			strconv.Itoa(v),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("updating schema version to %d: %w", v, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", v, err)
		}
	}

	return nil
}

// ClearVersions deletes the persisted histories of one kind.
func ClearVersions(db *sql.DB, kind string) (int64, error) {
	res, err := db.Exec(`DELETE FROM versions WHERE kind = ?`, kind)
	if err != nil {
		return 0, fmt.Errorf("clearing %s versions: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleared versions: %w", err)
	}
	return n, nil
}
