// Package fixture loads source snapshots and activity logs from YAML files
// into the history database.
package fixture

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// File is the top level of a fixture document.
type File struct {
	Entities []Entity `yaml:"entities"`
}

// Entity is the current state of one source entity plus its activity log.
type Entity struct {
	Kind       model.Kind        `yaml:"kind"`
	ID         int64             `yaml:"id"`
	Parent     int64             `yaml:"parent,omitempty"`
	Creator    string            `yaml:"creator"`
	Created    time.Time         `yaml:"created"`
	Facets     map[string]string `yaml:"facets"`
	Activities []Activity        `yaml:"activities,omitempty"`
}

// Activity groups the field changes one author made at one instant.
type Activity struct {
	By      string            `yaml:"by"`
	At      time.Time         `yaml:"at"`
	Changes map[string]Change `yaml:"changes"`
}

// Change is the before and after value of a field.
type Change struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Summary counts what Load wrote.
type Summary struct {
	Entities int `json:"entities"`
	Changes  int `json:"changes"`
}

// Decode parses a fixture document. Unknown keys are an error.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decoding fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ReadFile decodes the fixture at path.
func ReadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fixture: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}

// Validate checks kinds, ids and activity timestamps. Creators and facet
// names are left to the rebuild, which reports them per entity.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Entities))
	for i, e := range f.Entities {
		if err := model.ValidateKind(e.Kind); err != nil {
			return fmt.Errorf("entity %d: %w", i, err)
		}
		if e.ID <= 0 {
			return fmt.Errorf("entity %d: id must be positive, got %d", i, e.ID)
		}
		key := e.Kind.FormatID(e.ID)
		if seen[key] {
			return fmt.Errorf("entity %s: listed twice", key)
		}
		seen[key] = true
		for j, a := range e.Activities {
			if a.At.IsZero() {
				return fmt.Errorf("entity %s: activity %d has no timestamp", key, j)
			}
			if len(a.Changes) == 0 {
				return fmt.Errorf("entity %s: activity %d changes nothing", key, j)
			}
		}
	}
	return nil
}

// Load writes every entity of f in a single transaction. Snapshots are
// replaced and activities are appended.
func Load(conn *sql.DB, f *File) (Summary, error) {
	var sum Summary
	tx, err := conn.Begin()
	if err != nil {
		return sum, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, e := range f.Entities {
		err := db.PutSnapshot(tx, db.Snapshot{
			Kind:      string(e.Kind),
			ID:        e.ID,
			ParentID:  e.Parent,
			Creator:   e.Creator,
			CreatedAt: e.Created,
			Facets:    e.Facets,
		})
		if err != nil {
			return sum, err
		}
		sum.Entities++

		for _, a := range e.Activities {
			for _, field := range sortedFields(a.Changes) {
				c := a.Changes[field]
				err := db.RecordActivity(tx, db.ActivityEntry{
					Kind:      string(e.Kind),
					EntityID:  e.ID,
					Field:     field,
					OldValue:  c.From,
					NewValue:  c.To,
					ChangedBy: a.By,
					ChangedAt: a.At,
				})
				if err != nil {
					return sum, fmt.Errorf("%s: %w", e.Kind.FormatID(e.ID), err)
				}
				sum.Changes++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("committing fixture: %w", err)
	}
	return sum, nil
}

func sortedFields(changes map[string]Change) []string {
	fields := make([]string, 0, len(changes))
	for f := range changes {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
