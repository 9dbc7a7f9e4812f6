package model

import (
	"fmt"
	"time"
)

// Entity is an issue or an attachment together with its version history,
// ordered oldest first.
type Entity[F Facet, M Field] struct {
	Kind      Kind
	ID        int64
	ParentID  int64
	Reporter  string
	CreatedAt time.Time

	versions []*Version[F, M]
}

// NewEntity creates an entity without versions.
func NewEntity[F Facet, M Field](kind Kind, id, parentID int64, reporter string, createdAt time.Time) *Entity[F, M] {
	return &Entity[F, M]{
		Kind:      kind,
		ID:        id,
		ParentID:  parentID,
		Reporter:  reporter,
		CreatedAt: createdAt,
	}
}

// Versions returns the history oldest first. The slice must not be modified.
func (e *Entity[F, M]) Versions() []*Version[F, M] {
	return e.versions
}

// Len returns the number of versions.
func (e *Entity[F, M]) Len() int {
	return len(e.versions)
}

// First returns the oldest version, or nil.
func (e *Entity[F, M]) First() *Version[F, M] {
	if len(e.versions) == 0 {
		return nil
	}
	return e.versions[0]
}

// Latest returns the most recent version, or nil.
func (e *Entity[F, M]) Latest() *Version[F, M] {
	if len(e.versions) == 0 {
		return nil
	}
	return e.versions[len(e.versions)-1]
}

// Prepend adds v as the new oldest version. It must end where the current
// oldest version starts.
func (e *Entity[F, M]) Prepend(v *Version[F, M]) error {
	if first := e.First(); first != nil && !v.To.Equal(first.From) {
		return fmt.Errorf("%w: %s %d: version %s does not precede %s", ErrFaultyInterval, e.Kind, e.ID, v, first)
	}
	if !v.From.Before(v.To) {
		return fmt.Errorf("%w: %s %d: empty version %s", ErrFaultyInterval, e.Kind, e.ID, v)
	}
	e.versions = append([]*Version[F, M]{v}, e.versions...)
	return nil
}

// SetVersions replaces the history after checking contiguity.
func (e *Entity[F, M]) SetVersions(versions []*Version[F, M]) error {
	if err := checkContiguous(versions); err != nil {
		return fmt.Errorf("%s %d: %w", e.Kind, e.ID, err)
	}
	e.versions = versions
	return nil
}

// Validate checks that the history is a gap-free sequence of non-empty
// intervals ending at Future.
func (e *Entity[F, M]) Validate() error {
	if err := checkContiguous(e.versions); err != nil {
		return fmt.Errorf("%s %d: %w", e.Kind, e.ID, err)
	}
	if last := e.Latest(); last != nil && !last.IsLatest() {
		return fmt.Errorf("%w: %s %d: latest version ends at %s", ErrFaultyInterval, e.Kind, e.ID, formatInstant(last.To))
	}
	return nil
}

func checkContiguous[F Facet, M Field](versions []*Version[F, M]) error {
	for i, v := range versions {
		if !v.From.Before(v.To) {
			return fmt.Errorf("%w: empty version %s", ErrFaultyInterval, v)
		}
		if i > 0 && !versions[i-1].To.Equal(v.From) {
			return fmt.Errorf("%w: %s is not followed by %s", ErrFaultyInterval, versions[i-1], v)
		}
	}
	return nil
}

// Unsaved returns the versions a sink has to write.
func (e *Entity[F, M]) Unsaved() []*Version[F, M] {
	var out []*Version[F, M]
	for _, v := range e.versions {
		if v.State.NeedsWrite() {
			out = append(out, v)
		}
	}
	return out
}

// MarkSaved moves every version to the saved state.
func (e *Entity[F, M]) MarkSaved() {
	for _, v := range e.versions {
		v.State = v.State.Written()
	}
}

// IsNew reports whether no version of the entity was ever written.
func (e *Entity[F, M]) IsNew() bool {
	for _, v := range e.versions {
		if v.State != StateNew {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (e *Entity[F, M]) Clone() *Entity[F, M] {
	c := *e
	c.versions = make([]*Version[F, M], len(e.versions))
	for i, v := range e.versions {
		c.versions[i] = v.Clone()
	}
	return &c
}

// Equal compares identity and versions, ignoring annotations and persistence
// state.
func (e *Entity[F, M]) Equal(o *Entity[F, M]) bool {
	if e.Kind != o.Kind || e.ID != o.ID || e.ParentID != o.ParentID || e.Reporter != o.Reporter ||
		!e.CreatedAt.Equal(o.CreatedAt) || len(e.versions) != len(o.versions) {
		return false
	}
	for i := range e.versions {
		if !e.versions[i].Equal(o.versions[i]) {
			return false
		}
	}
	return true
}

func (e *Entity[F, M]) String() string {
	return fmt.Sprintf("%s (%d versions, reporter %s)", e.Kind.FormatID(e.ID), len(e.versions), e.Reporter)
}
