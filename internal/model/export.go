package model

import (
	"fmt"
	"time"
)

// VersionRecord is the name-keyed form of a version, used for storage,
// search documents and JSON output.
type VersionRecord struct {
	From         time.Time         `json:"from"`
	To           time.Time         `json:"to"`
	Author       string            `json:"author"`
	Annotation   string            `json:"annotation,omitempty"`
	Facets       map[string]string `json:"facets"`
	Measurements map[string]int64  `json:"measurements"`
	State        string            `json:"state,omitempty"`
}

// EntityRecord is the name-keyed form of an entity and its history.
type EntityRecord struct {
	Kind      Kind            `json:"kind"`
	ID        string          `json:"id"`
	ParentID  string          `json:"parent_id,omitempty"`
	Reporter  string          `json:"reporter"`
	CreatedAt time.Time       `json:"created_at"`
	Versions  []VersionRecord `json:"versions"`
}

// Record converts a version to its name-keyed form. Empty facets are omitted.
func (s *Schema[F, M]) Record(v *Version[F, M]) VersionRecord {
	r := VersionRecord{
		From:         v.From.UTC(),
		To:           v.To.UTC(),
		Author:       v.Author,
		Annotation:   v.Annotation,
		Facets:       make(map[string]string, len(v.Facets)),
		Measurements: make(map[string]int64, len(v.Measurements)),
		State:        v.State.String(),
	}
	for _, f := range s.Facets {
		if val := v.Facets[f]; val != "" {
			r.Facets[f.Name()] = val
		}
	}
	for _, m := range s.Measurements {
		if n, ok := v.Measurements[m]; ok {
			r.Measurements[m.Name()] = n
		}
	}
	return r
}

// Version converts a record back. Unknown facet or measurement names are an
// error. The persistence state is left at its zero value.
func (s *Schema[F, M]) Version(r VersionRecord) (*Version[F, M], error) {
	v := &Version[F, M]{
		From:         r.From.UTC(),
		To:           r.To.UTC(),
		Author:       r.Author,
		Annotation:   r.Annotation,
		Facets:       make(map[F]string, len(r.Facets)),
		Measurements: make(map[M]int64, len(r.Measurements)),
	}
	for name, val := range r.Facets {
		f, ok := s.Facet(name)
		if !ok {
			return nil, fmt.Errorf("unknown %s facet %q", s.Kind, name)
		}
		v.Facets[f] = val
	}
	for name, n := range r.Measurements {
		m, ok := s.Measurement(name)
		if !ok {
			return nil, fmt.Errorf("unknown %s measurement %q", s.Kind, name)
		}
		v.Measurements[m] = n
	}
	return v, nil
}

// Export converts an entity and all of its versions.
func (s *Schema[F, M]) Export(e *Entity[F, M]) EntityRecord {
	r := EntityRecord{
		Kind:      e.Kind,
		ID:        e.Kind.FormatID(e.ID),
		Reporter:  e.Reporter,
		CreatedAt: e.CreatedAt.UTC(),
		Versions:  make([]VersionRecord, 0, e.Len()),
	}
	if e.ParentID != 0 {
		r.ParentID = KindIssue.FormatID(e.ParentID)
	}
	for _, v := range e.Versions() {
		r.Versions = append(r.Versions, s.Record(v))
	}
	return r
}
