package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind names an entity kind.
type Kind string

const (
	KindIssue      Kind = "issue"
	KindAttachment Kind = "attachment"
)

var validKinds = []Kind{KindIssue, KindAttachment}

// ValidateKind returns an error if k is not a recognized entity kind.
func ValidateKind(k Kind) error {
	for _, v := range validKinds {
		if k == v {
			return nil
		}
	}
	return fmt.Errorf("invalid kind %q: must be one of %v", k, validKinds)
}

// Prefix returns the short display prefix used for ids of this kind.
func (k Kind) Prefix() string {
	switch k {
	case KindAttachment:
		return "ATT"
	default:
		return "BUG"
	}
}

// FormatID formats an entity id for display, e.g. "BUG-4711".
func (k Kind) FormatID(id int64) string {
	return fmt.Sprintf("%s-%d", k.Prefix(), id)
}

// ParseID parses an id string for this kind. It accepts the prefixed form
// (case-insensitive) or a bare positive integer.
func (k Kind) ParseID(s string) (int64, error) {
	raw := s
	if i := strings.IndexByte(s, '-'); i >= 0 {
		if !strings.EqualFold(s[:i], k.Prefix()) {
			return 0, fmt.Errorf("invalid %s id %q: unexpected prefix", k, s)
		}
		raw = s[i+1:]
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q: must be a positive integer", k, s)
	}
	return id, nil
}

// Field is a member of a closed facet or measurement enumeration.
type Field interface {
	comparable
	Name() string
}

// Facet is a versioned field. Sourced facets are replayed from the activity
// log, computed facets are filled in by the measurement pass.
type Facet interface {
	Field
	Computed() bool
	Multivalue() bool
}

// fieldInfo is the per-member metadata kept in each enumeration's table.
type fieldInfo struct {
	name       string
	computed   bool
	multivalue bool
}

// Schema describes one entity kind.
type Schema[F Facet, M Field] struct {
	Kind         Kind
	Facets       []F
	Measurements []M

	// Flags is the facet holding the serialized flag set.
	Flags F

	// Requestees reports whether flags of this kind carry a "(requestee)" part.
	Requestees bool
}

// Facet looks a facet up by name.
func (s *Schema[F, M]) Facet(name string) (F, bool) {
	for _, f := range s.Facets {
		if f.Name() == name {
			return f, true
		}
	}
	var zero F
	return zero, false
}

// Measurement looks a measurement up by name.
func (s *Schema[F, M]) Measurement(name string) (M, bool) {
	for _, m := range s.Measurements {
		if m.Name() == name {
			return m, true
		}
	}
	var zero M
	return zero, false
}

// Sourced returns the non-computed facets in declaration order.
func (s *Schema[F, M]) Sourced() []F {
	out := make([]F, 0, len(s.Facets))
	for _, f := range s.Facets {
		if !f.Computed() {
			out = append(out, f)
		}
	}
	return out
}

// ParseFlags parses a flags facet value. Malformed tokens are skipped and
// reported through the returned error slice.
func (s *Schema[F, M]) ParseFlags(representation string) ([]Flag, []error) {
	return ParseFlags(representation, s.Requestees)
}

// FormatFlags serializes a flag set for this kind.
func (s *Schema[F, M]) FormatFlags(flags []Flag) string {
	return FormatFlags(flags, s.Requestees)
}
