package model

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

// Future is the To of the most recent version of an entity.
var Future = time.Date(2199, time.December, 31, 0, 0, 0, 0, time.UTC)

// ErrFaultyInterval is returned when versions would not form a contiguous,
// non-empty sequence of intervals.
var ErrFaultyInterval = errors.New("faulty version interval")

// Version is a snapshot of an entity's facets, valid over [From, To).
type Version[F Facet, M Field] struct {
	From         time.Time
	To           time.Time
	Author       string
	Annotation   string
	Facets       map[F]string
	Measurements map[M]int64
	State        PersistenceState
}

// NewLatest creates the most recent version of an entity, valid from the given
// time until Future. The facet map is copied.
func NewLatest[F Facet, M Field](facets map[F]string, author string, from time.Time, annotation string) (*Version[F, M], error) {
	if !from.Before(Future) {
		return nil, fmt.Errorf("%w: latest version starts at %s", ErrFaultyInterval, from.Format(time.RFC3339Nano))
	}
	return &Version[F, M]{
		From:         from,
		To:           Future,
		Author:       author,
		Annotation:   annotation,
		Facets:       cloneFacets(facets),
		Measurements: make(map[M]int64),
		State:        StateNew,
	}, nil
}

// Predecessor creates the version directly preceding v, valid over
// [from, v.From). The facet map is copied.
func (v *Version[F, M]) Predecessor(facets map[F]string, author string, from time.Time, annotation string) (*Version[F, M], error) {
	if !from.Before(v.From) {
		return nil, fmt.Errorf("%w: predecessor starts at %s, successor at %s",
			ErrFaultyInterval, from.Format(time.RFC3339Nano), v.From.Format(time.RFC3339Nano))
	}
	return &Version[F, M]{
		From:         from,
		To:           v.From,
		Author:       author,
		Annotation:   annotation,
		Facets:       cloneFacets(facets),
		Measurements: make(map[M]int64),
		State:        StateNew,
	}, nil
}

// Extend returns a copy of v that is valid until to. The copy's persistence
// state reflects the change.
func (v *Version[F, M]) Extend(to time.Time, annotation string) (*Version[F, M], error) {
	if !to.After(v.From) {
		return nil, fmt.Errorf("%w: cannot end version starting at %s at %s",
			ErrFaultyInterval, v.From.Format(time.RFC3339Nano), to.Format(time.RFC3339Nano))
	}
	c := v.Clone()
	c.To = to
	c.Annotation = annotation
	c.State = v.State.Extended()
	return c, nil
}

// Clone returns a deep copy of v.
func (v *Version[F, M]) Clone() *Version[F, M] {
	c := *v
	c.Facets = cloneFacets(v.Facets)
	c.Measurements = maps.Clone(v.Measurements)
	if c.Measurements == nil {
		c.Measurements = make(map[M]int64)
	}
	return &c
}

// Facet returns the value of f, or "" when unset.
func (v *Version[F, M]) Facet(f F) string {
	return v.Facets[f]
}

// Measurement returns the value of m and whether it is set.
func (v *Version[F, M]) Measurement(m M) (int64, bool) {
	n, ok := v.Measurements[m]
	return n, ok
}

// IsLatest reports whether v is still open-ended.
func (v *Version[F, M]) IsLatest() bool {
	return !v.To.Before(Future)
}

// Duration returns the length of the validity interval.
func (v *Version[F, M]) Duration() time.Duration {
	return v.To.Sub(v.From)
}

// Equal compares validity, author, facets and measurements. Annotation and
// persistence state are provenance and do not take part.
func (v *Version[F, M]) Equal(o *Version[F, M]) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.From.Equal(o.From) &&
		v.To.Equal(o.To) &&
		v.Author == o.Author &&
		equalFacets(v.Facets, o.Facets) &&
		maps.Equal(v.Measurements, o.Measurements)
}

func cloneFacets[F comparable](facets map[F]string) map[F]string {
	if facets == nil {
		return make(map[F]string)
	}
	return maps.Clone(facets)
}

// equalFacets treats unset facets and empty values alike.
func equalFacets[F comparable](a, b map[F]string) bool {
	for k, x := range a {
		if b[k] != x {
			return false
		}
	}
	for k, y := range b {
		if a[k] != y {
			return false
		}
	}
	return true
}

func (v *Version[F, M]) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s, %s) by %s", formatInstant(v.From), formatInstant(v.To), v.Author)
	if v.Annotation != "" {
		fmt.Fprintf(&b, " %q", v.Annotation)
	}
	fmt.Fprintf(&b, " (%s)", v.State)
	return b.String()
}

func formatInstant(t time.Time) string {
	if !t.Before(Future) {
		return "future"
	}
	return t.UTC().Format("2006-01-02 15:04:05.000")
}
