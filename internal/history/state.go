package history

import (
	"maps"
	"slices"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

type mismatchKind string

const (
	mismatchValue      mismatchKind = "value"
	mismatchAbsentFlag mismatchKind = "absent-flag"
	mismatchSetFlag    mismatchKind = "flag-already-set"
	mismatchMalformed  mismatchKind = "malformed-flag"
)

// mismatch describes a disagreement between an activity and the working state.
type mismatch struct {
	kind     mismatchKind
	facet    string
	expected string
	found    string
}

// breaksOrder reports whether the mismatch disqualifies an ordering of
// simultaneous activities. Malformed tokens do not depend on order.
func (m mismatch) breaksOrder() bool {
	return m.kind != mismatchMalformed
}

// state is the working state of a rebuild: the sourced facets, plus the flag
// set keyed by flag name so flags are parsed once.
type state[F model.Facet, M model.Field] struct {
	schema *model.Schema[F, M]
	facets map[F]string
	flags  map[string]model.Flag
}

// newState seeds a working state from an entity's current facets. Computed
// facets are ignored and the flags facet is normalized.
func newState[F model.Facet, M model.Field](schema *model.Schema[F, M], current map[F]string) (*state[F, M], []mismatch) {
	s := &state[F, M]{
		schema: schema,
		facets: make(map[F]string),
		flags:  make(map[string]model.Flag),
	}
	for _, f := range schema.Sourced() {
		if v, ok := current[f]; ok {
			s.facets[f] = v
		}
	}

	flags, errs := schema.ParseFlags(current[schema.Flags])
	var out []mismatch
	for _, err := range errs {
		out = append(out, mismatch{kind: mismatchMalformed, facet: schema.Flags.Name(), found: err.Error()})
	}
	for _, fl := range flags {
		s.flags[fl.Name] = fl
	}
	s.syncFlags()
	return s, out
}

func (s *state[F, M]) clone() *state[F, M] {
	return &state[F, M]{
		schema: s.schema,
		facets: maps.Clone(s.facets),
		flags:  maps.Clone(s.flags),
	}
}

func (s *state[F, M]) syncFlags() {
	names := slices.Sorted(maps.Keys(s.flags))
	flags := make([]model.Flag, len(names))
	for i, name := range names {
		flags[i] = s.flags[name]
	}
	s.facets[s.schema.Flags] = s.schema.FormatFlags(flags)
}

// invert undoes an activity: afterwards the state is the one just before the
// activity happened. Mismatches are repaired using the activity's values and
// returned to the caller.
func (s *state[F, M]) invert(a *model.Activity[F]) []mismatch {
	var out []mismatch
	for _, f := range s.schema.Facets {
		if f.Computed() {
			continue
		}
		change, ok := a.Changes[f]
		if !ok || change.Untouched() {
			continue
		}
		if f == s.schema.Flags {
			out = append(out, s.invertFlags(change)...)
			continue
		}
		if found := s.facets[f]; found != change.To {
			out = append(out, mismatch{kind: mismatchValue, facet: f.Name(), expected: change.To, found: found})
		}
		s.facets[f] = change.From
	}
	return out
}

// invertFlags removes the flags the activity added and restores the ones it
// removed.
func (s *state[F, M]) invertFlags(change model.Change) []mismatch {
	var out []mismatch
	name := s.schema.Flags.Name()

	added, errs := s.schema.ParseFlags(change.To)
	removed, moreErrs := s.schema.ParseFlags(change.From)
	for _, err := range append(errs, moreErrs...) {
		out = append(out, mismatch{kind: mismatchMalformed, facet: name, found: err.Error()})
	}

	for _, fl := range added {
		if _, ok := s.flags[fl.Name]; !ok {
			out = append(out, mismatch{kind: mismatchAbsentFlag, facet: name, expected: fl.String()})
		}
		delete(s.flags, fl.Name)
	}
	for _, fl := range removed {
		if cur, ok := s.flags[fl.Name]; ok {
			out = append(out, mismatch{kind: mismatchSetFlag, facet: name, expected: fl.String(), found: cur.String()})
		}
		s.flags[fl.Name] = fl
	}
	s.syncFlags()
	return out
}

// consistent reports whether none of the mismatches disqualify an ordering.
func consistent(ms []mismatch) bool {
	for _, m := range ms {
		if m.breaksOrder() {
			return false
		}
	}
	return true
}
