package history

import (
	"slices"
	"strings"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// orderConsistently searches for an order in which the simultaneous
// activities can be undone one after another without any mismatch. The
// result lists the activity whose effect is most recent first. Every branch
// works on its own copy of the state, so st is left untouched.
func orderConsistently[F model.Facet, M model.Field](set []*model.Activity[F], st *state[F, M]) ([]*model.Activity[F], bool) {
	if len(set) <= 1 {
		return slices.Clone(set), true
	}
	for i, candidate := range set {
		tryout := st.clone()
		if !consistent(tryout.invert(candidate)) {
			continue
		}
		rest := make([]*model.Activity[F], 0, len(set)-1)
		rest = append(rest, set[:i]...)
		rest = append(rest, set[i+1:]...)
		if tail, ok := orderConsistently(rest, tryout); ok {
			return append([]*model.Activity[F]{candidate}, tail...), true
		}
	}
	return nil, false
}

// orderByAuthor is the fallback order for simultaneous activities that have
// no consistent order: by author name, with the automation account first.
func orderByAuthor[F model.Facet](set []*model.Activity[F], automation string) []*model.Activity[F] {
	ordered := slices.Clone(set)
	slices.SortStableFunc(ordered, func(a, b *model.Activity[F]) int {
		aAuto, bAuto := a.ModifiedBy == automation, b.ModifiedBy == automation
		switch {
		case aAuto && !bAuto:
			return -1
		case bAuto && !aAuto:
			return 1
		}
		return strings.Compare(a.ModifiedBy, b.ModifiedBy)
	})
	return ordered
}
