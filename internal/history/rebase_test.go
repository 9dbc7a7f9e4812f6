package history

import (
	"fmt"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

func chain(t *testing.T, author string, starts ...time.Time) []*model.IssueVersion {
	t.Helper()
	out := make([]*model.IssueVersion, len(starts))
	for i := len(starts) - 1; i >= 0; i-- {
		f := facets{model.IssueStatus: fmt.Sprintf("S%d", i)}
		var (
			v   *model.IssueVersion
			err error
		)
		if i == len(starts)-1 {
			v, err = model.NewLatest[model.IssueFacet, model.IssueMeasure](f, author, starts[i], "")
		} else {
			v, err = out[i+1].Predecessor(f, author, starts[i], "")
		}
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

func saved(vs []*model.IssueVersion) []*model.IssueVersion {
	for _, v := range vs {
		v.State = model.StateSaved
	}
	return vs
}

func TestRebaseVersions(t *testing.T) {
	d := func(n int) time.Time { return t0.Add(time.Duration(n) * day) }

	t.Run("appends newer versions and extends the last persisted", func(t *testing.T) {
		persisted := saved(chain(t, moist, d(0), d(2)))
		local := chain(t, billy, d(1), d(3), d(5))

		merged, err := RebaseVersions(local, persisted, "extended")
		require.NoError(t, err)
		require.Len(t, merged, 4)
		assert.Same(t, persisted[0], merged[0])
		assert.Equal(t, d(2), merged[1].From)
		assert.Equal(t, d(3), merged[1].To)
		assert.Equal(t, model.StateDirty, merged[1].State)
		assert.Equal(t, "extended", merged[1].Annotation)
		assert.Equal(t, model.Future, persisted[1].To, "the persisted version itself is not modified")
		assert.Same(t, local[1], merged[2])
		assert.Same(t, local[2], merged[3])
	})

	t.Run("drops a local version starting with the last persisted", func(t *testing.T) {
		persisted := saved(chain(t, moist, d(0), d(2)))
		local := chain(t, billy, d(2), d(4))

		merged, err := RebaseVersions(local, persisted, "")
		require.NoError(t, err)
		require.Len(t, merged, 3)
		assert.Equal(t, d(4), merged[1].To)
		assert.Same(t, local[1], merged[2])
	})

	t.Run("nothing new keeps the persisted history", func(t *testing.T) {
		persisted := saved(chain(t, moist, d(0), d(2)))
		local := chain(t, billy, d(1))

		merged, err := RebaseVersions(local, persisted, "")
		require.NoError(t, err)
		assert.Equal(t, persisted, merged)
		assert.Equal(t, model.StateSaved, merged[1].State)
	})

	t.Run("extending a new version keeps it new", func(t *testing.T) {
		persisted := chain(t, moist, d(0))
		local := chain(t, billy, d(1))

		merged, err := RebaseVersions(local, persisted, "")
		require.NoError(t, err)
		require.Len(t, merged, 2)
		assert.Equal(t, model.StateNew, merged[0].State)
	})

	t.Run("empty persisted history", func(t *testing.T) {
		local := chain(t, billy, d(1))
		merged, err := RebaseVersions(local, nil, "")
		require.NoError(t, err)
		assert.Equal(t, local, merged)
	})
}

func TestRebaseMismatchedEntity(t *testing.T) {
	local := model.NewEntity[model.IssueFacet, model.IssueMeasure](model.KindIssue, 1, 0, billy, t0)
	other := model.NewEntity[model.IssueFacet, model.IssueMeasure](model.KindIssue, 2, 0, billy, t0)
	assert.ErrorIs(t, Rebase(local, other, ""), ErrMismatchedEntity)
}

// forward is a sequence of issue states with the activity that led to each.
type forward struct {
	states     []facets
	activities []*model.IssueActivity
}

// diffActivity derives the activity turning one state into the next.
func diffActivity(by string, at time.Time, before, after facets) *model.IssueActivity {
	c := changes{}
	keys := slices.Collect(maps.Keys(before))
	keys = append(keys, slices.Collect(maps.Keys(after))...)
	for _, f := range keys {
		if f == model.IssueFlags {
			continue
		}
		if before[f] != after[f] {
			c[f] = model.Change{From: before[f], To: after[f]}
		}
	}
	b, _ := model.ParseFlags(before[model.IssueFlags], false)
	a, _ := model.ParseFlags(after[model.IssueFlags], false)
	var removed, added []string
	for _, fl := range b {
		if !slices.Contains(a, fl) {
			removed = append(removed, fl.String())
		}
	}
	for _, fl := range a {
		if !slices.Contains(b, fl) {
			added = append(added, fl.String())
		}
	}
	if len(removed) > 0 || len(added) > 0 {
		c[model.IssueFlags] = model.Change{From: model.JoinCSV(removed), To: model.JoinCSV(added)}
	}
	return act(by, at, c)
}

func newForward(initial facets) *forward {
	return &forward{states: []facets{initial}, activities: []*model.IssueActivity{nil}}
}

func (fw *forward) then(by string, at time.Time, update facets) *forward {
	prev := fw.states[len(fw.states)-1]
	next := maps.Clone(prev)
	for f, v := range update {
		if v == "" {
			delete(next, f)
			continue
		}
		next[f] = v
	}
	fw.states = append(fw.states, next)
	fw.activities = append(fw.activities, diffActivity(by, at, prev, next))
	return fw
}

// window returns the rows seen by a run that starts after activity lo and
// ends with activity hi.
func (fw *forward) window(lo, hi int) []Row[model.IssueFacet] {
	var acts []*model.IssueActivity
	for k := hi; k > lo; k-- {
		a := *fw.activities[k]
		acts = append(acts, &a)
	}
	return issueRows(1, fw.states[hi], acts...)
}

func TestIncrementalRebuildMatchesFullRebuild(t *testing.T) {
	fw := newForward(facets{model.IssueStatus: "UNCONFIRMED", model.IssueProduct: "Core", model.IssueComponent: "DOM"}).
		then(penny, t0.Add(day), facets{model.IssueStatus: "NEW"}).
		then(moist, t0.Add(3*day), facets{model.IssueStatus: "ASSIGNED", model.IssueAssignedTo: moist}).
		then(billy, t0.Add(4*day), facets{model.IssueFlags: "review?"}).
		then(moist, t0.Add(8*day), facets{model.IssueFlags: "review+", model.IssueKeywords: "regression"}).
		then(moist, t0.Add(9*day), facets{model.IssueStatus: "RESOLVED", model.IssueResolution: "FIXED"}).
		then(penny, t0.Add(12*day), facets{model.IssueStatus: "REOPENED", model.IssueResolution: ""})
	last := len(fw.states) - 1

	full := rebuildOne(t, testOptions(nil), nil, fw.window(0, last))
	require.Equal(t, last+1, full.Len())
	for i, v := range full.Versions() {
		assert.Equal(t, fw.states[i], sourced(v), "version %d", i)
	}

	for _, bounds := range [][]int{
		{last},
		{2, 4, last},
		{1, 2, 3, 4, 5, last},
		{5, last},
		{1, last},
	} {
		t.Run(fmt.Sprint(bounds), func(t *testing.T) {
			lookup := newMemoryLookup()
			lo := 0
			var issue *model.Issue
			for _, hi := range bounds {
				issue = rebuildOne(t, testOptions(nil), lookup, fw.window(lo, hi))
				require.NoError(t, issue.Validate())
				lookup.save(issue)
				lo = hi
			}
			assert.True(t, full.Equal(issue), "incremental %v\nfull %v", issue.Versions(), full.Versions())
		})
	}
}

func TestRebuildIsIdempotentAgainstPersistedHistory(t *testing.T) {
	fw := newForward(facets{model.IssueStatus: "NEW"}).
		then(moist, t0.Add(day), facets{model.IssueStatus: "ASSIGNED"}).
		then(moist, t0.Add(2*day), facets{model.IssueStatus: "RESOLVED", model.IssueResolution: "FIXED"})

	lookup := newMemoryLookup()
	first := rebuildOne(t, testOptions(nil), lookup, fw.window(0, 2))
	lookup.save(first)

	again := rebuildOne(t, testOptions(nil), lookup, fw.window(0, 2))
	assert.True(t, first.Equal(again))
	assert.Empty(t, again.Unsaved())
	assert.False(t, again.IsNew())
}

func TestIncrementalRebuildWritesOnlyChangedVersions(t *testing.T) {
	fw := newForward(facets{model.IssueStatus: "NEW"}).
		then(moist, t0.Add(day), facets{model.IssueStatus: "ASSIGNED"}).
		then(moist, t0.Add(2*day), facets{model.IssueStatus: "RESOLVED", model.IssueResolution: "FIXED"})

	lookup := newMemoryLookup()
	lookup.save(rebuildOne(t, testOptions(nil), lookup, fw.window(0, 1)))

	issue := rebuildOne(t, testOptions(nil), lookup, fw.window(1, 2))
	require.Equal(t, 3, issue.Len())
	unsaved := issue.Unsaved()
	require.Len(t, unsaved, 2)
	assert.Equal(t, model.StateDirty, unsaved[0].State)
	assert.Equal(t, t0.Add(2*day), unsaved[0].To)
	assert.Contains(t, unsaved[0].Annotation, "(extended)")
	assert.Equal(t, model.StateNew, unsaved[1].State)
}

func TestRebuildWithLateSimultaneousActivity(t *testing.T) {
	at := t0.Add(day)
	assigned := act(moist, at, changes{model.IssueStatus: {From: "NEW", To: "ASSIGNED"}})

	lookup := newMemoryLookup()
	first := rebuildOne(t, testOptions(nil), lookup, issueRows(1, facets{model.IssueStatus: "ASSIGNED"}, assigned))
	require.Equal(t, 2, first.Len())
	require.Equal(t, at, first.Latest().From)
	lookup.save(first)

	// A second activity with the same timestamp shows up after the first run.
	late := act(penny, at, changes{model.IssuePriority: {From: "", To: "P1"}})
	current := facets{model.IssueStatus: "ASSIGNED", model.IssuePriority: "P1"}
	again := *assigned
	issue := rebuildOne(t, testOptions(nil), lookup, issueRows(1, current, late, &again))
	require.NoError(t, issue.Validate())

	versions := issue.Versions()
	require.Len(t, versions, 3)
	assert.Equal(t, facets{model.IssueStatus: "NEW"}, sourced(versions[0]))

	kept := versions[1]
	assert.Equal(t, at, kept.From)
	assert.Equal(t, at.Add(DefaultSafetyDelta), kept.To)
	assert.Equal(t, facets{model.IssueStatus: "ASSIGNED"}, sourced(kept))
	assert.Equal(t, model.StateDirty, kept.State)
	assert.Contains(t, kept.Annotation, "(extended)")

	latest := versions[2]
	assert.Equal(t, at.Add(DefaultSafetyDelta), latest.From)
	assert.Equal(t, current, sourced(latest))
	assert.Equal(t, model.StateNew, latest.State)
	assert.Len(t, issue.Unsaved(), 2)
}
