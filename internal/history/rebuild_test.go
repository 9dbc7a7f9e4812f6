package history

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

func TestRebuildSimultaneousFlagsAndStatus(t *testing.T) {
	t1 := t0.Add(day)
	stats := &Stats{}
	a1 := act(billy, t1, changes{model.IssueStatus: {From: "UNCONFIRMED", To: "NEW"}})
	a2 := act(moist, t1, changes{model.IssueFlags: {To: "death-ray?"}})
	a3 := act(nobody, t1, changes{model.IssueFlags: {To: "ice-beam?"}})

	issue := rebuildOne(t, testOptions(stats), nil, issueRows(4711, facets{
		model.IssueStatus:  "NEW",
		model.IssueFlags:   "ice-beam?, death-ray?",
		model.IssueProduct: "Evil League of Evil",
	}, a1, a2, a3))

	versions := issue.Versions()
	require.Len(t, versions, 4)

	wantFrom := []time.Time{t0, t1, t1.Add(10 * time.Millisecond), t1.Add(20 * time.Millisecond)}
	wantAuthor := []string{billy, nobody, moist, billy}
	for i, v := range versions {
		assert.Equal(t, wantFrom[i], v.From, "version %d from", i)
		assert.Equal(t, wantAuthor[i], v.Author, "version %d author", i)
		assert.Equal(t, int64(i+1), v.Measurements[model.IssueNumber])
	}
	assert.Equal(t, model.Future, versions[3].To)

	assert.Equal(t, facets{model.IssueStatus: "UNCONFIRMED", model.IssueProduct: "Evil League of Evil"}, sourced(versions[0]))
	assert.Equal(t, "death-ray?,ice-beam?", versions[3].Facets[model.IssueFlags])
	assert.Equal(t, "ice-beam?", versions[1].Facets[model.IssueFlags])

	assert.Contains(t, versions[0].Annotation, "(initial)")
	assert.Contains(t, versions[1].Annotation, "(1/3 concurrent)")
	assert.Contains(t, versions[3].Annotation, "(3/3 concurrent)")

	byAuthor := map[string]*model.IssueActivity{billy: a1, moist: a2, nobody: a3}
	for i := 1; i < len(versions); i++ {
		assert.Equal(t, sourced(versions[i]), replay(t, sourced(versions[i-1]), byAuthor[versions[i].Author]),
			"replaying into version %d", i)
	}

	snap := stats.Snapshot()
	assert.Equal(t, map[int]int64{3: 1}, snap.Simultaneous)
	assert.Empty(t, snap.Fallback)
	assert.Zero(t, snap.Inconsistencies)
	assert.Equal(t, []TallyRow{{New: true, Activities: "1-5", Count: 1}}, snap.Entities)
}

func TestRebuildReordersSimultaneousActivities(t *testing.T) {
	t1 := t0.Add(day)
	stats := &Stats{}
	issue := rebuildOne(t, testOptions(stats), nil, issueRows(1, facets{model.IssueStatus: "ASSIGNED"},
		act(penny, t1, changes{model.IssueStatus: {From: "UNCONFIRMED", To: "NEW"}}),
		act(moist, t1, changes{model.IssueStatus: {From: "NEW", To: "ASSIGNED"}}),
	))

	versions := issue.Versions()
	require.Len(t, versions, 3)
	assert.Equal(t, "UNCONFIRMED", versions[0].Facets[model.IssueStatus])
	assert.Equal(t, "NEW", versions[1].Facets[model.IssueStatus])
	assert.Equal(t, penny, versions[1].Author)
	assert.Equal(t, t1, versions[1].From)
	assert.Equal(t, "ASSIGNED", versions[2].Facets[model.IssueStatus])
	assert.Equal(t, moist, versions[2].Author)
	assert.Equal(t, t1.Add(10*time.Millisecond), versions[2].From)

	snap := stats.Snapshot()
	assert.Empty(t, snap.Fallback)
	assert.Zero(t, snap.Inconsistencies)
}

func TestRebuildFallsBackToAuthorOrder(t *testing.T) {
	t1 := t0.Add(day)
	stats := &Stats{}
	issue := rebuildOne(t, testOptions(stats), nil, issueRows(1, facets{model.IssueStatus: "RESOLVED"},
		act(moist, t1, changes{model.IssueStatus: {From: "NEW", To: "ASSIGNED"}}),
		act(nobody, t1, changes{model.IssueStatus: {From: "UNCONFIRMED", To: "NEW"}}),
	))

	versions := issue.Versions()
	require.Len(t, versions, 3)
	assert.Equal(t, nobody, versions[2].Author)
	assert.Equal(t, "RESOLVED", versions[2].Facets[model.IssueStatus])
	assert.Equal(t, moist, versions[1].Author)
	assert.Equal(t, "UNCONFIRMED", versions[1].Facets[model.IssueStatus])
	assert.Equal(t, "NEW", versions[0].Facets[model.IssueStatus])

	snap := stats.Snapshot()
	assert.Equal(t, map[int]int64{2: 1}, snap.Fallback)
	assert.Equal(t, int64(2), snap.Inconsistencies)
}

func TestRebuildRejectsTooManySimultaneous(t *testing.T) {
	t1 := t0.Add(day)
	var acts []*model.IssueActivity
	for _, who := range []string{"a", "b", "c", "d", "e"} {
		acts = append(acts, act(who, t1, changes{model.IssueKeywords: {To: who}}))
	}
	rows := issueRows(1, facets{model.IssueKeywords: "a,b,c,d,e"}, acts...)
	rows = append(rows, issueRows(2, facets{model.IssueStatus: "NEW"})...)

	r := NewRebuilder[model.IssueFacet, model.IssueMeasure](model.IssueSchema, NewSliceCursor(rows...), nil, IssueMeasurer{}, testOptions(nil))
	issues, errs := rebuildAll(t, r)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrTooManySimultaneous)
	var se *StructuralError
	require.ErrorAs(t, errs[0], &se)
	assert.Equal(t, int64(1), se.ID)
	assert.True(t, IsStructural(errs[0]))

	require.Len(t, issues, 1)
	assert.Equal(t, int64(2), issues[0].ID)
}

func TestRebuildRequiresIdentity(t *testing.T) {
	noCreator := issueRows(1, facets{model.IssueStatus: "NEW"})
	noCreator[0].Creator = ""
	noID := issueRows(0, facets{model.IssueStatus: "NEW"})

	r := NewRebuilder[model.IssueFacet, model.IssueMeasure](model.IssueSchema,
		NewSliceCursor(append(noCreator, noID...)...), nil, IssueMeasurer{}, testOptions(nil))
	issues, errs := rebuildAll(t, r)

	assert.Empty(t, issues)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrMissingCreator)
	assert.ErrorIs(t, errs[1], ErrMissingID)
}

func TestRebuildWithoutActivities(t *testing.T) {
	stats := &Stats{}
	issue := rebuildOne(t, testOptions(stats), nil, issueRows(7, facets{model.IssueStatus: "NEW"}))

	require.Equal(t, 1, issue.Len())
	v := issue.First()
	assert.Equal(t, t0, v.From)
	assert.Equal(t, model.Future, v.To)
	assert.Equal(t, billy, v.Author)
	assert.Contains(t, v.Annotation, "0 new activities")
	assert.Equal(t, model.MajorStatusOpen, v.Facets[model.IssueMajorStatus])
	assert.Equal(t, []TallyRow{{New: true, Activities: "0", Count: 1}}, stats.Snapshot().Entities)
}

func TestRebuildCreationVersionOffsets(t *testing.T) {
	t.Run("activity at creation", func(t *testing.T) {
		issue := rebuildOne(t, testOptions(nil), nil, issueRows(1, facets{model.IssueStatus: "NEW"},
			act(billy, t0, changes{model.IssueStatus: {From: "UNCONFIRMED", To: "NEW"}}),
		))
		require.Equal(t, 2, issue.Len())
		assert.Equal(t, t0.Add(-10*time.Millisecond), issue.First().From)
		assert.Equal(t, t0, issue.First().To)
	})

	t.Run("activity before creation", func(t *testing.T) {
		early := t0.Add(-day)
		issue := rebuildOne(t, testOptions(nil), nil, issueRows(1, facets{model.IssueStatus: "NEW"},
			act(billy, early, changes{model.IssueStatus: {From: "UNCONFIRMED", To: "NEW"}}),
		))
		require.Equal(t, 2, issue.Len())
		assert.Equal(t, early.Add(-10*time.Millisecond), issue.First().From)
		assert.NoError(t, issue.Validate())
	})
}

func TestRebuildRejectsUnorderedActivities(t *testing.T) {
	rows := issueRows(1, facets{model.IssueStatus: "ASSIGNED"},
		act(billy, t0.Add(day), changes{model.IssueStatus: {From: "UNCONFIRMED", To: "NEW"}}),
		act(billy, t0.Add(2*day), changes{model.IssueStatus: {From: "NEW", To: "ASSIGNED"}}),
	)
	r := NewRebuilder[model.IssueFacet, model.IssueMeasure](model.IssueSchema, NewSliceCursor(rows...), nil, IssueMeasurer{}, testOptions(nil))
	_, errs := rebuildAll(t, r)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrUnorderedActivities)
}

func TestRebuildRepairsMismatches(t *testing.T) {
	stats := &Stats{}
	issue := rebuildOne(t, testOptions(stats), nil, issueRows(1, facets{
		model.IssueStatus: "ASSIGNED",
		model.IssueFlags:  "review?",
	},
		act(moist, t0.Add(2*day), changes{model.IssueFlags: {To: "?,review?"}}),
		act(penny, t0.Add(day), changes{model.IssueStatus: {From: "UNCONFIRMED", To: "NEW"}}),
	))

	versions := issue.Versions()
	require.Len(t, versions, 3)
	assert.Equal(t, "", versions[1].Facets[model.IssueFlags])
	assert.Equal(t, "ASSIGNED", versions[1].Facets[model.IssueStatus], "a value mismatch keeps the found value in the newer version")
	assert.Equal(t, "UNCONFIRMED", versions[0].Facets[model.IssueStatus])
	assert.Equal(t, int64(2), stats.Snapshot().Inconsistencies)
}

func TestRebuildSurfacesLookupFailures(t *testing.T) {
	boom := errors.New("disk on fire")
	lookup := newMemoryLookup()
	lookup.err = boom

	r := NewRebuilder[model.IssueFacet, model.IssueMeasure](model.IssueSchema,
		NewSliceCursor(issueRows(1, facets{model.IssueStatus: "NEW"})...), lookup, IssueMeasurer{}, testOptions(nil))
	_, errs := rebuildAll(t, r)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
	var le *LookupError
	assert.ErrorAs(t, errs[0], &le)
	assert.False(t, IsStructural(errs[0]))
}

func TestRebuildAttachmentRequests(t *testing.T) {
	rows := []Row[model.AttachmentFacet]{{
		EntityID:  12,
		ParentID:  4711,
		Creator:   billy,
		CreatedAt: t0,
		Current: map[model.AttachmentFacet]string{
			model.AttachmentMimeType: "text/plain",
			model.AttachmentIsPatch:  "1",
			model.AttachmentRequests: "review+(moist@example.com)",
		},
		Activity: &model.AttachmentActivity{
			ModifiedBy: moist,
			ModifiedAt: t0.Add(day),
			Changes: map[model.AttachmentFacet]model.Change{
				model.AttachmentRequests: {From: "review?(moist@example.com)", To: "review+(moist@example.com)"},
			},
		},
	}}

	r := NewRebuilder[model.AttachmentFacet, model.AttachmentMeasure](model.AttachmentSchema,
		NewSliceCursor(rows...), nil, AttachmentMeasurer{}, testOptions(nil))
	att, err := r.Next(t.Context())
	require.NoError(t, err)

	require.Equal(t, 2, att.Len())
	assert.Equal(t, int64(4711), att.ParentID)
	assert.Equal(t, "review?(moist@example.com)", att.First().Facets[model.AttachmentRequests])
	assert.Equal(t, "review+(moist@example.com)", att.Latest().Facets[model.AttachmentRequests])
	assert.Equal(t, "requests", att.Latest().Facets[model.AttachmentModifiedFields])
	assert.Equal(t, "-requests=review?(moist@example.com),+requests=review+(moist@example.com)",
		att.Latest().Facets[model.AttachmentChanges])
	assert.Equal(t, int64(2), att.Latest().Measurements[model.AttachmentNumber])
}
