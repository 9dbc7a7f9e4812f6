package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

var t0 = time.Date(2010, 8, 1, 22, 22, 22, 0, time.UTC)

func newIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

// issue builds an issue with one version per status, a day apart.
func issue(t *testing.T, id int64, author string, statuses ...string) *model.Issue {
	t.Helper()
	e := model.NewEntity[model.IssueFacet, model.IssueMeasure](model.KindIssue, id, 0, author, t0)
	for i := len(statuses) - 1; i >= 0; i-- {
		facets := map[model.IssueFacet]string{model.IssueStatus: statuses[i], model.IssueProduct: "Core"}
		from := t0.Add(time.Duration(i) * 24 * time.Hour)
		var (
			v   *model.IssueVersion
			err error
		)
		if next := e.First(); next == nil {
			v, err = model.NewLatest[model.IssueFacet, model.IssueMeasure](facets, author, from, "")
		} else {
			v, err = next.Predecessor(facets, author, from, "")
		}
		require.NoError(t, err)
		require.NoError(t, e.Prepend(v))
	}
	return e
}

func TestSinkIndexesVersions(t *testing.T) {
	idx := newIndex(t)
	sink := NewSink(idx, model.IssueSchema)
	ctx := context.Background()

	require.NoError(t, sink.Save(ctx, issue(t, 1, "billy@example.com", "NEW", "RESOLVED")))
	require.NoError(t, sink.Save(ctx, issue(t, 2, "moist@example.com", "NEW")))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	hits, err := idx.Search(ctx, "facets.status:RESOLVED", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, model.KindIssue, hits[0].Kind)
	assert.Equal(t, int64(1), hits[0].EntityID)
	assert.Equal(t, t0.Add(24*time.Hour), hits[0].From)
	assert.Equal(t, "billy@example.com", hits[0].Author)

	hits, err = idx.Search(ctx, `author:"moist@example.com"`, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].EntityID)
}

func TestSinkReplacesNewHistory(t *testing.T) {
	idx := newIndex(t)
	sink := NewSink(idx, model.IssueSchema)
	ctx := context.Background()

	require.NoError(t, sink.Save(ctx, issue(t, 1, "billy@example.com", "NEW", "ASSIGNED", "RESOLVED")))
	require.NoError(t, sink.Save(ctx, issue(t, 1, "billy@example.com", "NEW")))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestSinkIndexesSavedVersions(t *testing.T) {
	idx := newIndex(t)
	sink := NewSink(idx, model.IssueSchema)

	e := issue(t, 1, "billy@example.com", "NEW", "RESOLVED")
	e.MarkSaved()
	require.NoError(t, sink.Save(context.Background(), e))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestSinkUpdatesExtendedHistory(t *testing.T) {
	idx := newIndex(t)
	sink := NewSink(idx, model.IssueSchema)
	ctx := context.Background()

	e := issue(t, 1, "billy@example.com", "NEW", "RESOLVED")
	require.NoError(t, sink.Save(ctx, e))
	e.MarkSaved()
	require.NoError(t, sink.Save(ctx, e))

	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	longer := issue(t, 1, "billy@example.com", "NEW", "RESOLVED", "REOPENED")
	require.NoError(t, sink.Save(ctx, longer))

	n, err = idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	hits, err := idx.Search(ctx, "facets.status:RESOLVED", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, t0.Add(24*time.Hour), hits[0].From)
}
