package history

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

var (
	t0  = time.Date(2010, time.August, 1, 22, 22, 22, 0, time.UTC)
	day = 24 * time.Hour
	now = t0.AddDate(1, 0, 0)
)

const (
	billy  = "billy@example.com"
	moist  = "moist@example.com"
	penny  = "penny@example.com"
	nobody = DefaultAutomationAccount
)

type facets = map[model.IssueFacet]string

type changes = map[model.IssueFacet]model.Change

func act(by string, at time.Time, c changes) *model.IssueActivity {
	return &model.IssueActivity{ModifiedBy: by, ModifiedAt: at, Changes: c}
}

// issueRows builds the rows of one issue; activities must be given most recent first.
func issueRows(id int64, current facets, activities ...*model.IssueActivity) []Row[model.IssueFacet] {
	base := Row[model.IssueFacet]{EntityID: id, Creator: billy, CreatedAt: t0, Current: current}
	if len(activities) == 0 {
		return []Row[model.IssueFacet]{base}
	}
	rows := make([]Row[model.IssueFacet], 0, len(activities))
	for _, a := range activities {
		r := base
		a.EntityID = id
		r.Activity = a
		rows = append(rows, r)
	}
	return rows
}

func testOptions(reporter Reporter) Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return now }
	opts.Reporter = reporter
	return opts
}

// memoryLookup serves persisted issues from a map, as copies.
type memoryLookup struct {
	issues map[int64]*model.Issue
	err    error
}

func newMemoryLookup() *memoryLookup {
	return &memoryLookup{issues: make(map[int64]*model.Issue)}
}

func (m *memoryLookup) Find(_ context.Context, id int64) (*model.Issue, error) {
	if m.err != nil {
		return nil, m.err
	}
	e, ok := m.issues[id]
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

func (m *memoryLookup) save(e *model.Issue) {
	saved := e.Clone()
	saved.MarkSaved()
	m.issues[e.ID] = saved
}

// rebuildAll drains a rebuilder, collecting entities and errors.
func rebuildAll(t *testing.T, r *Rebuilder[model.IssueFacet, model.IssueMeasure]) ([]*model.Issue, []error) {
	t.Helper()
	var (
		issues []*model.Issue
		errs   []error
	)
	for {
		e, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return issues, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		issues = append(issues, e)
	}
}

// rebuildOne rebuilds a single issue and fails the test on error.
func rebuildOne(t *testing.T, opts Options, lookup Lookup[model.IssueFacet, model.IssueMeasure], rows []Row[model.IssueFacet]) *model.Issue {
	t.Helper()
	r := NewRebuilder[model.IssueFacet, model.IssueMeasure](model.IssueSchema, NewSliceCursor(rows...), lookup, IssueMeasurer{}, opts)
	issues, errs := rebuildAll(t, r)
	require.Empty(t, errs)
	require.Len(t, issues, 1)
	return issues[0]
}

// sourced returns the sourced facets of a version, leaving out empty values.
func sourced(v *model.IssueVersion) facets {
	out := facets{}
	for _, f := range model.IssueSchema.Sourced() {
		if val := v.Facets[f]; val != "" {
			out[f] = val
		}
	}
	return out
}

// replay applies an activity forward to a facet map.
func replay(t *testing.T, before facets, a *model.IssueActivity) facets {
	t.Helper()
	after := facets{}
	for f, v := range before {
		after[f] = v
	}
	for f, c := range a.Changes {
		if f != model.IssueFlags {
			after[f] = c.To
			continue
		}
		current, errs := model.ParseFlags(after[f], false)
		require.Empty(t, errs)
		removed, _ := model.ParseFlags(c.From, false)
		added, _ := model.ParseFlags(c.To, false)
		byName := map[string]model.Flag{}
		for _, fl := range current {
			byName[fl.Name] = fl
		}
		for _, fl := range removed {
			delete(byName, fl.Name)
		}
		for _, fl := range added {
			byName[fl.Name] = fl
		}
		var flags []model.Flag
		for _, fl := range byName {
			flags = append(flags, fl)
		}
		after[f] = model.FormatFlags(flags, false)
	}
	for f, v := range after {
		if v == "" {
			delete(after, f)
		}
	}
	return after
}
