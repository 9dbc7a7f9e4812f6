package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// Defaults for Options.
const (
	DefaultMaxSimultaneous   = 4
	DefaultSafetyDelta       = 10 * time.Millisecond
	DefaultAutomationAccount = "nobody@mozilla.org"
)

// Options configures a Rebuilder.
type Options struct {
	// MaxSimultaneous is the largest number of activities that may share a
	// timestamp. Larger sets indicate a corrupt log.
	MaxSimultaneous int

	// SafetyDelta spreads simultaneous versions apart and separates the
	// creation version from a first activity at the creation instant.
	SafetyDelta time.Duration

	// AutomationAccount is ordered first when simultaneous activities have
	// no consistent order.
	AutomationAccount string

	// ImportTime is written into version annotations. Defaults to Now().
	ImportTime time.Time

	// Now decides which versions are still open. Defaults to time.Now.
	Now func() time.Time

	Logger   zerolog.Logger
	Reporter Reporter
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxSimultaneous:   DefaultMaxSimultaneous,
		SafetyDelta:       DefaultSafetyDelta,
		AutomationAccount: DefaultAutomationAccount,
		Logger:            zerolog.Nop(),
	}
}

// Measurer fills in the computed facets and measurements of a rebuilt entity.
type Measurer[F model.Facet, M model.Field] interface {
	Measure(e *model.Entity[F, M], now time.Time) error
}

// Rebuilder turns rows of current facets and activities into entities with a
// complete version history, one entity per call to Next.
type Rebuilder[F model.Facet, M model.Field] struct {
	schema   *model.Schema[F, M]
	cursor   Cursor[F]
	lookup   Lookup[F, M]
	measurer Measurer[F, M]
	opts     Options
	reporter Reporter

	pending *Row[F]
}

// NewRebuilder creates a Rebuilder reading from cursor. lookup and measurer
// may be nil: without a lookup every entity is rebuilt from scratch, without
// a measurer computed fields stay empty.
func NewRebuilder[F model.Facet, M model.Field](
	schema *model.Schema[F, M],
	cursor Cursor[F],
	lookup Lookup[F, M],
	measurer Measurer[F, M],
	opts Options,
) *Rebuilder[F, M] {
	if opts.MaxSimultaneous <= 0 {
		opts.MaxSimultaneous = DefaultMaxSimultaneous
	}
	if opts.SafetyDelta <= 0 {
		opts.SafetyDelta = DefaultSafetyDelta
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ImportTime.IsZero() {
		opts.ImportTime = opts.Now()
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Rebuilder[F, M]{
		schema:   schema,
		cursor:   cursor,
		lookup:   lookup,
		measurer: measurer,
		opts:     opts,
		reporter: reporter,
	}
}

// Next rebuilds the next entity. It returns io.EOF once the cursor is
// exhausted. After a *StructuralError the rows of the failed entity have been
// consumed and Next may be called again.
func (r *Rebuilder[F, M]) Next(ctx context.Context) (*model.Entity[F, M], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	head, ok := r.peek()
	if !ok {
		if err := r.cursor.Err(); err != nil {
			return nil, fmt.Errorf("reading %s rows: %w", r.schema.Kind, err)
		}
		return nil, io.EOF
	}
	rows := r.take(head.EntityID)
	if err := r.cursor.Err(); err != nil {
		return nil, fmt.Errorf("reading %s rows: %w", r.schema.Kind, err)
	}
	return r.rebuild(ctx, rows)
}

func (r *Rebuilder[F, M]) peek() (Row[F], bool) {
	if r.pending != nil {
		return *r.pending, true
	}
	if !r.cursor.Next() {
		return Row[F]{}, false
	}
	row := r.cursor.Row()
	r.pending = &row
	return row, true
}

// take consumes all rows of the given entity.
func (r *Rebuilder[F, M]) take(id int64) []Row[F] {
	var rows []Row[F]
	for {
		row, ok := r.peek()
		if !ok || row.EntityID != id {
			return rows
		}
		rows = append(rows, row)
		r.pending = nil
	}
}

func (r *Rebuilder[F, M]) rebuild(ctx context.Context, rows []Row[F]) (*model.Entity[F, M], error) {
	head := rows[0]
	if head.EntityID == 0 {
		return nil, r.structural(0, ErrMissingID)
	}
	if head.Creator == "" {
		return nil, r.structural(head.EntityID, ErrMissingCreator)
	}

	e := model.NewEntity[F, M](r.schema.Kind, head.EntityID, head.ParentID, head.Creator, head.CreatedAt.UTC())
	st, seedIssues := newState(r.schema, head.Current)
	for _, m := range seedIssues {
		r.warn(e.ID, e.CreatedAt, m)
	}

	activities, err := collectActivities(rows)
	if err != nil {
		return nil, r.structural(e.ID, err)
	}

	if len(activities) == 0 {
		v, err := model.NewLatest[F, M](st.facets, e.Reporter, e.CreatedAt, r.annotate("0 new activities"))
		if err != nil {
			return nil, r.structural(e.ID, err)
		}
		if err := e.Prepend(v); err != nil {
			return nil, r.structural(e.ID, err)
		}
	}
	for i := 0; i < len(activities); {
		j := i + 1
		for j < len(activities) && activities[j].ModifiedAt.Equal(activities[i].ModifiedAt) {
			j++
		}
		if err := r.undo(e, st, activities[i:j]); err != nil {
			return nil, r.structural(e.ID, err)
		}
		i = j
	}

	persisted, err := r.find(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if persisted != nil {
		if err := Rebase(e, persisted, r.annotate("extended")); err != nil {
			return nil, r.structural(e.ID, err)
		}
	} else if len(activities) > 0 {
		if err := r.prependCreation(e, st); err != nil {
			return nil, r.structural(e.ID, err)
		}
	}

	if r.measurer != nil {
		if err := r.measurer.Measure(e, r.opts.Now()); err != nil {
			return nil, r.structural(e.ID, err)
		}
	}
	if err := e.Validate(); err != nil {
		return nil, r.structural(e.ID, err)
	}

	r.reporter.Rebuilt(e.Kind, persisted == nil, len(activities))
	return e, nil
}

func collectActivities[F model.Facet](rows []Row[F]) ([]*model.Activity[F], error) {
	var out []*model.Activity[F]
	for _, row := range rows {
		a := row.Activity
		if a == nil {
			continue
		}
		if n := len(out); n > 0 && a.ModifiedAt.After(out[n-1].ModifiedAt) {
			return nil, fmt.Errorf("%w: %s after %s", ErrUnorderedActivities,
				a.ModifiedAt.Format(time.RFC3339Nano), out[n-1].ModifiedAt.Format(time.RFC3339Nano))
		}
		out = append(out, a)
	}
	return out, nil
}

// undo creates one version per activity in a set of simultaneous activities
// and rewinds the working state past all of them.
func (r *Rebuilder[F, M]) undo(e *model.Entity[F, M], st *state[F, M], set []*model.Activity[F]) error {
	n := len(set)
	if n > r.opts.MaxSimultaneous {
		return fmt.Errorf("%w: %d at %s, at most %d allowed", ErrTooManySimultaneous,
			n, set[0].ModifiedAt.Format(time.RFC3339Nano), r.opts.MaxSimultaneous)
	}

	order := set
	if n > 1 {
		r.reporter.Simultaneous(e.Kind, n)
		var ok bool
		order, ok = orderConsistently(set, st)
		if !ok {
			r.reporter.Fallback(e.Kind, n)
			r.opts.Logger.Warn().
				Str("kind", string(e.Kind)).
				Int64("id", e.ID).
				Int("activities", n).
				Time("at", set[0].ModifiedAt).
				Msg("no consistent order for simultaneous activities, ordering by author")
			order = orderByAuthor(set, r.opts.AutomationAccount)
		}
	}

	at := set[0].ModifiedAt.UTC()
	for idx, a := range order {
		i := n - idx
		from := at.Add(time.Duration(i-1) * r.opts.SafetyDelta)

		var detail string
		if n > 1 {
			detail = fmt.Sprintf("%d/%d concurrent", i, n)
		}

		var (
			v   *model.Version[F, M]
			err error
		)
		if next := e.First(); next == nil {
			if detail == "" {
				detail = "most recent version"
			}
			v, err = model.NewLatest[F, M](st.facets, a.ModifiedBy, from, r.annotate(detail))
		} else {
			v, err = next.Predecessor(st.facets, a.ModifiedBy, from, r.annotate(detail))
		}
		if err != nil {
			return err
		}
		if err := e.Prepend(v); err != nil {
			return err
		}

		for _, m := range st.invert(a) {
			r.warn(e.ID, a.ModifiedAt, m)
		}
	}
	return nil
}

// prependCreation adds the version the entity had when it was created.
func (r *Rebuilder[F, M]) prependCreation(e *model.Entity[F, M], st *state[F, M]) error {
	first := e.First()
	from := e.CreatedAt
	if !from.Before(first.From) {
		if from.After(first.From) {
			r.opts.Logger.Warn().
				Str("kind", string(e.Kind)).
				Int64("id", e.ID).
				Time("created", e.CreatedAt).
				Time("first_activity", first.From).
				Msg("creation time after first activity")
		}
		from = first.From.Add(-r.opts.SafetyDelta)
	}
	v, err := first.Predecessor(st.facets, e.Reporter, from, r.annotate("initial"))
	if err != nil {
		return err
	}
	return e.Prepend(v)
}

func (r *Rebuilder[F, M]) find(ctx context.Context, id int64) (*model.Entity[F, M], error) {
	if r.lookup == nil {
		return nil, nil
	}
	persisted, err := r.lookup.Find(ctx, id)
	if err != nil {
		return nil, &LookupError{Kind: r.schema.Kind, ID: id, Err: err}
	}
	if persisted == nil || persisted.Len() == 0 {
		return nil, nil
	}
	return persisted, nil
}

func (r *Rebuilder[F, M]) annotate(detail string) string {
	s := "IMPORTED at " + r.opts.ImportTime.UTC().Format(time.DateTime)
	if detail != "" {
		s += " (" + detail + ")"
	}
	return s
}

func (r *Rebuilder[F, M]) warn(id int64, at time.Time, m mismatch) {
	r.reporter.Inconsistency(r.schema.Kind, string(m.kind))
	r.opts.Logger.Warn().
		Str("kind", string(r.schema.Kind)).
		Int64("id", id).
		Str("facet", m.facet).
		Str("reason", string(m.kind)).
		Str("expected", m.expected).
		Str("found", m.found).
		Time("at", at).
		Msg("inconsistent activity")
}

func (r *Rebuilder[F, M]) structural(id int64, err error) error {
	var se *StructuralError
	if errors.As(err, &se) {
		return err
	}
	return &StructuralError{Kind: r.schema.Kind, ID: id, Err: err}
}
