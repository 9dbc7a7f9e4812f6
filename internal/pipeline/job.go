package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ALT-F4-LLC/rewind/internal/cache"
	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/history"
	"github.com/ALT-F4-LLC/rewind/internal/index"
	"github.com/ALT-F4-LLC/rewind/internal/logger"
	"github.com/ALT-F4-LLC/rewind/internal/metrics"
	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// Job rebuilds every entity of one kind that changed since the last run and
// writes the result to the version store, plus the cache and search index
// when they are set.
type Job[F model.Facet, M model.Field] struct {
	DB       *sql.DB
	Schema   *model.Schema[F, M]
	Measurer history.Measurer[F, M]
	Options  history.Options

	// Cache, when set, must wrap a version store of the same database.
	Cache    *cache.Lookup[F, M]
	Index    *index.Index
	Recorder *metrics.Recorder
	Logger   zerolog.Logger

	Workers   int
	BatchSize int
	KeepGoing bool

	// Full rebuilds every entity from scratch and replaces stored histories.
	Full bool

	// Since limits the rebuild to entities changed after it. When zero the
	// job resumes from the start of the last finished run.
	Since time.Time
}

// Outcome describes a finished job.
type Outcome struct {
	Run   *db.Run
	Stats history.StatsSnapshot
}

// Run executes the job and records it in the runs table. The run is stored
// even when the job fails.
func (j *Job[F, M]) Run(ctx context.Context) (*Outcome, error) {
	kind := j.Schema.Kind
	now := time.Now
	if j.Options.Now != nil {
		now = j.Options.Now
	}
	log := logger.Component(j.Logger, "rebuild").With().Str("kind", string(kind)).Logger()

	since, err := j.since()
	if err != nil {
		return nil, err
	}

	started := now()
	run, err := db.StartRun(j.DB, string(kind), since, started)
	if err != nil {
		return nil, err
	}
	logger.LogRunStart(log, run.ID, string(kind), since)

	stats := &history.Stats{}
	reporters := history.Reporters{stats}
	var observer Observer
	if j.Recorder != nil {
		reporters = append(reporters, j.Recorder)
		observer = j.Recorder
	}

	opts := j.Options
	opts.Logger = log
	opts.Reporter = reporters
	if opts.ImportTime.IsZero() {
		opts.ImportTime = started
	}

	store := db.NewVersionStore(j.DB, j.Schema)
	var lookup history.Lookup[F, M]
	switch {
	case j.Full:
		if j.Cache != nil {
			j.Cache.Purge()
		}
	case j.Cache != nil:
		lookup = j.Cache
	default:
		lookup = store
	}

	sinks := []NamedSink[F, M]{{Name: "sqlite", Sink: store}}
	if j.Index != nil {
		sinks = append(sinks, NamedSink[F, M]{Name: "index", Sink: index.NewSink(j.Index, j.Schema)})
	}
	if j.Cache != nil {
		sinks = append(sinks, NamedSink[F, M]{Name: "cache", Sink: j.Cache})
	}

	cursor := db.NewActivityCursor(j.DB, j.Schema, since, j.BatchSize)
	rebuilder := history.NewRebuilder(j.Schema, history.Cursor[F](cursor), lookup, j.Measurer, opts)

	res, runErr := Run(ctx, kind, Source[F, M](rebuilder), sinks, Options{
		Workers:   j.Workers,
		KeepGoing: j.KeepGoing,
		Logger:    log,
		Observer:  observer,
	})

	status := db.RunFinished
	if runErr != nil {
		status = db.RunFailed
	}
	run.Entities, run.Failures = res.Entities, res.Failures
	finished := now()
	if err := db.FinishRun(j.DB, run, status, finished); err != nil {
		return nil, errors.Join(runErr, err)
	}
	if j.Recorder != nil {
		j.Recorder.RunFinished(kind, status, finished)
	}
	logger.LogRunFinished(log, run.ID, string(kind), res.Entities, res.Failures, finished.Sub(started), runErr)

	return &Outcome{Run: run, Stats: stats.Snapshot()}, runErr
}

func (j *Job[F, M]) since() (time.Time, error) {
	switch {
	case j.Full:
		return time.Time{}, nil
	case !j.Since.IsZero():
		return j.Since, nil
	}
	last, err := db.LastFinishedRun(j.DB, string(j.Schema.Kind))
	if errors.Is(err, db.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("resuming %s rebuild: %w", j.Schema.Kind, err)
	}
	return last.StartedAt, nil
}
