// Package pipeline drives a rebuild: it pulls entities from a rebuilder and
// hands them to the sinks that persist them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ALT-F4-LLC/rewind/internal/history"
	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// Failure classes used in logs and metrics.
const (
	ClassStructural = "structural"
	ClassBackend    = "backend"
)

// Source yields rebuilt entities until io.EOF. *history.Rebuilder is a Source.
type Source[F model.Facet, M model.Field] interface {
	Next(ctx context.Context) (*model.Entity[F, M], error)
}

// Sink persists a rebuilt entity. The version store writes only versions that
// need writing; other sinks may rewrite the whole history. A sink must not
// change persistence states.
type Sink[F model.Facet, M model.Field] interface {
	Save(ctx context.Context, e *model.Entity[F, M]) error
}

// NamedSink labels a sink for logs and metrics.
type NamedSink[F model.Facet, M model.Field] struct {
	Name string
	Sink Sink[F, M]
}

// Observer receives per-entity outcomes. *metrics.Recorder is an Observer.
type Observer interface {
	Failed(kind model.Kind, class string)
	ObserveSink(sink string, d time.Duration)
}

// Options configures Run.
type Options struct {
	// Workers is the number of goroutines running sinks. Entities are
	// partitioned by id, so one entity is always handled by one worker.
	Workers int

	// KeepGoing continues past entities that fail with a structural error.
	KeepGoing bool

	Logger   zerolog.Logger
	Observer Observer
}

// Result summarizes a pipeline run.
type Result struct {
	Entities int
	Failures int
}

// Run rebuilds entities from src until it is exhausted and saves each one to
// every sink in order. An entity is marked saved once all sinks succeeded.
//
// A structural error stops the run unless KeepGoing is set, in which case the
// failures are joined into the returned error. Backend errors always stop it.
func Run[F model.Facet, M model.Field](ctx context.Context, kind model.Kind, src Source[F, M], sinks []NamedSink[F, M], opts Options) (Result, error) {
	workers := max(opts.Workers, 1)
	log := opts.Logger
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	var (
		saved    atomic.Int64
		failures []error
	)

	g, ctx := errgroup.WithContext(ctx)
	queues := make([]chan *model.Entity[F, M], workers)
	for i := range queues {
		queue := make(chan *model.Entity[F, M], 1)
		queues[i] = queue
		g.Go(func() error {
			for e := range queue {
				if err := save(ctx, e, sinks, observer); err != nil {
					// Entities still queued when another failure stopped the run are not failures of their own.
					if ctx.Err() == nil {
						observer.Failed(kind, ClassBackend)
					}
					return err
				}
				e.MarkSaved()
				saved.Add(1)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for {
			e, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if !history.IsStructural(err) {
					if ctx.Err() == nil {
						observer.Failed(kind, ClassBackend)
					}
					return err
				}
				observer.Failed(kind, ClassStructural)
				failures = append(failures, err)
				if !opts.KeepGoing {
					return err
				}
				log.Warn().Err(err).Str("kind", string(kind)).Msg("skipping entity")
				continue
			}
			select {
			case queues[partition(e.ID, workers)] <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	err := g.Wait()
	res := Result{Entities: int(saved.Load()), Failures: len(failures)}
	if err == nil && len(failures) > 0 {
		err = errors.Join(failures...)
	}
	return res, err
}

func save[F model.Facet, M model.Field](ctx context.Context, e *model.Entity[F, M], sinks []NamedSink[F, M], observer Observer) error {
	for _, s := range sinks {
		start := time.Now()
		if err := s.Sink.Save(ctx, e); err != nil {
			return fmt.Errorf("saving %s to %s: %w", e.Kind.FormatID(e.ID), s.Name, err)
		}
		observer.ObserveSink(s.Name, time.Since(start))
	}
	return nil
}

func partition(id int64, workers int) int {
	if id < 0 {
		id = -id
	}
	return int(id % int64(workers))
}

type nopObserver struct{}

func (nopObserver) Failed(model.Kind, string)         {}
func (nopObserver) ObserveSink(string, time.Duration) {}
