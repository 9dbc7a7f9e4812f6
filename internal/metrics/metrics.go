// Package metrics exposes rebuild diagnostics as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ALT-F4-LLC/rewind/internal/history"
	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// Recorder holds the rebuild metrics. It implements history.Reporter.
// Every Recorder owns its registry, so several can live in one process.
type Recorder struct {
	registry *prometheus.Registry

	SimultaneousSets *prometheus.CounterVec
	OrderFallbacks   *prometheus.CounterVec
	Inconsistencies  *prometheus.CounterVec
	EntitiesRebuilt  *prometheus.CounterVec
	Failures         *prometheus.CounterVec
	SinkDuration     *prometheus.HistogramVec
	LastRun          *prometheus.GaugeVec
}

var _ history.Reporter = (*Recorder)(nil)

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		SimultaneousSets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_simultaneous_sets_total",
				Help: "Sets of activities sharing a timestamp, by set size",
			},
			[]string{"kind", "size"},
		),
		OrderFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_order_fallbacks_total",
				Help: "Simultaneous sets without a consistent order, by set size",
			},
			[]string{"kind", "size"},
		),
		Inconsistencies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_inconsistencies_total",
				Help: "Activities that disagreed with the reconstructed state",
			},
			[]string{"kind", "reason"},
		),
		EntitiesRebuilt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_entities_rebuilt_total",
				Help: "Rebuilt entities by persistence and activity count bucket",
			},
			[]string{"kind", "state", "activities"},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewind_entity_failures_total",
				Help: "Entities that could not be rebuilt or saved",
			},
			[]string{"kind", "class"},
		),
		SinkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewind_sink_duration_seconds",
				Help:    "Time spent writing one entity to a sink",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"sink"},
		),
		LastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rewind_last_run_timestamp_seconds",
				Help: "Unix time the last rebuild run finished",
			},
			[]string{"kind", "status"},
		),
	}
}

func (r *Recorder) Simultaneous(kind model.Kind, size int) {
	r.SimultaneousSets.WithLabelValues(string(kind), strconv.Itoa(size)).Inc()
}

func (r *Recorder) Fallback(kind model.Kind, size int) {
	r.OrderFallbacks.WithLabelValues(string(kind), strconv.Itoa(size)).Inc()
}

func (r *Recorder) Inconsistency(kind model.Kind, reason string) {
	r.Inconsistencies.WithLabelValues(string(kind), reason).Inc()
}

func (r *Recorder) Rebuilt(kind model.Kind, isNew bool, activities int) {
	state := "existing"
	if isNew {
		state = "new"
	}
	bucket := history.ActivityBuckets[history.ActivityBucket(activities)]
	r.EntitiesRebuilt.WithLabelValues(string(kind), state, bucket).Inc()
}

// Failed counts an entity that failed with the given error class.
func (r *Recorder) Failed(kind model.Kind, class string) {
	r.Failures.WithLabelValues(string(kind), class).Inc()
}

// ObserveSink records how long a sink took for one entity.
func (r *Recorder) ObserveSink(sink string, d time.Duration) {
	r.SinkDuration.WithLabelValues(sink).Observe(d.Seconds())
}

// RunFinished stamps the end of a run.
func (r *Recorder) RunFinished(kind model.Kind, status string, at time.Time) {
	r.LastRun.WithLabelValues(string(kind), status).Set(float64(at.Unix()))
}

// Registry returns the registry holding the metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the metrics in the text exposition format, for
// pickup by a node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
