package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ALT-F4-LLC/rewind/internal/cache"
	"github.com/ALT-F4-LLC/rewind/internal/config"
	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/history"
	"github.com/ALT-F4-LLC/rewind/internal/index"
	"github.com/ALT-F4-LLC/rewind/internal/metrics"
	"github.com/ALT-F4-LLC/rewind/internal/model"
	"github.com/ALT-F4-LLC/rewind/internal/output"
	"github.com/ALT-F4-LLC/rewind/internal/pipeline"
	"github.com/ALT-F4-LLC/rewind/internal/render"
)

var headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

// job is a rebuild of one kind that can run repeatedly.
type job interface {
	Run(ctx context.Context) (*pipeline.Outcome, error)
	setFull(full bool)
	setSince(since time.Time)
}

type issueJob struct {
	*pipeline.Job[model.IssueFacet, model.IssueMeasure]
}

func (j issueJob) setFull(full bool)        { j.Full = full }
func (j issueJob) setSince(since time.Time) { j.Since = since }

type attachmentJob struct {
	*pipeline.Job[model.AttachmentFacet, model.AttachmentMeasure]
}

func (j attachmentJob) setFull(full bool)        { j.Full = full }
func (j attachmentJob) setSince(since time.Time) { j.Since = since }

type rebuildFlags struct {
	kinds     []model.Kind
	since     time.Time
	full      bool
	reset     bool
	yes       bool
	every     time.Duration
	keepGoing bool
	workers   int
}

type kindResult struct {
	Kind  model.Kind            `json:"kind"`
	Run   *db.Run               `json:"run"`
	Stats history.StatsSnapshot `json:"stats"`
	Cache *cache.Stats          `json:"cache,omitempty"`
	Error string                `json:"error,omitempty"`
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild version histories from the activity log",
	Long: `Rebuild version histories from the activity log.

Without --since or --full only entities changed since the last finished run
are rebuilt, and their stored history is extended.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		conn := getDB(cmd)
		cfg := getCfg(cmd)
		settings := getSettings(cmd)
		log := getLogger(cmd)

		flags, err := parseRebuildFlags(cmd, settings)
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		if flags.reset {
			confirmed, err := confirmReset(w, flags)
			if err != nil {
				return cmdErr(err, output.ErrGeneral)
			}
			if !confirmed {
				w.Info("Cancelled.")
				return nil
			}
			for _, k := range flags.kinds {
				n, err := db.ClearVersions(conn, string(k))
				if err != nil {
					return cmdErr(err, output.ErrBackend)
				}
				w.Info("Deleted %d stored %s versions", n, k)
			}
		}

		var idx *index.Index
		if settings.Index.Enabled {
			idx, err = index.Open(cfg.IndexPath)
			if err != nil {
				return cmdErr(err, output.ErrBackend)
			}
			defer idx.Close()
		}

		recorder := metrics.New()
		jobs := make(map[model.Kind]job, len(flags.kinds))
		caches := make(map[model.Kind]func() cache.Stats, len(flags.kinds))
		for _, k := range flags.kinds {
			j, stats, err := newJob(k, cmd, settings, flags, idx, recorder)
			if err != nil {
				return cmdErr(err, output.ErrGeneral)
			}
			jobs[k], caches[k] = j, stats
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for {
			results, runErr := runJobs(ctx, flags.kinds, jobs, caches)

			if path := settings.Metrics.Textfile; path != "" {
				if err := recorder.WriteTextfile(path); err != nil {
					log.Warn().Err(err).Str("path", path).Msg("writing metrics textfile")
				}
			}
			w.Result(results, formatRebuildHuman(results))

			if runErr != nil && errors.Is(runErr, context.Canceled) && flags.every > 0 {
				w.Info("Stopped.")
				return nil
			}
			if runErr != nil {
				return cmdErr(runErr, output.Classify(runErr))
			}
			if flags.every <= 0 {
				return nil
			}

			// Later rounds extend what the first one built.
			for _, j := range jobs {
				j.setFull(false)
				j.setSince(time.Time{})
			}
			select {
			case <-ctx.Done():
				w.Info("Stopped.")
				return nil
			case <-time.After(flags.every):
			}
		}
	},
}

func parseRebuildFlags(cmd *cobra.Command, settings *config.Settings) (rebuildFlags, error) {
	var f rebuildFlags

	kindName, _ := cmd.Flags().GetString("kind")
	kinds, err := parseKinds(kindName)
	if err != nil {
		return f, err
	}
	f.kinds = kinds

	if s, _ := cmd.Flags().GetString("since"); s != "" {
		f.since, err = parseSince(s)
		if err != nil {
			return f, err
		}
	}

	f.full, _ = cmd.Flags().GetBool("full")
	f.reset, _ = cmd.Flags().GetBool("reset")
	f.yes, _ = cmd.Flags().GetBool("yes")
	f.every, _ = cmd.Flags().GetDuration("every")

	f.keepGoing = settings.Rebuild.KeepGoing
	if cmd.Flags().Changed("keep-going") {
		f.keepGoing, _ = cmd.Flags().GetBool("keep-going")
	}
	f.workers = settings.Rebuild.Workers
	if cmd.Flags().Changed("workers") {
		f.workers, _ = cmd.Flags().GetInt("workers")
	}

	if f.reset {
		f.full = true
	}
	if f.full && !f.since.IsZero() {
		return f, fmt.Errorf("--since cannot be combined with --full or --reset")
	}
	if f.workers <= 0 {
		return f, config.ErrInvalidWorkers
	}
	if f.every < 0 {
		return f, fmt.Errorf("--every must not be negative")
	}
	return f, nil
}

// parseSince accepts RFC 3339 timestamps and plain dates, both in UTC.
func parseSince(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --since %q: use YYYY-MM-DD or RFC 3339", s)
}

func confirmReset(w *output.Writer, flags rebuildFlags) (bool, error) {
	if flags.yes {
		return true, nil
	}
	if w.JSONMode || !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("--reset deletes stored history; pass --yes to confirm")
	}

	names := make([]string, len(flags.kinds))
	for i, k := range flags.kinds {
		names[i] = string(k)
	}

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete all stored %s history and rebuild it?", strings.Join(names, " and "))).
				Affirmative("Yes, rebuild from scratch").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("interactive form failed: %w", err)
	}
	return confirmed, nil
}

func newJob(kind model.Kind, cmd *cobra.Command, settings *config.Settings, flags rebuildFlags, idx *index.Index, recorder *metrics.Recorder) (job, func() cache.Stats, error) {
	conn := getDB(cmd)
	log := getLogger(cmd)
	opts := settings.RebuildOptions()

	switch kind {
	case model.KindIssue:
		lookup, err := cache.New[model.IssueFacet, model.IssueMeasure](db.NewVersionStore(conn, model.IssueSchema), settings.Cache.Size)
		if err != nil {
			return nil, nil, err
		}
		j := &pipeline.Job[model.IssueFacet, model.IssueMeasure]{
			DB:        conn,
			Schema:    model.IssueSchema,
			Measurer:  history.IssueMeasurer{Statuses: settings.StatusTable()},
			Options:   opts,
			Cache:     lookup,
			Index:     idx,
			Recorder:  recorder,
			Logger:    log,
			Workers:   flags.workers,
			BatchSize: settings.Rebuild.BatchSize,
			KeepGoing: flags.keepGoing,
			Full:      flags.full,
			Since:     flags.since,
		}
		return issueJob{j}, lookup.Stats, nil
	case model.KindAttachment:
		lookup, err := cache.New[model.AttachmentFacet, model.AttachmentMeasure](db.NewVersionStore(conn, model.AttachmentSchema), settings.Cache.Size)
		if err != nil {
			return nil, nil, err
		}
		j := &pipeline.Job[model.AttachmentFacet, model.AttachmentMeasure]{
			DB:        conn,
			Schema:    model.AttachmentSchema,
			Measurer:  history.AttachmentMeasurer{},
			Options:   opts,
			Cache:     lookup,
			Index:     idx,
			Recorder:  recorder,
			Logger:    log,
			Workers:   flags.workers,
			BatchSize: settings.Rebuild.BatchSize,
			KeepGoing: flags.keepGoing,
			Full:      flags.full,
			Since:     flags.since,
		}
		return attachmentJob{j}, lookup.Stats, nil
	}
	return nil, nil, model.ValidateKind(kind)
}

// runJobs rebuilds each kind in turn. A failing kind does not keep the
// others from running.
func runJobs(ctx context.Context, kinds []model.Kind, jobs map[model.Kind]job, caches map[model.Kind]func() cache.Stats) ([]kindResult, error) {
	var errs []error
	results := make([]kindResult, 0, len(kinds))
	for _, k := range kinds {
		out, err := jobs[k].Run(ctx)
		res := kindResult{Kind: k}
		if out != nil {
			res.Run, res.Stats = out.Run, out.Stats
		}
		if stats := caches[k]; stats != nil {
			s := stats()
			res.Cache = &s
		}
		if err != nil {
			res.Error = err.Error()
			errs = append(errs, err)
		}
		results = append(results, res)
		if ctx.Err() != nil {
			break
		}
	}
	return results, errors.Join(errs...)
}

func formatRebuildHuman(results []kindResult) string {
	var sections []string
	for _, r := range results {
		title := render.StyledText(string(r.Kind), headingStyle)
		if r.Run == nil {
			sections = append(sections, fmt.Sprintf("%s: not started", title))
			continue
		}
		line := fmt.Sprintf("%s: %d rebuilt, %d failed (%s, run %s)",
			title, r.Run.Entities, r.Run.Failures, r.Run.Status, r.Run.ID)
		sections = append(sections, line+"\n"+render.RenderRunStats(r.Stats))
	}
	return strings.Join(sections, "\n\n")
}

func init() {
	rebuildCmd.Flags().String("kind", "all", "Entity kind to rebuild (issue, attachment, all)")
	rebuildCmd.Flags().String("since", "", "Only rebuild entities changed after this time (YYYY-MM-DD or RFC 3339)")
	rebuildCmd.Flags().Bool("full", false, "Rebuild every entity from scratch, replacing stored history")
	rebuildCmd.Flags().Bool("reset", false, "Delete all stored versions before a full rebuild")
	rebuildCmd.Flags().BoolP("yes", "y", false, "Skip the --reset confirmation")
	rebuildCmd.Flags().Duration("every", 0, "Repeat the rebuild at this interval until interrupted")
	rebuildCmd.Flags().Bool("keep-going", false, "Skip entities with structural errors instead of stopping")
	rebuildCmd.Flags().Int("workers", config.DefaultWorkers, "Number of concurrent writers")
	rootCmd.AddCommand(rebuildCmd)
}
