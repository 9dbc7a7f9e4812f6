package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/history"
)

// KindSummary is what the stats view shows for one entity kind.
type KindSummary struct {
	Kind       string  `json:"kind"`
	Sources    int     `json:"sources"`
	Activities int     `json:"activities"`
	Versions   int     `json:"versions"`
	Entities   int     `json:"entities"`
	LastRun    *db.Run `json:"last_run,omitempty"`
}

// RenderSummary renders per-kind storage counts and the last run of each kind.
func RenderSummary(kinds []KindSummary) string {
	headers := []string{"Kind", "Sources", "Activities", "Versions", "Rebuilt", "Last run"}
	rows := make([][]string, 0, len(kinds))
	for _, k := range kinds {
		last := "never"
		if k.LastRun != nil {
			last = fmt.Sprintf("%s %s", k.LastRun.Status, humanize.Time(k.LastRun.StartedAt))
		}
		rows = append(rows, []string{
			k.Kind,
			humanize.Comma(int64(k.Sources)),
			humanize.Comma(int64(k.Activities)),
			humanize.Comma(int64(k.Versions)),
			humanize.Comma(int64(k.Entities)),
			last,
		})
	}
	return renderGrid(headers, rows)
}

// RenderRunStats renders the diagnostic counters of a rebuild run.
func RenderRunStats(snap history.StatsSnapshot) string {
	var sections []string

	if len(snap.Entities) == 0 {
		sections = append(sections, EmptyState("No entities rebuilt.", "", true))
	} else {
		rows := make([][]string, 0, len(snap.Entities))
		for _, r := range snap.Entities {
			state := "existing"
			if r.New {
				state = "new"
			}
			rows = append(rows, []string{state, r.Activities, humanize.Comma(r.Count)})
		}
		sections = append(sections, renderGrid([]string{"Entities", "Activities", "Count"}, rows))
	}

	if len(snap.Simultaneous) > 0 {
		sizes := make([]int, 0, len(snap.Simultaneous))
		for size := range snap.Simultaneous {
			sizes = append(sizes, size)
		}
		sort.Ints(sizes)
		rows := make([][]string, 0, len(sizes))
		for _, size := range sizes {
			rows = append(rows, []string{
				fmt.Sprintf("%d", size),
				humanize.Comma(snap.Simultaneous[size]),
				humanize.Comma(snap.Fallback[size]),
			})
		}
		sections = append(sections, renderGrid([]string{"Set size", "Sets", "Fallbacks"}, rows))
	}

	sections = append(sections, fmt.Sprintf("Inconsistencies: %s", humanize.Comma(snap.Inconsistencies)))
	return strings.Join(sections, "\n\n")
}

func renderGrid(headers []string, rows [][]string) string {
	if !ColorsEnabled() {
		var b strings.Builder
		b.WriteString(strings.Join(headers, "\t"))
		b.WriteString("\n")
		for _, r := range rows {
			b.WriteString(strings.Join(r, "\t"))
			b.WriteString("\n")
		}
		return strings.TrimSuffix(b.String(), "\n")
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if col > 0 {
				return s.Align(lipgloss.Right)
			}
			return s
		}).
		Render()
}

// RenderRuns renders rebuild runs, newest first.
func RenderRuns(runs []*db.Run) string {
	if len(runs) == 0 {
		return EmptyState("No rebuild runs recorded.", "", true)
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		since := "start"
		if !r.Since.IsZero() {
			since = formatInstant(r.Since)
		}
		took := "-"
		if !r.FinishedAt.IsZero() {
			took = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			r.ID[:min(8, len(r.ID))],
			r.Kind,
			r.Status,
			since,
			humanize.Time(r.StartedAt),
			took,
			humanize.Comma(int64(r.Entities)),
			humanize.Comma(int64(r.Failures)),
		})
	}
	return renderGrid([]string{"Run", "Kind", "Status", "Since", "Started", "Took", "Entities", "Failures"}, rows)
}
