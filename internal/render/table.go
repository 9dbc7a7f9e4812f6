package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

const (
	maxCellWidth  = 40
	instantLayout = "2006-01-02 15:04:05.000"
)

// StyledText applies a lipgloss style to text when colors are enabled.
// When colors are disabled, it returns the plain text unchanged.
func StyledText(text string, style lipgloss.Style) string {
	if ColorsEnabled() {
		return style.Render(text)
	}
	return text
}

// truncate shortens a string to maxLen runes, appending an ellipsis if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// EmptyState renders a styled empty-state message with an optional contextual hint.
// When colors are enabled the message is rendered in dim gray and the hint is italic.
// When quiet is true the hint is suppressed.
func EmptyState(message, hint string, quiet bool) string {
	if !ColorsEnabled() {
		if quiet || hint == "" {
			return message
		}
		return message + "\n" + hint
	}

	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	result := dimStyle.Render(message)
	if !quiet && hint != "" {
		result += "\n" + hintStyle.Render(hint)
	}
	return result
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

func formatUntil(t time.Time) string {
	if !t.Before(model.Future) {
		return "now"
	}
	return formatInstant(t)
}

// validity describes how long a version was valid.
func validity(v model.VersionRecord) string {
	if !v.To.Before(model.Future) {
		return "current"
	}
	d := v.To.Sub(v.From)
	if d < time.Second {
		return d.String()
	}
	return strings.TrimSpace(humanize.RelTime(v.From, v.To, "", ""))
}

func versionRow(i int, v model.VersionRecord) []string {
	return []string{
		fmt.Sprintf("%d", i+1),
		formatInstant(v.From),
		validity(v),
		v.Author,
		truncate(v.Facets["modified_fields"], maxCellWidth),
		v.Annotation,
	}
}

var historyHeaders = []string{"#", "From", "Valid", "Author", "Modified", "Annotation"}

// RenderHistory renders the versions of an entity as a table, oldest first.
func RenderHistory(rec model.EntityRecord) string {
	if len(rec.Versions) == 0 {
		return EmptyState(fmt.Sprintf("No history stored for %s.", rec.ID), "Build it with: rewind rebuild", false)
	}

	if !ColorsEnabled() {
		return renderPlainHistory(rec)
	}

	rows := make([][]string, 0, len(rec.Versions))
	for i, v := range rec.Versions {
		rows = append(rows, versionRow(i, v))
	}
	latest := len(rows) - 1

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(historyHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)

			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}

			switch col {
			case 0:
				return s.Foreground(lipgloss.Color("8"))
			case 2:
				if row == latest {
					return s.Foreground(lipgloss.Color("10")).Bold(true)
				}
				return s
			case 5:
				return s.Foreground(lipgloss.Color("8")).Italic(true)
			default:
				return s
			}
		})

	return t.Render()
}

func renderPlainHistory(rec model.EntityRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-4s %-24s %-14s %-28s %-40s %s\n",
		"#", "From", "Valid", "Author", "Modified", "Annotation")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 130))

	for i, v := range rec.Versions {
		row := versionRow(i, v)
		fmt.Fprintf(&b, "%-4s %-24s %-14s %-28s %-40s %s\n",
			row[0], row[1], row[2], row[3], row[4], row[5])
	}

	return b.String()
}
