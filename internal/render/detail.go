package render

import (
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// RenderEntity renders an entity's metadata, its current facets and a
// timeline of its versions.
func RenderEntity(rec model.EntityRecord) string {
	if !ColorsEnabled() {
		return renderPlainEntity(rec)
	}

	sections := []string{renderHeader(rec), renderMetadata(rec)}
	if n := len(rec.Versions); n > 0 {
		sections = append(sections, renderCurrent(rec.Versions[n-1]), renderTimeline(rec))
	}
	return strings.Join(sections, "\n\n")
}

func renderHeader(rec model.EntityRecord) string {
	idStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	kindStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)

	header := fmt.Sprintf("%s %s", kindStyle.Render(string(rec.Kind)), idStyle.Render(rec.ID))
	if n := len(rec.Versions); n > 0 {
		if status := rec.Versions[n-1].Facets["status"]; status != "" {
			statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
			header += "  " + statusStyle.Render(status)
		}
	}
	return header
}

func renderMetadata(rec model.EntityRecord) string {
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	lines := []string{
		fmt.Sprintf("%s %s", labelStyle.Render("Reporter:"), rec.Reporter),
		fmt.Sprintf("%s %s (%s)", labelStyle.Render("Created:"), formatInstant(rec.CreatedAt), humanize.Time(rec.CreatedAt)),
	}
	if rec.ParentID != "" {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("Parent:"), rec.ParentID))
	}
	lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("Versions:"), humanize.Comma(int64(len(rec.Versions)))))

	return strings.Join(lines, "\n")
}

func renderCurrent(v model.VersionRecord) string {
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	lines := []string{sectionStyle.Render("Current")}
	for _, name := range sortedKeys(v.Facets) {
		lines = append(lines, fmt.Sprintf("  %s %s", labelStyle.Render(name+":"), truncate(v.Facets[name], maxCellWidth*2)))
	}
	for _, name := range sortedKeys(v.Measurements) {
		lines = append(lines, fmt.Sprintf("  %s %d", labelStyle.Render(name+":"), v.Measurements[name]))
	}
	return strings.Join(lines, "\n")
}

func renderTimeline(rec model.EntityRecord) string {
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	t := tree.New().Root(sectionStyle.Render("Timeline"))
	for i := len(rec.Versions) - 1; i >= 0; i-- {
		v := rec.Versions[i]
		label := fmt.Sprintf("%s %s %s", formatInstant(v.From), v.Author, dimStyle.Render(validity(v)))
		node := tree.Root(label)
		if changes := v.Facets["changes"]; changes != "" {
			node.Child(dimStyle.Render(truncate(changes, maxCellWidth*2)))
		}
		t.Child(node)
	}
	return t.String()
}

func renderPlainEntity(rec model.EntityRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", rec.Kind, rec.ID)
	fmt.Fprintf(&b, "Reporter: %s\n", rec.Reporter)
	fmt.Fprintf(&b, "Created: %s\n", formatInstant(rec.CreatedAt))
	if rec.ParentID != "" {
		fmt.Fprintf(&b, "Parent: %s\n", rec.ParentID)
	}
	fmt.Fprintf(&b, "Versions: %d\n", len(rec.Versions))

	n := len(rec.Versions)
	if n == 0 {
		return b.String()
	}

	current := rec.Versions[n-1]
	b.WriteString("\nCurrent\n")
	for _, name := range sortedKeys(current.Facets) {
		fmt.Fprintf(&b, "  %s: %s\n", name, current.Facets[name])
	}
	for _, name := range sortedKeys(current.Measurements) {
		fmt.Fprintf(&b, "  %s: %d\n", name, current.Measurements[name])
	}

	b.WriteString("\nTimeline\n")
	for i := n - 1; i >= 0; i-- {
		v := rec.Versions[i]
		fmt.Fprintf(&b, "  %s %s %s\n", formatInstant(v.From), v.Author, validity(v))
		if changes := v.Facets["changes"]; changes != "" {
			fmt.Fprintf(&b, "    %s\n", changes)
		}
	}
	return b.String()
}
