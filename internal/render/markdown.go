package render

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

// ColorsEnabled returns whether terminal colors should be used.
// It returns false if the NO_COLOR environment variable is set (any value)
// or if TERM is set to "dumb".
func ColorsEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return true
}

// RenderMarkdown renders markdown text for terminal display.
// When colors are disabled, it returns the content unmodified.
func RenderMarkdown(content string) (string, error) {
	if content == "" {
		return "", nil
	}

	if !ColorsEnabled() {
		return content, nil
	}

	rendered, err := glamour.RenderWithEnvironmentConfig(content)
	if err != nil {
		return content, err
	}

	return strings.TrimSpace(rendered), nil
}

// HistoryMarkdown writes an entity's history as a markdown report: a summary
// followed by one section per version, most recent first.
func HistoryMarkdown(rec model.EntityRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", rec.ID)
	fmt.Fprintf(&b, "- **Reporter:** %s\n", rec.Reporter)
	fmt.Fprintf(&b, "- **Created:** %s\n", formatInstant(rec.CreatedAt))
	if rec.ParentID != "" {
		fmt.Fprintf(&b, "- **Parent:** %s\n", rec.ParentID)
	}
	fmt.Fprintf(&b, "- **Versions:** %d\n", len(rec.Versions))

	for i := len(rec.Versions) - 1; i >= 0; i-- {
		v := rec.Versions[i]
		fmt.Fprintf(&b, "\n## %d. %s to %s\n\n", i+1, formatInstant(v.From), formatUntil(v.To))
		fmt.Fprintf(&b, "_%s_", v.Author)
		if v.Annotation != "" {
			fmt.Fprintf(&b, " · %s", v.Annotation)
		}
		b.WriteString("\n\n| Field | Value |\n| --- | --- |\n")
		for _, name := range sortedKeys(v.Facets) {
			fmt.Fprintf(&b, "| %s | %s |\n", name, escapeCell(v.Facets[name]))
		}
		for _, name := range sortedKeys(v.Measurements) {
			fmt.Fprintf(&b, "| %s | %d |\n", name, v.Measurements[name])
		}
	}

	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
