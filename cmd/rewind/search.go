package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/rewind/internal/index"
	"github.com/ALT-F4-LLC/rewind/internal/output"
	"github.com/ALT-F4-LLC/rewind/internal/render"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search rebuilt versions",
	Long: `Search rebuilt versions with a query string.

Facets are searchable by name, e.g. facets.status:RESOLVED, and versions carry
kind, entity, author, annotation, from and to fields.`,
	Example: `  rewind search 'facets.status:REOPENED author:"moist@example.com"'
  rewind search 'entity:BUG-12' --limit 50`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{"skipDB": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		limit, _ := cmd.Flags().GetInt("limit")

		if !getSettings(cmd).Index.Enabled {
			return cmdErr(fmt.Errorf("the search index is disabled in %s", cfg.SettingsPath), output.ErrValidation)
		}

		idx, err := index.Open(cfg.IndexPath)
		if err != nil {
			return cmdErr(err, output.ErrBackend)
		}
		defer idx.Close()

		hits, err := idx.Search(cmd.Context(), strings.Join(args, " "), limit)
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		w.Result(hits, formatHits(hits))
		return nil
	},
}

func formatHits(hits []index.Hit) string {
	if len(hits) == 0 {
		return render.EmptyState("No versions match.", "Versions are indexed by 'rewind rebuild'", false)
	}

	idStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "%-10s %s  %-30s %s\n",
			render.StyledText(h.Kind.FormatID(h.EntityID), idStyle),
			h.From.Format("2006-01-02 15:04:05.000"),
			h.Author,
			render.StyledText(fmt.Sprintf("%.3f", h.Score), dimStyle),
		)
	}
	return b.String()
}

func init() {
	searchCmd.Flags().Int("limit", index.DefaultLimit, "Maximum number of versions to return")
	rootCmd.AddCommand(searchCmd)
}
