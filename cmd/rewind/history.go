package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/model"
	"github.com/ALT-F4-LLC/rewind/internal/output"
	"github.com/ALT-F4-LLC/rewind/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history <kind> <id>",
	Short: "Show the stored version history of an issue or attachment",
	Example: `  rewind history issue BUG-12
  rewind history attachment 7 --markdown`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		conn := getDB(cmd)

		kind := model.Kind(args[0])
		if err := model.ValidateKind(kind); err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		id, err := kind.ParseID(args[1])
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		rec, err := exportEntity(cmd.Context(), conn, kind, id)
		switch {
		case errors.Is(err, db.ErrNotFound):
			return cmdErr(fmt.Errorf("no history stored for %s", kind.FormatID(id)), output.ErrNotFound)
		case err != nil:
			return cmdErr(err, output.ErrBackend)
		}

		if markdown, _ := cmd.Flags().GetBool("markdown"); markdown && !w.JSONMode {
			rendered, err := render.RenderMarkdown(render.HistoryMarkdown(*rec))
			if err != nil {
				w.Warn("rendering markdown: %v", err)
			}
			w.Result(rec, rendered)
			return nil
		}

		w.Result(rec, render.RenderEntity(*rec)+"\n\n"+render.RenderHistory(*rec))
		return nil
	},
}

func init() {
	historyCmd.Flags().Bool("markdown", false, "Render the history as a markdown report")
	rootCmd.AddCommand(historyCmd)
}
