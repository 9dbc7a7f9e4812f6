package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/output"
	"github.com/ALT-F4-LLC/rewind/internal/render"
)

type statsResult struct {
	Kinds []render.KindSummary `json:"kinds"`
	Runs  []*db.Run            `json:"runs,omitempty"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored entity, activity and version counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		conn := getDB(cmd)
		ctx := cmd.Context()

		res := statsResult{}
		for _, k := range allKinds {
			s := render.KindSummary{Kind: string(k)}
			var err error
			if s.Sources, err = db.CountSnapshots(conn, string(k)); err != nil {
				return cmdErr(err, output.ErrBackend)
			}
			if s.Activities, err = db.CountActivity(conn, string(k)); err != nil {
				return cmdErr(err, output.ErrBackend)
			}
			if s.Versions, s.Entities, err = countVersions(ctx, conn, k); err != nil {
				return cmdErr(err, output.ErrBackend)
			}
			runs, err := db.ListRuns(conn, string(k), 1)
			if err != nil {
				return cmdErr(err, output.ErrBackend)
			}
			if len(runs) > 0 {
				s.LastRun = runs[0]
			}
			res.Kinds = append(res.Kinds, s)
		}

		human := []string{render.RenderSummary(res.Kinds)}
		if n, _ := cmd.Flags().GetInt("runs"); n > 0 {
			runs, err := db.ListRuns(conn, "", n)
			if err != nil {
				return cmdErr(err, output.ErrBackend)
			}
			res.Runs = runs
			human = append(human, render.RenderRuns(runs))
		}

		w.Result(res, strings.Join(human, "\n\n"))
		return nil
	},
}

func init() {
	statsCmd.Flags().Int("runs", 0, "Also list this many recent rebuild runs")
	rootCmd.AddCommand(statsCmd)
}
