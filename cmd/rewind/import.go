package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALT-F4-LLC/rewind/internal/fixture"
	"github.com/ALT-F4-LLC/rewind/internal/output"
)

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Load source snapshots and activity logs from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		conn := getDB(cmd)

		f, err := fixture.ReadFile(args[0])
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		sum, err := fixture.Load(conn, f)
		if err != nil {
			return cmdErr(err, output.ErrBackend)
		}

		w.Success(sum, fmt.Sprintf("Imported %d entities with %d field changes", sum.Entities, sum.Changes))
		if sum.Entities > 0 {
			w.Info("Run 'rewind rebuild' to update their history")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
