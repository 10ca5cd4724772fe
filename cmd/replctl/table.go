package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var tableCmd = &cobra.Command{
	Use:   "table <db> <table>",
	Short: "Print the replication records of one table",
	Long: `Compare one table between the source and destination catalogs and print
its records, with partition placeholders already resolved. Partitioned tables
that need copying are pre-created on the destination, as in a full run.`,
	Args: cobra.ExactArgs(2),
	RunE: runTable,
}

func runTable(cmd *cobra.Command, args []string) error {
	acts, err := newActivities(os.TempDir())
	if err != nil {
		return err
	}
	recs, err := acts.InspectTable(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range recs {
		line, err := r.Marshal()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
