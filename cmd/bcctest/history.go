package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/procexpect/internal/history"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		limit     int
		historyDB string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("history-db") {
				cfg.HistoryDB = historyDB
			}
			if cfg.HistoryDB == "" {
				return fmt.Errorf("no history database configured")
			}
			log, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			store, err := history.Open(cmd.Context(), cfg.HistoryDB, log)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // read-only use

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printRuns(cmd, runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&historyDB, "history-db", "", "sqlite database runs are recorded in")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []history.Run) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tRESULT\tFAULT\tROWS\tDETAIL")
	for _, r := range runs {
		result := "FAILED"
		if r.OK {
			result = "ok"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Second), result, r.Fault, r.Rows, r.Detail)
	}
	return tw.Flush()
}
