package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "Show journaled transactions, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			limit, _ := cmd.Flags().GetInt("limit")
			history, err := a.engine.History(cmd.Context(), target, limit)
			if err != nil {
				return &exitError{code: exitFailed, err: err}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tTARGET\tACTION\tKIND\tOUTCOME\tCODE")
			for _, r := range history {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), r.Target, r.Action, r.Kind, a.styler.Outcome(r.Outcome), r.Code)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of entries (0 for all)")
	return cmd
}
