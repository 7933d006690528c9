package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var historyClear bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear completed timers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		a.wire(nil, nil)

		if historyClear {
			if err := a.timers.ClearHistory(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("history cleared")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "COMPLETED\tNAME\tCATEGORY\tDURATION")
		for _, r := range a.timers.History(cmd.Context()) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.CompletedAt.Local().Format(time.DateTime), r.Name, r.Category, formatSeconds(r.Duration))
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "delete every history record")
	rootCmd.AddCommand(historyCmd)
}
