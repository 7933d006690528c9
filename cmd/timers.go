package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"timer-tracker.com/timer-tracker/internal/constants"
	apperrors "timer-tracker.com/timer-tracker/internal/errors"
)

var timersCategory string

var timersCmd = &cobra.Command{
	Use:   "timers",
	Short: "List stored timers",
	RunE: func(cmd *cobra.Command, args []string) error {
		category := constants.Category(timersCategory)
		if category != "" && !category.Valid() {
			return apperrors.ErrUnknownCategory
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		a.wire(nil, nil)

		timers := a.timers.ListTimers(cmd.Context(), category)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tSTATUS\tREMAINING\tDURATION")
		for _, t := range timers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Name, t.Category, t.Status.Label(), formatSeconds(t.Remaining), formatSeconds(t.Duration))
		}
		return w.Flush()
	},
}

// formatSeconds renders a duration as HH:MM:SS.
func formatSeconds(total int) string {
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

func init() {
	timersCmd.Flags().StringVar(&timersCategory, "category", "", "only list timers of this category")
	rootCmd.AddCommand(timersCmd)
}
