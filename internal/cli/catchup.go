package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCatchUpCommand(a *app) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "catchup",
		Short: "Generate every pending occurrence of every active schedule",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "generate up to this date (YYYY-MM-DD, default today)")
	cmd.RunE = a.run(func(cmd *cobra.Command, _ []string) error {
		date, err := a.dateOrToday("as-of", asOf)
		if err != nil {
			return err
		}
		report, err := a.svc.Recurring.RunCatchUp(cmd.Context(), date)
		fmt.Fprintf(cmd.OutOrStdout(), "as of %s: %d schedules, %d generated, %d failed\n",
			date, report.Schedules, report.Generated, report.Failed)
		return err
	})
	return cmd
}
