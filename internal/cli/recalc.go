package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecalcCommand(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "recalc [goal-id]",
		Short: "Recompute a goal's current amount from its contributions",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "repair every goal")
	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if all {
			checked, corrected, err := a.svc.Ledger.RecalculateAll(cmd.Context())
			fmt.Fprintf(out, "%d goals checked, %d corrected\n", checked, corrected)
			return err
		}

		id, err := parseID("goal_id", args[0])
		if err != nil {
			return err
		}
		g, err := a.svc.Ledger.RecalculateProgress(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s  %s  %s / %s  %s\n", g.ID, g.Title, g.CurrentAmount, g.TargetAmount, g.Status)
		return nil
	})
	return cmd
}
