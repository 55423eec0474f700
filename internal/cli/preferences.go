package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"finledger/internal/core"
)

func newPreferencesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preferences",
		Short: "Show and change a user's notification preferences",
	}

	list := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List every notification kind with its setting",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user_id", args[0])
			if err != nil {
				return err
			}
			prefs, err := a.svc.Prefs.List(cmd.Context(), userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range prefs {
				threshold := "default"
				if p.Threshold > 0 {
					threshold = fmt.Sprint(p.Threshold)
				}
				fmt.Fprintf(out, "%-32s enabled=%t threshold=%s\n", p.Kind, p.Enabled, threshold)
			}
			return nil
		}),
	}

	var (
		disable   bool
		threshold int
	)
	set := &cobra.Command{
		Use:   "set <user-id> <kind>",
		Short: "Turn a notification kind on or off and set its threshold",
		Long: "Threshold is the milestone spacing in percent for goal_milestone and the\n" +
			"reminder lead time in days for recurring_transaction_upcoming. 0 keeps the default.",
		Args: cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("user_id", args[0])
			if err != nil {
				return err
			}
			p, err := a.svc.Prefs.Set(cmd.Context(), core.PreferenceRequest{
				UserID:    userID,
				Kind:      core.NotificationKind(args[1]),
				Enabled:   !disable,
				Threshold: threshold,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s enabled=%t threshold=%d\n", p.Kind, p.Enabled, p.Threshold)
			return nil
		}),
	}
	set.Flags().BoolVar(&disable, "off", false, "turn the notification kind off")
	set.Flags().IntVar(&threshold, "threshold", 0, "milestone step or reminder lead days (0 for default)")

	cmd.AddCommand(list, set)
	return cmd
}
