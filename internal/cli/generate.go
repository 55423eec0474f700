package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"finledger/internal/core"
)

func newGenerateCommand(a *app) *cobra.Command {
	var (
		occurrence string
		pending    bool
		asOf       string
	)
	cmd := &cobra.Command{
		Use:   "generate <schedule-id>",
		Short: "Generate the next occurrence of a schedule, or all pending ones",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&occurrence, "occurrence", "", "generate this specific occurrence date")
	cmd.Flags().BoolVar(&pending, "pending", false, "generate every occurrence up to --as-of")
	cmd.Flags().StringVar(&asOf, "as-of", "", "upper bound for --pending (default today)")
	cmd.MarkFlagsMutuallyExclusive("occurrence", "pending")

	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		id, err := parseID("schedule_id", args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if pending {
			date, err := a.dateOrToday("as-of", asOf)
			if err != nil {
				return err
			}
			txs, err := a.svc.Recurring.GenerateAllPending(cmd.Context(), id, date)
			for _, t := range txs {
				printTransaction(out, t)
			}
			fmt.Fprintf(out, "%d generated\n", len(txs))
			return err
		}

		var at *core.Date
		if occurrence != "" {
			d, err := core.ParseDate(occurrence)
			if err != nil {
				return core.NewValidationError("occurrence", err.Error())
			}
			at = &d
		}
		t, err := a.svc.Recurring.GenerateOne(cmd.Context(), id, at)
		if err != nil {
			return err
		}
		printTransaction(out, t)
		return nil
	})
	return cmd
}

func printTransaction(w io.Writer, t core.Transaction) {
	fmt.Fprintf(w, "%s  %s  %-7s %10s  %s\n", t.ID, t.Date, t.Type, t.Amount, t.Description)
}
