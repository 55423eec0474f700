package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"finledger/internal/core"
)

// Loader opens the services for one ledgerctl invocation. The returned
// function releases them.
type Loader func(ctx context.Context) (*Services, func(), error)

type app struct {
	load Loader
	svc  *Services
}

// run wraps a command body so the services are open for its duration and
// released afterwards, whether or not it fails.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svc, release, err := a.load(cmd.Context())
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer release()
		a.svc = svc
		return fn(cmd, args)
	}
}

// NewRootCommand builds the ledgerctl command tree.
func NewRootCommand(load Loader) *cobra.Command {
	a := &app{load: load}
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Administer goals, recurring schedules and notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCatchUpCommand(a),
		newGenerateCommand(a),
		newScheduleCommand(a),
		newRemindersCommand(a),
		newRecalcCommand(a),
		newProgressCommand(a),
		newNotificationsCommand(a),
		newPreferencesCommand(a),
	)
	return root
}

func parseID(kind, s string) (ulid.ULID, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return ulid.ULID{}, core.NewValidationError(kind, fmt.Sprintf("invalid id %q", s))
	}
	return id, nil
}

// dateOrToday parses a YYYY-MM-DD flag value; empty means today.
func (a *app) dateOrToday(flag, value string) (core.Date, error) {
	if value == "" {
		return a.svc.Today(), nil
	}
	d, err := core.ParseDate(value)
	if err != nil {
		return core.Date{}, core.NewValidationError(flag, err.Error())
	}
	return d, nil
}

// ExitCode maps errors onto process exit codes: 2 for bad input, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, core.ErrValidation):
		return 2
	default:
		return 1
	}
}
