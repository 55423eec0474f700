package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"finledger/internal/calendar"
	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/ports"
)

// GoalLedger owns goal balances. Contribution rows are the source of truth;
// a goal's CurrentAmount is a cached projection of StartingAmount plus the
// sum of its contributions, maintained under the goal's row lock.
type GoalLedger struct {
	store         ports.GoalStore
	clock         calendar.Clock
	events        notify.Sink
	retry         RetryPolicy
	prefs         ports.PreferenceStore
	milestoneStep int
	logger        *log.Logger
}

func NewGoalLedger(store ports.GoalStore, opts Options) *GoalLedger {
	opts = opts.withDefaults()
	return &GoalLedger{
		store:         store,
		clock:         opts.Clock,
		events:        opts.Events,
		retry:         opts.Retry,
		prefs:         opts.Preferences,
		milestoneStep: opts.MilestoneStep,
		logger:        opts.Logger.WithComponent(log.ComponentLedger),
	}
}

// ContributionInput describes one contribution. An empty Type is derived:
// manual without a source transaction, transaction otherwise.
type ContributionInput struct {
	GoalID        ulid.ULID
	Amount        core.Money
	TransactionID *ulid.ULID
	Type          core.ContributionType
	Notes         string
}

// CreateGoal validates req and stores a new active goal.
func (l *GoalLedger) CreateGoal(ctx context.Context, req core.GoalRequest) (core.Goal, error) {
	g, err := core.NewGoal(req, calendar.Today(l.clock), l.clock.Now())
	if err != nil {
		return core.Goal{}, err
	}
	if err := l.store.CreateGoal(ctx, g); err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	l.logger.InfoContext(ctx, "Goal created",
		log.FieldGoalID, g.ID.String(),
		log.FieldUserID, g.UserID.String(),
		"goal_type", g.Type,
		"target_cents", g.TargetAmount.Cents)
	return g, nil
}

// AddContribution appends a contribution and applies it to the goal. An
// active goal reaching its target is completed exactly once; a later
// decrease only reopens it through RecalculateProgress.
func (l *GoalLedger) AddContribution(ctx context.Context, in ContributionInput) (core.Contribution, error) {
	if in.Amount.IsZero() {
		return core.Contribution{}, core.NewValidationError("amount", core.ErrZeroAmount.Error())
	}
	typ := in.Type
	if typ == "" {
		typ = core.ContributionManual
		if in.TransactionID != nil {
			typ = core.ContributionFromTransaction
		}
	}
	switch typ {
	case core.ContributionManual, core.ContributionFromTransaction, core.ContributionRecurring:
	default:
		return core.Contribution{}, core.NewValidationError("contribution_type", fmt.Sprintf("unknown type %q", typ))
	}

	var (
		contrib       core.Contribution
		before, after core.Goal
	)
	err := l.retry.Do(ctx, "goal", in.GoalID.String(), func() error {
		return l.store.WithGoal(ctx, in.GoalID, func(tx ports.GoalTx) error {
			g := tx.Goal()
			before = g
			now := l.clock.Now()

			contrib = core.Contribution{
				ID:            core.NewID(),
				GoalID:        g.ID,
				TransactionID: in.TransactionID,
				Amount:        in.Amount,
				Type:          typ,
				Notes:         in.Notes,
				CreatedAt:     now,
			}
			if err := tx.InsertContribution(ctx, contrib); err != nil {
				return fmt.Errorf("insert contribution: %w", err)
			}

			g.CurrentAmount = g.CurrentAmount.Add(in.Amount)
			if g.Status == core.GoalActive && g.CurrentAmount.Cents >= g.TargetAmount.Cents {
				g.Status = core.GoalComplete
				g.CompletionDate = calendar.Today(l.clock)
			}
			g.UpdatedAt = now
			if err := tx.SaveProgress(ctx, g); err != nil {
				return err
			}
			g.Version++
			after = g
			return nil
		})
	})
	if err != nil {
		l.logFailure(ctx, log.OpAddContribution, in.GoalID, err)
		return core.Contribution{}, err
	}

	l.logger.InfoContext(ctx, "Contribution added",
		log.FieldGoalID, in.GoalID.String(),
		log.FieldContributionID, contrib.ID.String(),
		log.FieldAmountCents, contrib.Amount.Cents,
		"current_cents", after.CurrentAmount.Cents,
		"status", after.Status)
	l.announce(ctx, before, after)
	return contrib, nil
}

// RemoveContribution deletes a contribution and re-sums the goal.
func (l *GoalLedger) RemoveContribution(ctx context.Context, contributionID ulid.ULID) error {
	c, err := l.store.GetContribution(ctx, contributionID)
	if err != nil {
		return err
	}

	var before, after core.Goal
	err = l.retry.Do(ctx, "goal", c.GoalID.String(), func() error {
		return l.store.WithGoal(ctx, c.GoalID, func(tx ports.GoalTx) error {
			if err := tx.DeleteContribution(ctx, contributionID); err != nil {
				return err
			}
			var err error
			before, after, err = l.recalculate(ctx, tx)
			return err
		})
	})
	if err != nil {
		l.logFailure(ctx, log.OpRemoveContribution, c.GoalID, err)
		return err
	}

	l.logger.InfoContext(ctx, "Contribution removed",
		log.FieldGoalID, c.GoalID.String(),
		log.FieldContributionID, contributionID.String(),
		"current_cents", after.CurrentAmount.Cents)
	l.announce(ctx, before, after)
	return nil
}

// UpdateContributionForTransactionChange scales every contribution sourced
// from transactionID by newAmount/oldAmount, rounded to the cent, and re-sums
// each affected goal. A contribution that rounds to zero is removed.
func (l *GoalLedger) UpdateContributionForTransactionChange(ctx context.Context, transactionID ulid.ULID, oldAmount, newAmount core.Money) error {
	if oldAmount.IsZero() {
		return core.NewValidationError("old_amount", core.ErrZeroAmount.Error())
	}
	if newAmount.Cents <= 0 {
		return core.NewValidationError("amount", "must be greater than zero")
	}
	if oldAmount == newAmount {
		return nil
	}

	linked, err := l.store.ContributionsForTransaction(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("contributions for transaction %s: %w", transactionID, err)
	}

	var goalIDs []ulid.ULID
	seen := make(map[ulid.ULID]bool)
	for _, c := range linked {
		if !seen[c.GoalID] {
			seen[c.GoalID] = true
			goalIDs = append(goalIDs, c.GoalID)
		}
	}

	var errs []error
	for _, goalID := range goalIDs {
		var before, after core.Goal
		err := l.retry.Do(ctx, "goal", goalID.String(), func() error {
			return l.store.WithGoal(ctx, goalID, func(tx ports.GoalTx) error {
				contribs, err := tx.Contributions(ctx)
				if err != nil {
					return err
				}
				for _, c := range contribs {
					if c.TransactionID == nil || *c.TransactionID != transactionID {
						continue
					}
					scaled := c.Amount.Scale(newAmount.Cents, oldAmount.Cents)
					if scaled.IsZero() {
						err = tx.DeleteContribution(ctx, c.ID)
					} else {
						err = tx.UpdateContributionAmount(ctx, c.ID, scaled)
					}
					if err != nil {
						return fmt.Errorf("scale contribution %s: %w", c.ID, err)
					}
				}
				before, after, err = l.recalculate(ctx, tx)
				return err
			})
		})
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			l.logFailure(ctx, log.OpScaleContributions, goalID, err)
			errs = append(errs, err)
			continue
		}
		l.logger.InfoContext(ctx, "Contributions rescaled",
			log.FieldGoalID, goalID.String(),
			log.FieldTransactionID, transactionID.String(),
			"old_cents", oldAmount.Cents,
			"new_cents", newAmount.Cents,
			"current_cents", after.CurrentAmount.Cents)
		l.announce(ctx, before, after)
	}
	return errors.Join(errs...)
}

// RecalculateProgress re-sums the goal from its contributions and fixes the
// status. Running it on a consistent goal changes nothing.
func (l *GoalLedger) RecalculateProgress(ctx context.Context, goalID ulid.ULID) (core.Goal, error) {
	var before, after core.Goal
	err := l.retry.Do(ctx, "goal", goalID.String(), func() error {
		return l.store.WithGoal(ctx, goalID, func(tx ports.GoalTx) error {
			var err error
			before, after, err = l.recalculate(ctx, tx)
			return err
		})
	})
	if err != nil {
		l.logFailure(ctx, log.OpRecalculate, goalID, err)
		return core.Goal{}, err
	}
	if before.CurrentAmount != after.CurrentAmount || before.Status != after.Status {
		l.logger.InfoContext(ctx, "Goal progress corrected",
			log.FieldGoalID, goalID.String(),
			"from_cents", before.CurrentAmount.Cents,
			"to_cents", after.CurrentAmount.Cents,
			"status", after.Status)
	}
	l.announce(ctx, before, after)
	return after, nil
}

// RecalculateAll repairs every goal. It keeps going past failures and
// returns how many goals were checked and how many needed a correction.
func (l *GoalLedger) RecalculateAll(ctx context.Context) (checked, corrected int, err error) {
	ids, err := l.store.ListGoalIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list goals: %w", err)
	}
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		before, err := l.store.GetGoal(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		after, err := l.RecalculateProgress(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("goal %s: %w", id, err))
			continue
		}
		checked++
		if before.CurrentAmount != after.CurrentAmount || before.Status != after.Status {
			corrected++
		}
	}
	return checked, corrected, errors.Join(errs...)
}

// recalculate re-sums the locked goal and saves it only if something changed.
func (l *GoalLedger) recalculate(ctx context.Context, tx ports.GoalTx) (before, after core.Goal, err error) {
	g := tx.Goal()
	before = g
	contribs, err := tx.Contributions(ctx)
	if err != nil {
		return before, before, fmt.Errorf("load contributions: %w", err)
	}

	total := g.StartingAmount
	for _, c := range contribs {
		total = total.Add(c.Amount)
	}
	g.CurrentAmount = total

	switch {
	case g.Status == core.GoalActive && total.Cents >= g.TargetAmount.Cents:
		g.Status = core.GoalComplete
		g.CompletionDate = calendar.Today(l.clock)
	case g.Status == core.GoalComplete && total.Cents < g.TargetAmount.Cents:
		g.Status = core.GoalActive
		g.CompletionDate = core.Date{}
	}

	if g.CurrentAmount == before.CurrentAmount && g.Status == before.Status && g.CompletionDate.Equal(before.CompletionDate) {
		return before, before, nil
	}
	g.UpdatedAt = l.clock.Now()
	if err := tx.SaveProgress(ctx, g); err != nil {
		return before, before, err
	}
	g.Version++
	return before, g, nil
}

// announce emits completion and milestone events for a committed change.
// The owner's preferences decide whether each kind is sent and how far
// apart milestones are.
func (l *GoalLedger) announce(ctx context.Context, before, after core.Goal) {
	now := l.clock.Now()
	if before.Status != core.GoalComplete && after.Status == core.GoalComplete {
		if l.preference(ctx, after.UserID, core.NotifyGoalCompleted).Enabled {
			l.events.Emit(ctx, notify.GoalCompleted(after, now))
		}
		return
	}
	if after.Status != core.GoalActive || wholePercent(after) <= wholePercent(before) {
		return
	}
	pref := l.preference(ctx, after.UserID, core.NotifyGoalMilestone)
	if !pref.Enabled {
		return
	}
	if m := crossedMilestone(before, after, pref.ThresholdOr(l.milestoneStep)); m > 0 {
		l.events.Emit(ctx, notify.GoalMilestoneReached(after, m, now))
	}
}

func (l *GoalLedger) preference(ctx context.Context, userID ulid.ULID, kind core.NotificationKind) core.NotificationPreference {
	return preferenceFor(ctx, l.prefs, l.logger, userID, kind)
}

// crossedMilestone returns the highest multiple of step below 100 that the
// goal's progress moved up past, or 0.
func crossedMilestone(before, after core.Goal, step int) int {
	top := (99 / step) * step
	from := min(wholePercent(before), top)
	to := min(wholePercent(after), top)
	if to/step <= from/step {
		return 0
	}
	return (to / step) * step
}

func wholePercent(g core.Goal) int {
	if g.TargetAmount.Cents <= 0 || g.CurrentAmount.Cents <= 0 {
		return 0
	}
	p := g.CurrentAmount.Cents * 100 / g.TargetAmount.Cents
	return int(min(p, 100))
}

func (l *GoalLedger) logFailure(ctx context.Context, op string, goalID ulid.ULID, err error) {
	errType := log.ErrorTypeDatabase
	switch {
	case errors.Is(err, core.ErrValidation):
		errType = log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		errType = log.ErrorTypeNotFound
	case errors.Is(err, core.ErrConflict):
		errType = log.ErrorTypeConflict
	}
	fields := log.NewFields().WithOperation(op).WithGoal(goalID.String()).WithError(err, errType)
	l.logger.ErrorContext(ctx, "Ledger operation failed", fields.ToSlice()...)
}
