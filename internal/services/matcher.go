package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/oklog/ulid/v2"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/ports"
)

// Matcher routes transactions into the goals that track them.
type Matcher struct {
	goals  ports.GoalStore
	ledger *GoalLedger
	logger *log.Logger
}

func NewMatcher(goals ports.GoalStore, ledger *GoalLedger, opts Options) *Matcher {
	opts = opts.withDefaults()
	return &Matcher{goals: goals, ledger: ledger, logger: opts.Logger.WithComponent(log.ComponentMatcher)}
}

// Matches reports whether t should contribute to g. Debt reduction goals
// take expenses; every other goal type takes income.
func Matches(g core.Goal, t core.Transaction) bool {
	if !g.AutoTrack || g.Status != core.GoalActive {
		return false
	}
	if !directionAllows(g.Type, t.Type) {
		return false
	}
	switch g.TrackingMethod {
	case core.TrackByCategory:
		return g.HasCategory(t.CategoryID)
	case core.TrackByTag:
		return g.HasAnyTag(t.TagIDs)
	case core.TrackByAccount:
		if len(g.TrackingCriteria) == 0 {
			return true
		}
		return t.AccountID != nil && slices.Contains(g.TrackingCriteria, t.AccountID.String())
	default:
		return false
	}
}

func directionAllows(goal core.GoalType, tx core.TransactionType) bool {
	if goal == core.GoalDebtReduction {
		return tx == core.Expense
	}
	return tx == core.Income
}

// Apply evaluates t against the owner's active auto-tracked goals and adds a
// contribution of t.Amount to each match. A goal already holding a
// contribution for t is left alone, so replaying a transaction is a no-op.
// It returns the contributions that were created; failures on single goals
// are joined into the error.
func (m *Matcher) Apply(ctx context.Context, t core.Transaction) ([]core.Contribution, error) {
	goals, err := m.goals.ActiveAutoTrackedGoals(ctx, t.UserID)
	if err != nil {
		return nil, fmt.Errorf("load goals for user %s: %w", t.UserID, err)
	}
	linked, err := m.goals.ContributionsForTransaction(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("load contributions for transaction %s: %w", t.ID, err)
	}
	applied := make(map[ulid.ULID]bool, len(linked))
	for _, c := range linked {
		applied[c.GoalID] = true
	}

	typ := core.ContributionFromTransaction
	if t.Generated() {
		typ = core.ContributionRecurring
	}

	var (
		created []core.Contribution
		errs    []error
	)
	for _, g := range goals {
		if applied[g.ID] || !Matches(g, t) {
			continue
		}
		txID := t.ID
		c, err := m.ledger.AddContribution(ctx, ContributionInput{
			GoalID:        g.ID,
			Amount:        t.Amount,
			TransactionID: &txID,
			Type:          typ,
		})
		// A concurrent apply of the same transaction won the unique index.
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrDuplicate) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("goal %s: %w", g.ID, err))
			continue
		}
		created = append(created, c)
	}

	m.logger.DebugContext(ctx, "Transaction matched",
		log.FieldTransactionID, t.ID.String(),
		log.FieldOperation, log.OpMatch,
		"candidates", len(goals),
		"contributions", len(created))
	return created, errors.Join(errs...)
}
