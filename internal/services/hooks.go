package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"finledger/internal/core"
	"finledger/internal/ports"
)

// TransactionHooks is what the transaction write path calls after a
// transaction row was created, edited or deleted.
type TransactionHooks struct {
	goals   ports.GoalStore
	ledger  *GoalLedger
	matcher *Matcher
}

func NewTransactionHooks(goals ports.GoalStore, ledger *GoalLedger, matcher *Matcher) *TransactionHooks {
	return &TransactionHooks{goals: goals, ledger: ledger, matcher: matcher}
}

// OnTransactionCreated runs the matcher for a new transaction.
func (h *TransactionHooks) OnTransactionCreated(ctx context.Context, t core.Transaction) ([]core.Contribution, error) {
	return h.matcher.Apply(ctx, t)
}

// OnTransactionAmountChanged rescales the contributions sourced from t, whose
// Amount already holds the new value.
func (h *TransactionHooks) OnTransactionAmountChanged(ctx context.Context, t core.Transaction, oldAmount core.Money) error {
	return h.ledger.UpdateContributionForTransactionChange(ctx, t.ID, oldAmount, t.Amount)
}

// OnTransactionDeleted removes the contributions sourced from the transaction
// and re-sums their goals.
func (h *TransactionHooks) OnTransactionDeleted(ctx context.Context, transactionID ulid.ULID) error {
	linked, err := h.goals.ContributionsForTransaction(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("contributions for transaction %s: %w", transactionID, err)
	}
	var errs []error
	for _, c := range linked {
		if err := h.ledger.RemoveContribution(ctx, c.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
