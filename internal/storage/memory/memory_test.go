package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"finledger/internal/core"
	"finledger/internal/ports"
	"finledger/internal/storage/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.Store { return New() })
}

func TestHooksAbortUnitOfWork(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := core.Goal{ID: core.NewID(), UserID: core.NewID(), Title: "Car", Type: core.GoalSavings,
		TargetAmount: core.Money{Cents: 1000}, Status: core.GoalActive}
	if err := s.CreateGoal(ctx, g); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	injected := errors.New("disk full")
	s.SetHooks(Hooks{BeforeSaveProgress: func(core.Goal) error { return injected }})

	err := s.WithGoal(ctx, g.ID, func(tx ports.GoalTx) error {
		if err := tx.InsertContribution(ctx, core.Contribution{ID: core.NewID(), GoalID: g.ID, Amount: core.Money{Cents: 10}}); err != nil {
			return err
		}
		return tx.SaveProgress(ctx, tx.Goal())
	})
	if !errors.Is(err, injected) {
		t.Fatalf("error = %v, want injected", err)
	}
	got, _ := s.GetGoal(ctx, g.ID)
	if got.Version != 0 {
		t.Errorf("Version = %d, want 0", got.Version)
	}
}

func TestWithGoalSerializesWriters(t *testing.T) {
	ctx := context.Background()
	s := New()
	g := core.Goal{ID: core.NewID(), UserID: core.NewID(), Title: "Car", Type: core.GoalSavings,
		TargetAmount: core.Money{Cents: 1000000}, Status: core.GoalActive}
	if err := s.CreateGoal(ctx, g); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithGoal(ctx, g.ID, func(tx ports.GoalTx) error {
				next := tx.Goal()
				next.CurrentAmount = next.CurrentAmount.Add(core.Money{Cents: 100})
				return tx.SaveProgress(ctx, next)
			})
			if err != nil {
				t.Errorf("WithGoal: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.GetGoal(ctx, g.ID)
	if got.CurrentAmount.Cents != writers*100 || got.Version != writers {
		t.Errorf("amount %d version %d, want %d and %d", got.CurrentAmount.Cents, got.Version, writers*100, writers)
	}
}
