package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/ports"
	"finledger/internal/storage/storetest"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.Store { return newTestRepository(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path, nil)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}

	version, err := RunMigrations(path, log.Discard())
	if err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if version != 3 {
		t.Errorf("schema version = %d, want 3", version)
	}
}

func TestConcurrentGoalUpdates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	defer repo.Close()

	g := core.Goal{
		ID:             core.NewID(),
		UserID:         core.NewID(),
		Title:          "Car",
		Type:           core.GoalSavings,
		TargetAmount:   core.Money{Cents: 1000000},
		Status:         core.GoalActive,
		TrackingMethod: core.TrackManually,
	}
	if err := repo.CreateGoal(ctx, g); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.WithGoal(ctx, g.ID, func(tx ports.GoalTx) error {
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

	got, err := repo.GetGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if got.CurrentAmount.Cents != writers*100 || got.Version != writers {
		t.Errorf("amount %d version %d, want %d and %d", got.CurrentAmount.Cents, got.Version, writers*100, writers)
	}
}

func TestMapError(t *testing.T) {
	if err := mapError(nil, "goal", "x"); err != nil {
		t.Errorf("nil error mapped to %v", err)
	}
	plain := errors.New("io")
	if err := mapError(plain, "goal", "x"); !errors.Is(err, plain) || errors.Is(err, core.ErrConflict) {
		t.Errorf("plain error mapped to %v", err)
	}
}
