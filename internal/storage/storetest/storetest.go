// Package storetest is a behavioural suite every ports.Store backend must
// pass. Backend tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"finledger/internal/core"
	"finledger/internal/ports"
)

var (
	userA     = ulid.MustParse("01HZ0000000000000000000AAA")
	userB     = ulid.MustParse("01HZ0000000000000000000BBB")
	groceries = ulid.MustParse("01HZ00000000000000000CAT01")
	salary    = ulid.MustParse("01HZ00000000000000000CAT02")
	holiday   = ulid.MustParse("01HZ00000000000000000TAG01")
	base      = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
)

// Run executes the suite. newStore must return an empty store; the suite
// closes it.
func Run(t *testing.T, newStore func(t *testing.T) ports.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s ports.Store)
	}{
		{"GoalRoundTrip", testGoalRoundTrip},
		{"GoalNotFound", testGoalNotFound},
		{"ActiveAutoTrackedGoals", testActiveAutoTrackedGoals},
		{"WithGoalCommits", testWithGoalCommits},
		{"WithGoalRollsBack", testWithGoalRollsBack},
		{"SaveProgressVersionConflict", testSaveProgressConflict},
		{"ContributionEdits", testContributionEdits},
		{"ContributionsSince", testContributionsSince},
		{"DuplicateTransactionContribution", testDuplicateTransactionContribution},
		{"DeleteGoalCascades", testDeleteGoalCascades},
		{"ScheduleRoundTrip", testScheduleRoundTrip},
		{"ScheduleActivation", testScheduleActivation},
		{"WithScheduleCommitsTogether", testWithScheduleCommits},
		{"WithScheduleRollsBack", testWithScheduleRollsBack},
		{"AdvanceAnchorConflict", testAdvanceAnchorConflict},
		{"DuplicateOccurrence", testDuplicateOccurrence},
		{"DeleteScheduleKeepsTransactions", testDeleteScheduleKeepsTransactions},
		{"Transactions", testTransactions},
		{"Notifications", testNotifications},
		{"NotificationPreferences", testNotificationPreferences},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func newGoal(user ulid.ULID, mutate func(*core.Goal)) core.Goal {
	g := core.Goal{
		ID:               core.NewID(),
		UserID:           user,
		Title:            "Emergency fund",
		Type:             core.GoalEmergencyFund,
		TargetAmount:     core.Money{Cents: 500000},
		StartingAmount:   core.Money{Cents: 10000},
		CurrentAmount:    core.Money{Cents: 10000},
		TargetDate:       core.NewDate(2025, 6, 30),
		Status:           core.GoalActive,
		AutoTrack:        true,
		TrackingMethod:   core.TrackByCategory,
		TrackingCriteria: []string{groceries.String()},
		CategoryIDs:      []ulid.ULID{groceries},
		TagIDs:           []ulid.ULID{holiday},
		CreatedAt:        base,
		UpdatedAt:        base,
	}
	if mutate != nil {
		mutate(&g)
	}
	return g
}

func newSchedule(mutate func(*core.Schedule)) core.Schedule {
	dom := 31
	s := core.Schedule{
		ID:              core.NewID(),
		UserID:          userA,
		CategoryID:      salary,
		Title:           "Salary",
		Description:     "monthly pay",
		Amount:          core.Money{Cents: 250000},
		TransactionType: core.Income,
		Frequency:       core.Monthly,
		Interval:        1,
		StartDate:       core.NewDate(2024, 1, 31),
		DayOfMonth:      &dom,
		Active:          true,
		CreatedAt:       base,
		UpdatedAt:       base,
	}
	if mutate != nil {
		mutate(&s)
	}
	return s
}

func generated(s core.Schedule, d core.Date) core.Transaction {
	return core.Transaction{
		ID:         core.NewID(),
		UserID:     s.UserID,
		CategoryID: s.CategoryID,
		Title:      s.Title,
		Amount:     s.Amount,
		Type:       s.TransactionType,
		Date:       d,
		ScheduleID: &s.ID,
		CreatedAt:  base,
	}
}

func contribution(goalID ulid.ULID, cents int64, at time.Time) core.Contribution {
	return core.Contribution{
		ID:        core.NewID(),
		GoalID:    goalID,
		Amount:    core.Money{Cents: cents},
		Type:      core.ContributionManual,
		CreatedAt: at,
	}
}

func mustCreateGoal(t *testing.T, s ports.Store, g core.Goal) {
	t.Helper()
	if err := s.CreateGoal(context.Background(), g); err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
}

func mustCreateSchedule(t *testing.T, s ports.Store, sc core.Schedule) {
	t.Helper()
	if err := s.CreateSchedule(context.Background(), sc); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
}

func testGoalRoundTrip(t *testing.T, s ports.Store) {
	ctx := context.Background()
	want := newGoal(userA, func(g *core.Goal) {
		g.ContributionAmount = core.Money{Cents: 20000}
		g.ContributionFrequency = core.Monthly
	})
	mustCreateGoal(t, s, want)

	got, err := s.GetGoal(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if got.Title != want.Title || got.Type != want.Type || got.Status != want.Status {
		t.Errorf("got %q/%s/%s, want %q/%s/%s", got.Title, got.Type, got.Status, want.Title, want.Type, want.Status)
	}
	if got.TargetAmount != want.TargetAmount || got.CurrentAmount != want.CurrentAmount || got.StartingAmount != want.StartingAmount {
		t.Errorf("amounts = %v/%v/%v", got.TargetAmount, got.CurrentAmount, got.StartingAmount)
	}
	if !got.TargetDate.Equal(want.TargetDate) || !got.CompletionDate.IsEmpty() {
		t.Errorf("dates = %s/%s", got.TargetDate, got.CompletionDate)
	}
	if !slices.Equal(got.CategoryIDs, want.CategoryIDs) || !slices.Equal(got.TagIDs, want.TagIDs) {
		t.Errorf("associations = %v/%v", got.CategoryIDs, got.TagIDs)
	}
	if !slices.Equal(got.TrackingCriteria, want.TrackingCriteria) {
		t.Errorf("TrackingCriteria = %v", got.TrackingCriteria)
	}
	if got.ContributionAmount != want.ContributionAmount || got.ContributionFrequency != core.Monthly {
		t.Errorf("cadence = %v %s", got.ContributionAmount, got.ContributionFrequency)
	}
	if !got.AutoTrack || got.TrackingMethod != core.TrackByCategory {
		t.Errorf("tracking = %v %s", got.AutoTrack, got.TrackingMethod)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}

	if err := s.CreateGoal(ctx, want); !errors.Is(err, core.ErrDuplicate) {
		t.Errorf("second CreateGoal error = %v, want ErrDuplicate", err)
	}

	ids, err := s.ListGoalIDs(ctx)
	if err != nil {
		t.Fatalf("ListGoalIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != want.ID {
		t.Errorf("ListGoalIDs = %v", ids)
	}
}

func testGoalNotFound(t *testing.T, s ports.Store) {
	ctx := context.Background()
	missing := core.NewID()
	if _, err := s.GetGoal(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetGoal error = %v", err)
	}
	err := s.WithGoal(ctx, missing, func(ports.GoalTx) error {
		t.Error("callback ran for a missing goal")
		return nil
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("WithGoal error = %v", err)
	}
	if err := s.DeleteGoal(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteGoal error = %v", err)
	}
	if _, err := s.GetContribution(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetContribution error = %v", err)
	}
}

func testActiveAutoTrackedGoals(t *testing.T, s ports.Store) {
	ctx := context.Background()
	tracked := newGoal(userA, nil)
	manual := newGoal(userA, func(g *core.Goal) { g.AutoTrack = false; g.TrackingMethod = core.TrackManually })
	done := newGoal(userA, func(g *core.Goal) { g.Status = core.GoalComplete })
	other := newGoal(userB, nil)
	for _, g := range []core.Goal{tracked, manual, done, other} {
		mustCreateGoal(t, s, g)
	}

	got, err := s.ActiveAutoTrackedGoals(ctx, userA)
	if err != nil {
		t.Fatalf("ActiveAutoTrackedGoals: %v", err)
	}
	if len(got) != 1 || got[0].ID != tracked.ID {
		t.Fatalf("got %d goals, want only %s", len(got), tracked.ID)
	}
	if !got[0].HasCategory(groceries) || !got[0].HasAnyTag([]ulid.ULID{holiday}) {
		t.Error("associations not loaded")
	}
}

func testWithGoalCommits(t *testing.T, s ports.Store) {
	ctx := context.Background()
	g := newGoal(userA, nil)
	mustCreateGoal(t, s, g)
	c := contribution(g.ID, 5000, base.Add(time.Hour))

	err := s.WithGoal(ctx, g.ID, func(tx ports.GoalTx) error {
		if err := tx.InsertContribution(ctx, c); err != nil {
			return err
		}
		next := tx.Goal()
		next.CurrentAmount = next.CurrentAmount.Add(c.Amount)
		next.UpdatedAt = base.Add(time.Hour)
		return tx.SaveProgress(ctx, next)
	})
	if err != nil {
		t.Fatalf("WithGoal: %v", err)
	}

	got, err := s.GetGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if got.CurrentAmount.Cents != 15000 {
		t.Errorf("CurrentAmount = %d, want 15000", got.CurrentAmount.Cents)
	}
	if got.Version != g.Version+1 {
		t.Errorf("Version = %d, want %d", got.Version, g.Version+1)
	}
	stored, err := s.GetContribution(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContribution: %v", err)
	}
	if stored.Amount != c.Amount || stored.Type != core.ContributionManual || stored.TransactionID != nil {
		t.Errorf("contribution = %+v", stored)
	}
}

func testWithGoalRollsBack(t *testing.T, s ports.Store) {
	ctx := context.Background()
	g := newGoal(userA, nil)
	mustCreateGoal(t, s, g)
	c := contribution(g.ID, 5000, base)
	boom := errors.New("boom")

	err := s.WithGoal(ctx, g.ID, func(tx ports.GoalTx) error {
		if err := tx.InsertContribution(ctx, c); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithGoal error = %v, want boom", err)
	}
	if _, err := s.GetContribution(ctx, c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("contribution survived rollback: %v", err)
	}
}

func testSaveProgressConflict(t *testing.T, s ports.Store) {
	ctx := context.Background()
	g := newGoal(userA, nil)
	mustCreateGoal(t, s, g)

	err := s.WithGoal(ctx, g.ID, func(tx ports.GoalTx) error {
		stale := tx.Goal()
		stale.CurrentAmount = core.Money{Cents: 1}
		if err := tx.SaveProgress(ctx, stale); err != nil {
			return err
		}
		// Same version again: the first save already bumped it.
		return tx.SaveProgress(ctx, stale)
	})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
	got, err := s.GetGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if got.Version != g.Version || got.CurrentAmount != g.CurrentAmount {
		t.Errorf("goal changed after failed unit of work: version %d amount %d", got.Version, got.CurrentAmount.Cents)
	}
}

func testContributionEdits(t *testing.T, s ports.Store) {
	ctx := context.Background()
	g := newGoal(userA, nil)
	mustCreateGoal(t, s, g)
	txID := core.NewID()
	keep := contribution(g.ID, 3000, base)
	keep.TransactionID = &txID
	keep.Type = core.ContributionFromTransaction
	drop := contribution(g.ID, 2000, base.Add(time.Minute))

	err := s.WithGoal(ctx, g.ID, func(tx ports.GoalTx) error {
		for _, c := range []core.Contribution{keep, drop} {
			if err := tx.InsertContribution(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = s.WithGoal(ctx, g.ID, func(tx ports.GoalTx) error {
		if err := tx.UpdateContributionAmount(ctx, keep.ID, core.Money{Cents: 4500}); err != nil {
			return err
		}
		if err := tx.DeleteContribution(ctx, drop.ID); err != nil {
			return err
		}
		if err := tx.DeleteContribution(ctx, drop.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("second delete error = %v", err)
		}
		list, err := tx.Contributions(ctx)
		if err != nil {
			return err
		}
		if len(list) != 1 || list[0].Amount.Cents != 4500 {
			t.Errorf("in-tx contributions = %+v", list)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	byTx, err := s.ContributionsForTransaction(ctx, txID)
	if err != nil {
		t.Fatalf("ContributionsForTransaction: %v", err)
	}
	if len(byTx) != 1 || byTx[0].ID != keep.ID || byTx[0].Amount.Cents != 4500 {
		t.Errorf("by transaction = %+v", byTx)
	}
	if byTx[0].TransactionID == nil || *byTx[0].TransactionID != txID {
		t.Errorf("TransactionID = %v", byTx[0].TransactionID)
	}
}

func testDuplicateTransactionContribution(t *testing.T, s ports.Store) {
	ctx := context.Background()
	g := newGoal(userA, nil)
	other := newGoal(userA, nil)
	mustCreateGoal(t, s, g)
	mustCreateGoal(t, s, other)
	txID := core.NewID()

	insert := func(goalID ulid.ULID) error {
		c := contribution(goalID, 1000, base)
		c.TransactionID = &txID
		c.Type = core.ContributionFromTransaction
		return s.WithGoal(ctx, goalID, func(tx ports.GoalTx) error {
			return tx.InsertContribution(ctx, c)
		})
	}
	if err := insert(g.ID); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insert(g.ID); !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("second insert error = %v, want ErrDuplicate", err)
	}
	if err := insert(other.ID); err != nil {
		t.Fatalf("insert for another goal: %v", err)
	}
	// Manual contributions carry no transaction and never collide.
	err := s.WithGoal(ctx, g.ID, func(tx ports.GoalTx) error {
		for range 2 {
			if err := tx.InsertContribution(ctx, contribution(g.ID, 100, base)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("manual inserts: %v", err)
	}
	byTx, err := s.ContributionsForTransaction(ctx, txID)
	if err != nil {
		t.Fatalf("ContributionsForTransaction: %v", err)
	}
	if len(byTx) != 2 {
		t.Errorf("contributions for transaction = %d, want 2", len(byTx))
	}
}

func testContributionsSince(t *testing.T, s ports.Store) {
	ctx := context.Background()
	g := newGoal(userA, nil)
	mustCreateGoal(t, s, g)
	old := contribution(g.ID, 1000, base.AddDate(0, -4, 0))
	recent := contribution(g.ID, 2000, base.AddDate(0, -1, 0))
	latest := contribution(g.ID, 3000, base)

	err := s.WithGoal(ctx, g.ID, func(tx ports.GoalTx) error {
		for _, c := range []core.Contribution{latest, old, recent} {
			if err := tx.InsertContribution(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.ContributionsSince(ctx, g.ID, base.AddDate(0, -3, 0))
	if err != nil {
		t.Fatalf("ContributionsSince: %v", err)
	}
	if len(got) != 2 || got[0].ID != recent.ID || got[1].ID != latest.ID {
		t.Errorf("got %d contributions, want recent then latest", len(got))
	}
}

func testDeleteGoalCascades(t *testing.T, s ports.Store) {
	ctx := context.Background()
	g := newGoal(userA, nil)
	mustCreateGoal(t, s, g)
	c := contribution(g.ID, 1000, base)
	err := s.WithGoal(ctx, g.ID, func(tx ports.GoalTx) error {
		return tx.InsertContribution(ctx, c)
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.DeleteGoal(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGoal: %v", err)
	}
	if _, err := s.GetGoal(ctx, g.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetGoal error = %v", err)
	}
	if _, err := s.GetContribution(ctx, c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetContribution error = %v", err)
	}
}

func testScheduleRoundTrip(t *testing.T, s ports.Store) {
	ctx := context.Background()
	account := core.NewID()
	dow := 1
	want := newSchedule(func(sc *core.Schedule) {
		sc.AccountID = &account
		sc.Frequency = core.Weekly
		sc.Interval = 2
		sc.DayOfMonth = nil
		sc.DayOfWeek = &dow
		sc.EndDate = core.NewDate(2024, 12, 31)
	})
	mustCreateSchedule(t, s, want)

	got, err := s.GetSchedule(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if got.Frequency != core.Weekly || got.Interval != 2 || got.Amount != want.Amount || got.TransactionType != core.Income {
		t.Errorf("schedule = %+v", got)
	}
	if got.DayOfWeek == nil || *got.DayOfWeek != 1 || got.DayOfMonth != nil {
		t.Errorf("day fields = %v/%v", got.DayOfWeek, got.DayOfMonth)
	}
	if got.AccountID == nil || *got.AccountID != account {
		t.Errorf("AccountID = %v", got.AccountID)
	}
	if !got.StartDate.Equal(want.StartDate) || !got.EndDate.Equal(want.EndDate) || !got.LastGeneratedDate.IsEmpty() {
		t.Errorf("dates = %s/%s/%s", got.StartDate, got.EndDate, got.LastGeneratedDate)
	}
	if !got.Active || got.Description != want.Description {
		t.Errorf("Active=%v Description=%q", got.Active, got.Description)
	}

	if _, err := s.GetSchedule(ctx, core.NewID()); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing schedule error = %v", err)
	}
}

func testScheduleActivation(t *testing.T, s ports.Store) {
	ctx := context.Background()
	mine := newSchedule(nil)
	theirs := newSchedule(func(sc *core.Schedule) { sc.UserID = userB })
	mustCreateSchedule(t, s, mine)
	mustCreateSchedule(t, s, theirs)

	if err := s.SetScheduleActive(ctx, theirs.ID, false); err != nil {
		t.Fatalf("SetScheduleActive: %v", err)
	}
	active, err := s.ActiveSchedules(ctx)
	if err != nil {
		t.Fatalf("ActiveSchedules: %v", err)
	}
	if len(active) != 1 || active[0].ID != mine.ID {
		t.Errorf("ActiveSchedules = %d entries", len(active))
	}
	forB, err := s.ActiveSchedulesForUser(ctx, userB)
	if err != nil {
		t.Fatalf("ActiveSchedulesForUser: %v", err)
	}
	if len(forB) != 0 {
		t.Errorf("user B has %d active schedules, want 0", len(forB))
	}
	if err := s.SetScheduleActive(ctx, core.NewID(), true); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing schedule error = %v", err)
	}
}

func testWithScheduleCommits(t *testing.T, s ports.Store) {
	ctx := context.Background()
	sc := newSchedule(nil)
	mustCreateSchedule(t, s, sc)
	occ := core.NewDate(2024, 1, 31)
	txn := generated(sc, occ)
	txn.TagIDs = []ulid.ULID{holiday}

	err := s.WithSchedule(ctx, sc.ID, func(tx ports.ScheduleTx) error {
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		return tx.AdvanceAnchor(ctx, tx.Schedule().LastGeneratedDate, occ)
	})
	if err != nil {
		t.Fatalf("WithSchedule: %v", err)
	}

	got, err := s.GetSchedule(ctx, sc.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if !got.LastGeneratedDate.Equal(occ) {
		t.Errorf("anchor = %s, want %s", got.LastGeneratedDate, occ)
	}
	list, err := s.TransactionsForSchedule(ctx, sc.ID)
	if err != nil {
		t.Fatalf("TransactionsForSchedule: %v", err)
	}
	if len(list) != 1 || !list[0].Date.Equal(occ) || !list[0].Generated() {
		t.Fatalf("transactions = %+v", list)
	}
	if !slices.Equal(list[0].TagIDs, txn.TagIDs) {
		t.Errorf("tags = %v", list[0].TagIDs)
	}
}

func testWithScheduleRollsBack(t *testing.T, s ports.Store) {
	ctx := context.Background()
	sc := newSchedule(nil)
	mustCreateSchedule(t, s, sc)
	occ := core.NewDate(2024, 1, 31)
	boom := errors.New("boom")

	err := s.WithSchedule(ctx, sc.ID, func(tx ports.ScheduleTx) error {
		if err := tx.InsertTransaction(ctx, generated(sc, occ)); err != nil {
			return err
		}
		if err := tx.AdvanceAnchor(ctx, core.Date{}, occ); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	got, _ := s.GetSchedule(ctx, sc.ID)
	if !got.LastGeneratedDate.IsEmpty() {
		t.Errorf("anchor moved to %s after rollback", got.LastGeneratedDate)
	}
	list, _ := s.TransactionsForSchedule(ctx, sc.ID)
	if len(list) != 0 {
		t.Errorf("%d transactions survived rollback", len(list))
	}
}

func testAdvanceAnchorConflict(t *testing.T, s ports.Store) {
	ctx := context.Background()
	sc := newSchedule(func(sc *core.Schedule) { sc.LastGeneratedDate = core.NewDate(2024, 1, 31) })
	mustCreateSchedule(t, s, sc)

	err := s.WithSchedule(ctx, sc.ID, func(tx ports.ScheduleTx) error {
		return tx.AdvanceAnchor(ctx, core.NewDate(2023, 12, 31), core.NewDate(2024, 2, 29))
	})
	if !errors.Is(err, core.ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
	got, _ := s.GetSchedule(ctx, sc.ID)
	if !got.LastGeneratedDate.Equal(sc.LastGeneratedDate) {
		t.Errorf("anchor = %s", got.LastGeneratedDate)
	}
}

func testDuplicateOccurrence(t *testing.T, s ports.Store) {
	ctx := context.Background()
	sc := newSchedule(nil)
	mustCreateSchedule(t, s, sc)
	occ := core.NewDate(2024, 1, 31)

	insert := func() error {
		return s.WithSchedule(ctx, sc.ID, func(tx ports.ScheduleTx) error {
			return tx.InsertTransaction(ctx, generated(sc, occ))
		})
	}
	if err := insert(); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := insert()
	if !errors.Is(err, core.ErrDuplicate) {
		t.Fatalf("second insert error = %v, want ErrDuplicate", err)
	}
	if errors.Is(err, core.ErrConflict) {
		t.Error("duplicate must not be reported as a retryable conflict")
	}
}

func testDeleteScheduleKeepsTransactions(t *testing.T, s ports.Store) {
	ctx := context.Background()
	sc := newSchedule(nil)
	mustCreateSchedule(t, s, sc)
	txn := generated(sc, core.NewDate(2024, 1, 31))
	err := s.WithSchedule(ctx, sc.ID, func(tx ports.ScheduleTx) error {
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.DeleteSchedule(ctx, sc.ID); err != nil {
		t.Fatalf("DeleteSchedule: %v", err)
	}
	got, err := s.GetTransaction(ctx, txn.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.ScheduleID != nil {
		t.Errorf("ScheduleID = %v, want nil", got.ScheduleID)
	}
	if err := s.DeleteSchedule(ctx, sc.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
}

func testTransactions(t *testing.T, s ports.Store) {
	ctx := context.Background()
	txn := core.Transaction{
		ID:         core.NewID(),
		UserID:     userA,
		CategoryID: groceries,
		TagIDs:     []ulid.ULID{holiday},
		Title:      "Weekly shop",
		Amount:     core.Money{Cents: 8450},
		Type:       core.Expense,
		Date:       core.NewDate(2024, 3, 2),
		CreatedAt:  base,
	}
	if err := s.CreateTransaction(ctx, txn); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := s.UpdateTransactionAmount(ctx, txn.ID, core.Money{Cents: 9000}); err != nil {
		t.Fatalf("UpdateTransactionAmount: %v", err)
	}
	got, err := s.GetTransaction(ctx, txn.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Amount.Cents != 9000 || got.Generated() || !got.Date.Equal(txn.Date) || got.Type != core.Expense {
		t.Errorf("transaction = %+v", got)
	}
	if !slices.Equal(got.TagIDs, txn.TagIDs) {
		t.Errorf("tags = %v", got.TagIDs)
	}
	if err := s.DeleteTransaction(ctx, txn.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if _, err := s.GetTransaction(ctx, txn.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetTransaction after delete error = %v", err)
	}
	if err := s.UpdateTransactionAmount(ctx, txn.ID, core.Money{Cents: 1}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("update missing error = %v", err)
	}
}

func testNotifications(t *testing.T, s ports.Store) {
	ctx := context.Background()
	mk := func(id string, user ulid.ULID, at time.Time) core.Notification {
		return core.Notification{
			ID:        id,
			UserID:    user,
			Kind:      core.NotifyGoalMilestone,
			Source:    core.GoalRef(core.NewID()),
			Title:     "Milestone",
			Body:      "50% reached",
			Metadata:  map[string]string{"milestone": "50"},
			CreatedAt: at,
		}
	}
	first := mk("evt-1", userA, base)
	second := mk("evt-2", userA, base.Add(time.Minute))
	third := mk("evt-3", userA, base.Add(2*time.Minute))
	other := mk("evt-4", userB, base)

	for _, n := range []core.Notification{first, second, third, other} {
		created, err := s.SaveNotification(ctx, n)
		if err != nil || !created {
			t.Fatalf("SaveNotification(%s) = %v, %v", n.ID, created, err)
		}
	}
	created, err := s.SaveNotification(ctx, first)
	if err != nil || created {
		t.Errorf("redelivery = %v, %v; want false, nil", created, err)
	}

	got, err := s.NotificationsForUser(ctx, userA, 2)
	if err != nil {
		t.Fatalf("NotificationsForUser: %v", err)
	}
	if len(got) != 2 || got[0].ID != "evt-3" || got[1].ID != "evt-2" {
		t.Fatalf("got %d notifications, want evt-3, evt-2", len(got))
	}
	if got[0].Metadata["milestone"] != "50" || got[0].Source.Kind != core.SourceGoal || got[0].ReadAt != nil {
		t.Errorf("notification = %+v", got[0])
	}

	all, err := s.NotificationsForUser(ctx, userA, 0)
	if err != nil {
		t.Fatalf("NotificationsForUser: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("unlimited list = %d, want 3", len(all))
	}
}

func testNotificationPreferences(t *testing.T, s ports.Store) {
	ctx := context.Background()
	if _, err := s.NotificationPreference(ctx, userA, core.NotifyGoalMilestone); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing preference error = %v, want ErrNotFound", err)
	}

	save := func(p core.NotificationPreference) {
		t.Helper()
		if err := s.SaveNotificationPreference(ctx, p); err != nil {
			t.Fatalf("SaveNotificationPreference(%s): %v", p.Kind, err)
		}
	}
	save(core.NotificationPreference{UserID: userA, Kind: core.NotifyGoalMilestone, Enabled: true, Threshold: 10, UpdatedAt: base})
	save(core.NotificationPreference{UserID: userA, Kind: core.NotifyRecurringUpcoming, Enabled: true, Threshold: 5, UpdatedAt: base})
	save(core.NotificationPreference{UserID: userB, Kind: core.NotifyGoalMilestone, Enabled: true, UpdatedAt: base})
	// Saving the same (user, kind) again replaces the row.
	save(core.NotificationPreference{UserID: userA, Kind: core.NotifyGoalMilestone, Enabled: false, Threshold: 20, UpdatedAt: base.Add(time.Hour)})

	got, err := s.NotificationPreference(ctx, userA, core.NotifyGoalMilestone)
	if err != nil {
		t.Fatalf("NotificationPreference: %v", err)
	}
	if got.Enabled || got.Threshold != 20 || got.UserID != userA {
		t.Errorf("preference = %+v, want disabled with threshold 20", got)
	}
	if !got.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("UpdatedAt = %v", got.UpdatedAt)
	}

	list, err := s.NotificationPreferences(ctx, userA)
	if err != nil {
		t.Fatalf("NotificationPreferences: %v", err)
	}
	if len(list) != 2 || list[0].Kind != core.NotifyGoalMilestone || list[1].Kind != core.NotifyRecurringUpcoming {
		t.Errorf("preferences = %+v", list)
	}
}
