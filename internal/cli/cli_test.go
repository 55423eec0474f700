package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"finledger/internal/calendar"
	"finledger/internal/config"
	"finledger/internal/core"
	"finledger/internal/notify"
	"finledger/internal/services"
	"finledger/internal/storage/memory"
)

var (
	testUser   = ulid.MustParse("01HZ0000000000000000000AAA")
	otherUser  = ulid.MustParse("01HZ0000000000000000000BBB")
	rentCat    = ulid.MustParse("01HZ00000000000000000CAT01")
	testConfig = &config.Config{
		LedgerMaxRetries:      3,
		MilestoneStep:         25,
		CatchUpMaxOccurrences: 100,
		CatchUpConcurrency:    2,
	}
)

type testCLI struct {
	svc      *Services
	store    *memory.Store
	events   *notify.Recorder
	releases int
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	c := &testCLI{store: memory.New(), events: &notify.Recorder{}}
	clock := calendar.FixedClock{T: time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)}
	c.svc = NewServices(c.store, testConfig, clock, c.events, nil)
	return c
}

func (c *testCLI) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(func(context.Context) (*Services, func(), error) {
		return c.svc, func() { c.releases++ }, nil
	})
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func (c *testCLI) schedule(t *testing.T, start core.Date) core.Schedule {
	t.Helper()
	day := start.Day()
	s, err := c.svc.Recurring.CreateSchedule(context.Background(), core.ScheduleRequest{
		UserID:          testUser,
		CategoryID:      rentCat,
		Title:           "Rent",
		AmountCents:     90000,
		TransactionType: core.Expense,
		Frequency:       core.Monthly,
		Interval:        1,
		StartDate:       start,
		DayOfMonth:      &day,
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	return s
}

func TestCatchUpCommand(t *testing.T) {
	c := newTestCLI(t)
	c.schedule(t, core.NewDate(2024, 1, 31))

	out, err := c.run(t, "catchup")
	if err != nil {
		t.Fatalf("catchup: %v", err)
	}
	if !strings.Contains(out, "1 schedules, 4 generated, 0 failed") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = c.run(t, "catchup", "--as-of", "2024-05-15")
	if err != nil {
		t.Fatalf("second catchup: %v", err)
	}
	if !strings.Contains(out, "0 generated") {
		t.Errorf("second run should be a no-op, got %q", out)
	}
}

func TestGenerateCommand(t *testing.T) {
	c := newTestCLI(t)
	s := c.schedule(t, core.NewDate(2024, 1, 31))

	out, err := c.run(t, "generate", s.ID.String())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(out, "2024-01-31") {
		t.Errorf("expected first occurrence, got %q", out)
	}

	out, err = c.run(t, "generate", s.ID.String(), "--pending", "--as-of", "2024-03-31")
	if err != nil {
		t.Fatalf("generate --pending: %v", err)
	}
	if !strings.Contains(out, "2 generated") {
		t.Errorf("expected two pending occurrences, got %q", out)
	}

	txs, _ := c.store.TransactionsForSchedule(context.Background(), s.ID)
	if len(txs) != 3 {
		t.Errorf("stored %d transactions, want 3", len(txs))
	}
}

func TestGenerateCommandErrors(t *testing.T) {
	c := newTestCLI(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"bad id", []string{"generate", "nope"}, 2},
		{"bad occurrence", []string{"generate", "01HZ0000000000000000000CCC", "--occurrence", "31/01/2024"}, 2},
		{"unknown schedule", []string{"generate", "01HZ0000000000000000000CCC"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.run(t, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := ExitCode(err); got != tt.code {
				t.Errorf("ExitCode(%v) = %d, want %d", err, got, tt.code)
			}
		})
	}
	if c.releases != len(tests) {
		t.Errorf("services released %d times, want %d", c.releases, len(tests))
	}
}

func TestScheduleCommands(t *testing.T) {
	c := newTestCLI(t)
	s := c.schedule(t, core.NewDate(2024, 6, 1))
	id := s.ID.String()

	if _, err := c.run(t, "schedule", "pause", id); err != nil {
		t.Fatalf("pause: %v", err)
	}
	out, err := c.run(t, "schedule", "show", id)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "active: false") || !strings.Contains(out, "next occurrence: 2024-06-01") {
		t.Errorf("unexpected show output %q", out)
	}

	if _, err := c.run(t, "schedule", "resume", id); err != nil {
		t.Fatalf("resume: %v", err)
	}
	got, _ := c.store.GetSchedule(context.Background(), s.ID)
	if !got.Active {
		t.Error("schedule still inactive after resume")
	}
}

func TestRemindersCommand(t *testing.T) {
	c := newTestCLI(t)
	c.schedule(t, core.NewDate(2024, 5, 18))

	out, err := c.run(t, "reminders", "--days", "3")
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if !strings.Contains(out, "Rent due 2024-05-18") {
		t.Errorf("unexpected output %q", out)
	}
	if n := len(c.events.OfKind(core.NotifyRecurringUpcoming)); n != 1 {
		t.Errorf("upcoming events = %d, want 1", n)
	}
}

func TestProgressAndRecalcCommands(t *testing.T) {
	c := newTestCLI(t)
	ctx := context.Background()
	g, err := c.svc.Ledger.CreateGoal(ctx, core.GoalRequest{
		UserID:      testUser,
		Title:       "Bike",
		Type:        core.GoalSavings,
		TargetCents: 100000,
	})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if _, err := c.svc.Ledger.AddContribution(ctx, services.ContributionInput{
		GoalID: g.ID,
		Amount: core.Money{Cents: 25000},
	}); err != nil {
		t.Fatalf("AddContribution: %v", err)
	}

	out, err := c.run(t, "progress", g.ID.String())
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !strings.Contains(out, "250.00 of 1000.00 (25.00%)") {
		t.Errorf("unexpected progress output %q", out)
	}

	out, err = c.run(t, "recalc", "--all")
	if err != nil {
		t.Fatalf("recalc --all: %v", err)
	}
	if !strings.Contains(out, "1 goals checked, 0 corrected") {
		t.Errorf("unexpected recalc output %q", out)
	}

	if _, err := c.run(t, "recalc"); err == nil {
		t.Error("recalc without a goal id or --all should fail")
	}
}

func TestNotificationsCommand(t *testing.T) {
	c := newTestCLI(t)
	ctx := context.Background()
	_, err := c.store.SaveNotification(ctx, core.Notification{
		ID:        "evt-1",
		UserID:    testUser,
		Kind:      core.NotifyGoalCompleted,
		Source:    core.SourceRef{Kind: core.SourceGoal, ID: "01HZ0000000000000000000G01"},
		Title:     "Goal reached: Bike",
		CreatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SaveNotification: %v", err)
	}

	out, err := c.run(t, "notifications", testUser.String())
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if !strings.Contains(out, "Goal reached: Bike") {
		t.Errorf("missing notification in %q", out)
	}

	out, _ = c.run(t, "notifications", otherUser.String())
	if !strings.Contains(out, "no notifications") {
		t.Errorf("other user should have none, got %q", out)
	}
}

func TestLoaderFailure(t *testing.T) {
	root := NewRootCommand(func(context.Context) (*Services, func(), error) {
		return nil, nil, errors.New("database is locked")
	})
	root.SetArgs([]string{"catchup"})
	root.SetOut(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "open ledger") {
		t.Errorf("expected wrapped loader error, got %v", err)
	}
}

func TestPreferencesCommands(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run(t, "preferences", "set", testUser.String(), string(core.NotifyRecurringUpcoming), "--threshold", "5")
	if err != nil {
		t.Fatalf("preferences set: %v", err)
	}
	if !strings.Contains(out, "threshold=5") {
		t.Errorf("set output = %q", out)
	}
	if _, err := c.run(t, "preferences", "set", testUser.String(), string(core.NotifyGoalMilestone), "--off"); err != nil {
		t.Fatalf("preferences set --off: %v", err)
	}

	out, err = c.run(t, "preferences", "list", testUser.String())
	if err != nil {
		t.Fatalf("preferences list: %v", err)
	}
	for _, want := range []string{
		"recurring_transaction_upcoming   enabled=true threshold=5",
		"goal_milestone                   enabled=false threshold=default",
		"goal_completed                   enabled=true threshold=default",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	_, err = c.run(t, "preferences", "set", testUser.String(), "budget_alert")
	if ExitCode(err) != 2 {
		t.Errorf("unknown kind exit code = %d (err %v), want 2", ExitCode(err), err)
	}
}
