package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"finledger/internal/calendar"
	"finledger/internal/core"
	"finledger/internal/notify"
	"finledger/internal/storage/memory"
)

// testClock is a settable clock shared by every service in a harness.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type harness struct {
	store     *memory.Store
	events    *notify.Recorder
	clock     *testClock
	ledger    *GoalLedger
	matcher   *Matcher
	processor *RecurringProcessor
	hooks     *TransactionHooks
	prefs     *Preferences
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  memory.New(),
		events: &notify.Recorder{},
		clock:  &testClock{t: time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)},
	}
	opts := Options{
		Clock:  h.clock,
		Events: h.events,
		Retry:  RetryPolicy{MaxAttempts: 3, BaseDelay: time.Microsecond, MaxDelay: time.Millisecond},
	}
	opts.Preferences = h.store
	h.ledger = NewGoalLedger(h.store, opts)
	h.matcher = NewMatcher(h.store, h.ledger, opts)
	h.processor = NewRecurringProcessor(h.store, h.matcher, opts)
	h.hooks = NewTransactionHooks(h.store, h.ledger, h.matcher)
	h.prefs = NewPreferences(h.store, opts)
	return h
}

func (h *harness) today() core.Date { return calendar.Today(h.clock) }

func (h *harness) createGoal(t *testing.T, mutate func(*core.GoalRequest)) core.Goal {
	t.Helper()
	req := core.GoalRequest{
		UserID:      testUser,
		Title:       "House deposit",
		Type:        core.GoalSavings,
		TargetCents: 100000,
	}
	if mutate != nil {
		mutate(&req)
	}
	g, err := h.ledger.CreateGoal(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	return g
}

func (h *harness) createSchedule(t *testing.T, mutate func(*core.ScheduleRequest)) core.Schedule {
	t.Helper()
	req := core.ScheduleRequest{
		UserID:          testUser,
		CategoryID:      salaryCategory,
		Title:           "Salary",
		AmountCents:     250000,
		TransactionType: core.Income,
		Frequency:       core.Monthly,
		Interval:        1,
		StartDate:       core.NewDate(2024, 1, 31),
	}
	if mutate != nil {
		mutate(&req)
	}
	s, err := h.processor.CreateSchedule(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	return s
}

func (h *harness) goal(t *testing.T, id ulid.ULID) core.Goal {
	t.Helper()
	g, err := h.store.GetGoal(context.Background(), id)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	return g
}

func (h *harness) add(t *testing.T, goalID ulid.ULID, cents int64) core.Contribution {
	t.Helper()
	c, err := h.ledger.AddContribution(context.Background(), ContributionInput{GoalID: goalID, Amount: core.Money{Cents: cents}})
	if err != nil {
		t.Fatalf("AddContribution(%d): %v", cents, err)
	}
	return c
}

var (
	testUser       = core.NewID()
	salaryCategory = core.NewID()
	loanCategory   = core.NewID()
)

func datesOf(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.Date.String()
	}
	return out
}
