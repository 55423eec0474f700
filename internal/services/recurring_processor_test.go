package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"finledger/internal/calendar"
	"finledger/internal/core"
	"finledger/internal/storage/memory"
)

func intPtr(v int) *int { return &v }

func TestGenerateAllPendingCatchesUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, func(r *core.ScheduleRequest) { r.DayOfMonth = intPtr(31) })

	got, err := h.processor.GenerateAllPending(ctx, s.ID, core.NewDate(2024, 5, 15))
	if err != nil {
		t.Fatalf("GenerateAllPending: %v", err)
	}
	want := []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"}
	if !slices.Equal(datesOf(got), want) {
		t.Fatalf("dates = %v, want %v", datesOf(got), want)
	}

	stored, _ := h.store.GetSchedule(ctx, s.ID)
	if stored.LastGeneratedDate.String() != "2024-04-30" {
		t.Errorf("anchor = %s, want 2024-04-30", stored.LastGeneratedDate)
	}
	for _, tx := range got {
		if tx.ScheduleID == nil || *tx.ScheduleID != s.ID || tx.Amount != s.Amount || tx.Type != core.Income {
			t.Errorf("generated transaction %+v does not carry the schedule template", tx)
		}
	}
	if n := len(h.events.OfKind(core.NotifyRecurringGenerated)); n != 4 {
		t.Errorf("generated events = %d, want 4", n)
	}

	again, err := h.processor.GenerateAllPending(ctx, s.ID, core.NewDate(2024, 5, 15))
	if err != nil || len(again) != 0 {
		t.Errorf("second run generated %v, err = %v", datesOf(again), err)
	}
	all, _ := h.store.TransactionsForSchedule(ctx, s.ID)
	if len(all) != 4 {
		t.Errorf("stored transactions = %d, want 4", len(all))
	}
}

func TestGenerateAllPendingResumesAfterFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, func(r *core.ScheduleRequest) { r.DayOfMonth = intPtr(31) })
	asOf := core.NewDate(2024, 3, 31)

	failOn := core.NewDate(2024, 2, 29)
	h.store.SetHooks(memory.Hooks{BeforeInsertTransaction: func(tx core.Transaction) error {
		if tx.Date.Equal(failOn) {
			return errors.New("disk unplugged")
		}
		return nil
	}})

	got, err := h.processor.GenerateAllPending(ctx, s.ID, asOf)
	if !errors.Is(err, core.ErrGenerationFailed) {
		t.Fatalf("err = %v, want generation failure", err)
	}
	if !slices.Equal(datesOf(got), []string{"2024-01-31"}) {
		t.Fatalf("before failure = %v", datesOf(got))
	}
	stored, _ := h.store.GetSchedule(ctx, s.ID)
	if stored.LastGeneratedDate.String() != "2024-01-31" {
		t.Fatalf("anchor = %s, want 2024-01-31", stored.LastGeneratedDate)
	}

	h.store.SetHooks(memory.Hooks{})
	got, err = h.processor.GenerateAllPending(ctx, s.ID, asOf)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if want := []string{"2024-02-29", "2024-03-31"}; !slices.Equal(datesOf(got), want) {
		t.Fatalf("resumed = %v, want %v", datesOf(got), want)
	}
	all, _ := h.store.TransactionsForSchedule(ctx, s.ID)
	if want := []string{"2024-01-31", "2024-02-29", "2024-03-31"}; !slices.Equal(datesOf(all), want) {
		t.Errorf("stored = %v, want %v", datesOf(all), want)
	}
}

func TestGenerateAllPendingFollowsAnchorWithoutDayOfMonth(t *testing.T) {
	tests := []struct {
		name  string
		freq  core.Frequency
		start core.Date
		asOf  core.Date
		want  []string
	}{
		{"monthly from the 31st", core.Monthly, core.NewDate(2024, 3, 31), core.NewDate(2024, 5, 31),
			[]string{"2024-03-31", "2024-04-30", "2024-05-30"}},
		{"yearly from a leap day", core.Yearly, core.NewDate(2020, 2, 29), core.NewDate(2024, 3, 1),
			[]string{"2020-02-29", "2021-02-28", "2022-02-28", "2023-02-28", "2024-02-28"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			s := h.createSchedule(t, func(r *core.ScheduleRequest) {
				r.Frequency = tt.freq
				r.StartDate = tt.start
			})

			got, err := h.processor.GenerateAllPending(ctx, s.ID, tt.asOf)
			if err != nil {
				t.Fatalf("GenerateAllPending: %v", err)
			}
			if !slices.Equal(datesOf(got), tt.want) {
				t.Fatalf("dates = %v, want %v", datesOf(got), tt.want)
			}

			stored, _ := h.store.GetSchedule(ctx, s.ID)
			next, err := NextOccurrence(stored)
			if err != nil {
				t.Fatal(err)
			}
			want, _ := calendar.NextOccurrence(stored.LastGeneratedDate, stored.Frequency, stored.Interval, nil, nil)
			if !next.Equal(want) {
				t.Errorf("engine next = %s, calendar next = %s", next, want)
			}
		})
	}
}

func TestGenerateAllPendingStopsAtEndDate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, func(r *core.ScheduleRequest) {
		r.Frequency = core.Weekly
		r.StartDate = core.NewDate(2024, 3, 1)
		r.EndDate = core.NewDate(2024, 3, 20)
		r.DayOfWeek = intPtr(3)
	})

	got, err := h.processor.GenerateAllPending(ctx, s.ID, core.NewDate(2024, 5, 15))
	if err != nil {
		t.Fatalf("GenerateAllPending: %v", err)
	}
	if want := []string{"2024-03-06", "2024-03-13", "2024-03-20"}; !slices.Equal(datesOf(got), want) {
		t.Errorf("dates = %v, want %v", datesOf(got), want)
	}
	stored, _ := h.store.GetSchedule(ctx, s.ID)
	if State(stored, core.NewDate(2024, 5, 15)) != StateExhausted {
		t.Error("schedule past its end date should be exhausted")
	}
}

func TestCatchUpFillsEndedScheduleThatShouldGenerateRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, func(r *core.ScheduleRequest) {
		r.StartDate = core.NewDate(2024, 1, 10)
		r.EndDate = core.NewDate(2024, 3, 10)
	})
	asOf := core.NewDate(2024, 5, 15)

	if due, err := ShouldGenerate(s, asOf); err != nil || due {
		t.Fatalf("ShouldGenerate = %v, %v; want false past the end date", due, err)
	}
	got, err := h.processor.GenerateAllPending(ctx, s.ID, asOf)
	if err != nil {
		t.Fatalf("GenerateAllPending: %v", err)
	}
	if want := []string{"2024-01-10", "2024-02-10", "2024-03-10"}; !slices.Equal(datesOf(got), want) {
		t.Errorf("dates = %v, want %v", datesOf(got), want)
	}
}

func TestGenerateAllPendingHonoursOccurrenceCap(t *testing.T) {
	h := newHarness(t)
	p := NewRecurringProcessor(h.store, nil, Options{Clock: h.clock, MaxOccurrences: 10})
	s := h.createSchedule(t, func(r *core.ScheduleRequest) {
		r.Frequency = core.Daily
		r.StartDate = core.NewDate(2024, 1, 1)
	})

	got, err := p.GenerateAllPending(context.Background(), s.ID, core.NewDate(2024, 5, 15))
	if err != nil {
		t.Fatalf("GenerateAllPending: %v", err)
	}
	if len(got) != 10 || got[9].Date.String() != "2024-01-10" {
		t.Errorf("generated %v, want ten days", datesOf(got))
	}
}

func TestGenerateAllPendingIsExactlyOnceUnderConcurrency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, func(r *core.ScheduleRequest) {
		r.Frequency = core.Daily
		r.StartDate = core.NewDate(2024, 5, 1)
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.processor.GenerateAllPending(ctx, s.ID, core.NewDate(2024, 5, 15)); err != nil {
				t.Errorf("GenerateAllPending: %v", err)
			}
		}()
	}
	wg.Wait()

	all, _ := h.store.TransactionsForSchedule(ctx, s.ID)
	if len(all) != 15 {
		t.Errorf("transactions = %d, want 15", len(all))
	}
}

func TestGenerateOne(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, nil)

	first, err := h.processor.GenerateOne(ctx, s.ID, nil)
	if err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}
	if first.Date.String() != "2024-01-31" {
		t.Errorf("first = %s, want start date", first.Date)
	}

	_, err = h.processor.GenerateOne(ctx, s.ID, &first.Date)
	if !errors.Is(err, core.ErrDuplicate) || !errors.Is(err, core.ErrGenerationFailed) {
		t.Errorf("duplicate occurrence err = %v", err)
	}

	before := core.NewDate(2023, 12, 31)
	if _, err := h.processor.GenerateOne(ctx, s.ID, &before); !errors.Is(err, core.ErrValidation) {
		t.Errorf("occurrence before start err = %v, want validation", err)
	}

	if err := h.processor.Deactivate(ctx, s.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := h.processor.GenerateOne(ctx, s.ID, nil); !errors.Is(err, core.ErrValidation) {
		t.Errorf("inactive schedule err = %v, want validation", err)
	}
	got, err := h.processor.GenerateAllPending(ctx, s.ID, core.NewDate(2024, 5, 15))
	if err != nil || len(got) != 0 {
		t.Errorf("inactive catch-up = %v, %v", datesOf(got), err)
	}

	if err := h.processor.Reactivate(ctx, s.ID); err != nil {
		t.Fatalf("Reactivate: %v", err)
	}
	next, err := h.processor.GenerateOne(ctx, s.ID, nil)
	if err != nil || next.Date.String() != "2024-02-29" {
		t.Errorf("after reactivate = %s, %v", next.Date, err)
	}

	if _, err := h.processor.GenerateOne(ctx, core.NewID(), nil); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown schedule err = %v", err)
	}
}

func TestExplicitBackfillKeepsAnchor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, func(r *core.ScheduleRequest) { r.DayOfMonth = intPtr(31) })
	if _, err := h.processor.GenerateAllPending(ctx, s.ID, core.NewDate(2024, 3, 31)); err != nil {
		t.Fatalf("GenerateAllPending: %v", err)
	}

	extra := core.NewDate(2024, 2, 15)
	if _, err := h.processor.GenerateOne(ctx, s.ID, &extra); err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}
	stored, _ := h.store.GetSchedule(ctx, s.ID)
	if stored.LastGeneratedDate.String() != "2024-03-31" {
		t.Errorf("anchor moved back to %s", stored.LastGeneratedDate)
	}
}

func TestGeneratedTransactionsFeedGoals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	g := h.createGoal(t, func(r *core.GoalRequest) {
		r.AutoTrack = true
		r.TrackingMethod = core.TrackByCategory
		r.CategoryIDs = append(r.CategoryIDs, salaryCategory)
		r.TargetCents = 1000000
	})
	s := h.createSchedule(t, nil)

	if _, err := h.processor.GenerateAllPending(ctx, s.ID, core.NewDate(2024, 2, 29)); err != nil {
		t.Fatalf("GenerateAllPending: %v", err)
	}
	if cur := h.goal(t, g.ID).CurrentAmount.Cents; cur != 500000 {
		t.Errorf("current = %d, want two salaries", cur)
	}
	contribs, _ := h.store.ContributionsSince(ctx, g.ID, h.clock.Now().AddDate(-1, 0, 0))
	for _, c := range contribs {
		if c.Type != core.ContributionRecurring || c.TransactionID == nil {
			t.Errorf("contribution %+v should be recurring and linked", c)
		}
	}
}

func TestRunCatchUpIsolatesFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	good := h.createSchedule(t, nil)
	bad := h.createSchedule(t, func(r *core.ScheduleRequest) { r.Title = "Broken" })
	h.store.SetHooks(memory.Hooks{BeforeInsertTransaction: func(tx core.Transaction) error {
		if *tx.ScheduleID == bad.ID {
			return errors.New("constraint violated")
		}
		return nil
	}})

	report, err := h.processor.RunCatchUp(ctx, core.NewDate(2024, 3, 31))
	if err == nil {
		t.Fatal("RunCatchUp should report the failing schedule")
	}
	if report.Schedules != 2 || report.Generated != 3 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
	all, _ := h.store.TransactionsForSchedule(ctx, good.ID)
	if len(all) != 3 {
		t.Errorf("good schedule transactions = %d, want 3", len(all))
	}
}

func TestShouldGenerate(t *testing.T) {
	s := core.Schedule{
		Frequency: core.Monthly,
		Interval:  1,
		StartDate: core.NewDate(2024, 1, 15),
		Active:    true,
	}
	cases := []struct {
		name   string
		mutate func(*core.Schedule)
		asOf   core.Date
		want   bool
	}{
		{"first occurrence due", nil, core.NewDate(2024, 1, 15), true},
		{"before start", nil, core.NewDate(2024, 1, 14), false},
		{"next not yet due", func(s *core.Schedule) { s.LastGeneratedDate = core.NewDate(2024, 1, 15) }, core.NewDate(2024, 2, 14), false},
		{"next due", func(s *core.Schedule) { s.LastGeneratedDate = core.NewDate(2024, 1, 15) }, core.NewDate(2024, 2, 15), true},
		{"inactive", func(s *core.Schedule) { s.Active = false }, core.NewDate(2024, 6, 1), false},
		{"past end date", func(s *core.Schedule) { s.EndDate = core.NewDate(2024, 3, 1) }, core.NewDate(2024, 3, 2), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := s
			if tc.mutate != nil {
				tc.mutate(&sc)
			}
			got, err := ShouldGenerate(sc, tc.asOf)
			if err != nil {
				t.Fatalf("ShouldGenerate: %v", err)
			}
			if got != tc.want {
				t.Errorf("ShouldGenerate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUpcomingReminders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, func(r *core.ScheduleRequest) { r.StartDate = core.NewDate(2024, 5, 18) })
	h.createSchedule(t, func(r *core.ScheduleRequest) { r.StartDate = core.NewDate(2024, 5, 25) })

	got, err := h.processor.UpcomingReminders(ctx, h.today(), 3)
	if err != nil {
		t.Fatalf("UpcomingReminders: %v", err)
	}
	if len(got) != 1 || got[0].Schedule.ID != s.ID || got[0].DueDate.String() != "2024-05-18" {
		t.Fatalf("reminders = %+v", got)
	}
	events := h.events.OfKind(core.NotifyRecurringUpcoming)
	if len(events) != 1 || events[0].Source != core.ScheduleRef(s.ID) || events[0].Metadata["days_until"] != "3" {
		t.Errorf("events = %+v", events)
	}
}

func TestDeleteScheduleKeepsTransactions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.createSchedule(t, nil)
	got, err := h.processor.GenerateAllPending(ctx, s.ID, core.NewDate(2024, 2, 29))
	if err != nil || len(got) != 2 {
		t.Fatalf("GenerateAllPending = %v, %v", datesOf(got), err)
	}
	if err := h.store.DeleteSchedule(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSchedule: %v", err)
	}
	tx, err := h.store.GetTransaction(ctx, got[0].ID)
	if err != nil {
		t.Fatalf("generated transaction lost: %v", err)
	}
	if tx.ScheduleID != nil {
		t.Errorf("schedule reference should be cleared, got %s", tx.ScheduleID)
	}
}
