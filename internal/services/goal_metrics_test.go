package services

import (
	"context"
	"testing"
	"time"

	"finledger/internal/core"
)

func TestProgressPercentage(t *testing.T) {
	cases := []struct {
		current, target int64
		want            string
	}{
		{0, 1000, "0"},
		{250, 1000, "25"},
		{1, 3, "33.33"},
		{2, 3, "66.67"},
		{1500, 1000, "100"},
		{-50, 1000, "0"},
	}
	for _, tc := range cases {
		g := core.Goal{CurrentAmount: core.Money{Cents: tc.current}, TargetAmount: core.Money{Cents: tc.target}}
		if got := ProgressPercentage(g).String(); got != tc.want {
			t.Errorf("ProgressPercentage(%d/%d) = %s, want %s", tc.current, tc.target, got, tc.want)
		}
	}
}

func TestRequiredMonthlyContribution(t *testing.T) {
	today := core.NewDate(2024, 5, 15)
	cases := []struct {
		name string
		goal core.Goal
		want int64
	}{
		{
			name: "spread over months left",
			goal: core.Goal{Status: core.GoalActive, TargetAmount: core.Money{Cents: 100000}, CurrentAmount: core.Money{Cents: 40000}, TargetDate: core.NewDate(2024, 11, 15)},
			want: 10000,
		},
		{
			name: "rounded to the cent",
			goal: core.Goal{Status: core.GoalActive, TargetAmount: core.Money{Cents: 10000}, TargetDate: core.NewDate(2024, 8, 1)},
			want: 3333,
		},
		{
			name: "no target date",
			goal: core.Goal{Status: core.GoalActive, TargetAmount: core.Money{Cents: 10000}},
			want: 0,
		},
		{
			name: "target month reached",
			goal: core.Goal{Status: core.GoalActive, TargetAmount: core.Money{Cents: 10000}, TargetDate: core.NewDate(2024, 5, 31)},
			want: 0,
		},
		{
			name: "complete",
			goal: core.Goal{Status: core.GoalComplete, TargetAmount: core.Money{Cents: 10000}, CurrentAmount: core.Money{Cents: 10000}, TargetDate: core.NewDate(2025, 1, 1)},
			want: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RequiredMonthlyContribution(tc.goal, today); got.Cents != tc.want {
				t.Errorf("RequiredMonthlyContribution = %d, want %d", got.Cents, tc.want)
			}
		})
	}
}

func TestAmountRemainingNeverNegative(t *testing.T) {
	g := core.Goal{TargetAmount: core.Money{Cents: 100}, CurrentAmount: core.Money{Cents: 250}}
	if got := AmountRemaining(g); got.Cents != 0 {
		t.Errorf("AmountRemaining = %d, want 0", got.Cents)
	}
}

func TestOnTrack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	g := h.createGoal(t, func(r *core.GoalRequest) { r.TargetDate = core.NewDate(2024, 11, 15) })

	now := h.clock.Now()
	h.clock.Set(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	h.add(t, g.ID, 50000) // outside the trailing window
	h.clock.Set(now)

	on, err := h.ledger.OnTrack(ctx, g.ID)
	if err != nil {
		t.Fatalf("OnTrack: %v", err)
	}
	if on {
		t.Error("goal without recent contributions should not be on track")
	}

	// 35000 left over 6 months needs 5833.33 a month; 15000 over 3 months is 5000.
	h.add(t, g.ID, 15000)
	p, err := h.ledger.Progress(ctx, g.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.OnTrack {
		t.Errorf("average %d against required %d should be behind", p.AverageMonthly.Cents, p.RequiredMonthly.Cents)
	}

	h.add(t, g.ID, 2000)
	if on, _ := h.ledger.OnTrack(ctx, g.ID); !on {
		t.Error("average 5666.67 against required 5500 should be on track")
	}
}

func TestOnTrackCompleteGoal(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal(t, nil)
	h.add(t, g.ID, 100000)
	if on, err := h.ledger.OnTrack(context.Background(), g.ID); err != nil || !on {
		t.Errorf("complete goal on track = %v err = %v", on, err)
	}
}
