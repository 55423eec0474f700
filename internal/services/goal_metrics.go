package services

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"finledger/internal/calendar"
	"finledger/internal/core"
)

// onTrackWindowMonths is the trailing window used to estimate the actual
// monthly contribution rate.
const onTrackWindowMonths = 3

// Progress is a read-only snapshot of a goal's derived figures.
type Progress struct {
	Goal            core.Goal
	Percentage      decimal.Decimal
	Remaining       core.Money
	MonthsRemaining int
	RequiredMonthly core.Money
	AverageMonthly  core.Money
	OnTrack         bool
}

// ProgressPercentage is current/target*100 rounded to two places and capped
// at 100. The stored amount itself is never capped.
func ProgressPercentage(g core.Goal) decimal.Decimal {
	p := core.Percent(g.CurrentAmount, g.TargetAmount)
	hundred := decimal.NewFromInt(100)
	if p.GreaterThan(hundred) {
		return hundred
	}
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

func AmountRemaining(g core.Goal) core.Money {
	rem := g.TargetAmount.Sub(g.CurrentAmount)
	if rem.Cents < 0 {
		return core.Money{}
	}
	return rem
}

// MonthsRemaining counts calendar months from today to the target date. It
// is zero without a target date.
func MonthsRemaining(g core.Goal, today core.Date) int {
	if g.TargetDate.IsEmpty() {
		return 0
	}
	return calendar.MonthsBetween(today, g.TargetDate)
}

// RequiredMonthlyContribution spreads the remaining amount over the months
// left, rounded to the cent. Complete goals, goals without a target date and
// goals at or past their target month need nothing.
func RequiredMonthlyContribution(g core.Goal, today core.Date) core.Money {
	if g.IsComplete() {
		return core.Money{}
	}
	months := MonthsRemaining(g, today)
	if months <= 0 {
		return core.Money{}
	}
	return AmountRemaining(g).DivideRound(int64(months))
}

// averageMonthly sums contributions and divides by the window length.
func averageMonthly(recent []core.Contribution) decimal.Decimal {
	var sum int64
	for _, c := range recent {
		sum += c.Amount.Cents
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(onTrackWindowMonths))
}

// onTrack compares the trailing average against the required rate. recent
// must hold the contributions of the trailing window only.
func onTrack(g core.Goal, today core.Date, recent []core.Contribution) bool {
	if g.IsComplete() {
		return true
	}
	months := MonthsRemaining(g, today)
	if months <= 0 || len(recent) == 0 {
		return false
	}
	required := decimal.NewFromInt(AmountRemaining(g).Cents).Div(decimal.NewFromInt(int64(months)))
	return averageMonthly(recent).GreaterThanOrEqual(required)
}

// OnTrack reports whether recent contributions keep the goal on pace for its
// target date.
func (l *GoalLedger) OnTrack(ctx context.Context, goalID ulid.ULID) (bool, error) {
	p, err := l.Progress(ctx, goalID)
	if err != nil {
		return false, err
	}
	return p.OnTrack, nil
}

// Progress loads the goal and computes all derived figures at once.
func (l *GoalLedger) Progress(ctx context.Context, goalID ulid.ULID) (Progress, error) {
	g, err := l.store.GetGoal(ctx, goalID)
	if err != nil {
		return Progress{}, err
	}
	now := l.clock.Now()
	today := calendar.Today(l.clock)
	recent, err := l.store.ContributionsSince(ctx, goalID, now.AddDate(0, -onTrackWindowMonths, 0))
	if err != nil {
		return Progress{}, fmt.Errorf("recent contributions: %w", err)
	}
	avg := averageMonthly(recent).Round(0)
	return Progress{
		Goal:            g,
		Percentage:      ProgressPercentage(g),
		Remaining:       AmountRemaining(g),
		MonthsRemaining: MonthsRemaining(g, today),
		RequiredMonthly: RequiredMonthlyContribution(g, today),
		AverageMonthly:  core.Money{Cents: avg.IntPart()},
		OnTrack:         onTrack(g, today, recent),
	}, nil
}
