package calendar

import (
	"fmt"

	"finledger/internal/core"
)

// Rule carries the frequency-specific adjustments of a schedule.
// DayOfWeek uses 0 = Sunday.
type Rule struct {
	DayOfWeek  *int
	DayOfMonth *int
}

// Stepper advances a date by a number of periods of one frequency.
// Each frequency has its own implementation.
type Stepper interface {
	// Next returns from + interval periods, adjusted by rule.
	Next(from core.Date, interval int, rule Rule) core.Date
	// Back moves d back by interval periods with no adjustment.
	Back(d core.Date, interval int) core.Date
}

type dailyStepper struct{}

func (dailyStepper) Next(from core.Date, interval int, _ Rule) core.Date {
	return from.AddDays(interval)
}

func (dailyStepper) Back(d core.Date, interval int) core.Date {
	return d.AddDays(-interval)
}

type weeklyStepper struct{}

// Next only ever shifts forward, so the result is at least interval weeks
// after from.
func (weeklyStepper) Next(from core.Date, interval int, rule Rule) core.Date {
	next := from.AddDays(7 * interval)
	if rule.DayOfWeek != nil {
		shift := ((*rule.DayOfWeek-int(next.Weekday()))%7 + 7) % 7
		next = next.AddDays(shift)
	}
	return next
}

func (weeklyStepper) Back(d core.Date, interval int) core.Date {
	return d.AddDays(-7 * interval)
}

type monthlyStepper struct{}

func (monthlyStepper) Next(from core.Date, interval int, rule Rule) core.Date {
	next := AddMonths(from, interval)
	if rule.DayOfMonth != nil {
		next = ClampDay(next.Year(), next.Month(), *rule.DayOfMonth)
	}
	return next
}

func (monthlyStepper) Back(d core.Date, interval int) core.Date {
	return AddMonths(d, -interval)
}

type yearlyStepper struct{}

// Next honours DayOfMonth as a day inside the anniversary month. Only the
// first occurrence of a schedule is stepped with one.
func (yearlyStepper) Next(from core.Date, interval int, rule Rule) core.Date {
	next := AddYears(from, interval)
	if rule.DayOfMonth != nil {
		next = ClampDay(next.Year(), next.Month(), *rule.DayOfMonth)
	}
	return next
}

func (yearlyStepper) Back(d core.Date, interval int) core.Date {
	return AddYears(d, -interval)
}

var steppers = map[core.Frequency]Stepper{
	core.Daily:   dailyStepper{},
	core.Weekly:  weeklyStepper{},
	core.Monthly: monthlyStepper{},
	core.Yearly:  yearlyStepper{},
}

// StepperFor returns the stepper for a frequency.
func StepperFor(freq core.Frequency) (Stepper, error) {
	s, ok := steppers[freq]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, freq)
	}
	return s, nil
}

// NextOccurrence is the occurrence following from for the given frequency.
// It is pure: same inputs, same date.
func NextOccurrence(from core.Date, freq core.Frequency, interval int, dayOfWeek, dayOfMonth *int) (core.Date, error) {
	if interval < 1 {
		return core.Date{}, fmt.Errorf("interval %d: must be positive", interval)
	}
	s, err := StepperFor(freq)
	if err != nil {
		return core.Date{}, err
	}
	return s.Next(from, interval, Rule{DayOfWeek: dayOfWeek, DayOfMonth: dayOfMonth}), nil
}

// Recurrence is the date sequence of one schedule.
type Recurrence struct {
	Frequency core.Frequency
	Interval  int
	Start     core.Date
	Rule      Rule
}

// RecurrenceOf builds the recurrence of s. Day of week applies to weekly
// schedules only and day of month to monthly schedules only; every later
// occurrence is anchor + interval periods, so a clamped month carries over.
func RecurrenceOf(s core.Schedule) Recurrence {
	rule := Rule{DayOfWeek: s.DayOfWeek, DayOfMonth: s.DayOfMonth}
	if s.Frequency != core.Weekly {
		rule.DayOfWeek = nil
	}
	if s.Frequency != core.Monthly {
		rule.DayOfMonth = nil
	}
	return Recurrence{Frequency: s.Frequency, Interval: s.Interval, Start: s.StartDate, Rule: rule}
}

// firstRule is the rule used to step off the bootstrap anchor. Monthly and
// yearly schedules without a day of month are pinned to the start day there,
// since the bootstrap itself may have been clamped.
func (r Recurrence) firstRule() Rule {
	rule := r.Rule
	if rule.DayOfMonth == nil && (r.Frequency == core.Monthly || r.Frequency == core.Yearly) {
		day := r.Start.Day()
		rule.DayOfMonth = &day
	}
	return rule
}

// Bootstrap is the virtual anchor of a schedule that has never generated:
// one period before the start date.
func (r Recurrence) Bootstrap() (core.Date, error) {
	s, err := StepperFor(r.Frequency)
	if err != nil {
		return core.Date{}, err
	}
	return s.Back(r.Start, r.Interval), nil
}

// Next returns the occurrence after anchor. A zero anchor means nothing was
// generated yet; the first occurrence is never before the start date.
func (r Recurrence) Next(anchor core.Date) (core.Date, error) {
	if r.Interval < 1 {
		return core.Date{}, fmt.Errorf("interval %d: must be positive", r.Interval)
	}
	s, err := StepperFor(r.Frequency)
	if err != nil {
		return core.Date{}, err
	}
	if !anchor.IsEmpty() {
		return s.Next(anchor, r.Interval, r.Rule), nil
	}
	boot, err := r.Bootstrap()
	if err != nil {
		return core.Date{}, err
	}
	next := s.Next(boot, r.Interval, r.firstRule())
	for next.Before(r.Start) {
		next = s.Next(next, r.Interval, r.Rule)
	}
	return next, nil
}
