package core

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	GoalSavings       GoalType = "savings"
	GoalDebtReduction GoalType = "debt_reduction"
	GoalEmergencyFund GoalType = "emergency_fund"
	GoalInvestment    GoalType = "investment"
	GoalCustom        GoalType = "custom"
)

const (
	GoalActive    GoalStatus = "active"
	GoalComplete  GoalStatus = "complete"
	GoalAbandoned GoalStatus = "abandoned"
)

const (
	TrackByCategory TrackingMethod = "category"
	TrackByTag      TrackingMethod = "tag"
	TrackByAccount  TrackingMethod = "account"
	TrackManually   TrackingMethod = "manual"
)

const (
	ContributionFromTransaction ContributionType = "transaction"
	ContributionManual          ContributionType = "manual"
	ContributionRecurring       ContributionType = "recurring"
)

type (
	Frequency        string
	TransactionType  string
	GoalType         string
	GoalStatus       string
	TrackingMethod   string
	ContributionType string

	// Date is a calendar date pinned to midnight UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Goal is the FinancialGoal aggregate. CurrentAmount is a cached
	// projection of StartingAmount plus the sum of its contributions.
	Goal struct {
		ID                    ulid.ULID
		UserID                ulid.ULID
		Title                 string
		Type                  GoalType
		TargetAmount          Money
		StartingAmount        Money
		CurrentAmount         Money
		TargetDate            Date // optional
		Status                GoalStatus
		AutoTrack             bool
		TrackingMethod        TrackingMethod
		TrackingCriteria      []string
		CategoryIDs           []ulid.ULID
		TagIDs                []ulid.ULID
		ContributionAmount    Money     // optional planned cadence
		ContributionFrequency Frequency // optional planned cadence
		CompletionDate        Date
		Version               int64
		CreatedAt             time.Time
		UpdatedAt             time.Time
	}

	Contribution struct {
		ID            ulid.ULID
		GoalID        ulid.ULID
		TransactionID *ulid.ULID
		Amount        Money // signed, never zero
		Type          ContributionType
		Notes         string
		CreatedAt     time.Time
	}

	// Schedule is a RecurringSchedule definition. LastGeneratedDate is the
	// anchor for catch-up computation and is zero until the first occurrence.
	Schedule struct {
		ID                ulid.ULID
		UserID            ulid.ULID
		CategoryID        ulid.ULID
		AccountID         *ulid.ULID
		Title             string
		Description       string
		Amount            Money
		TransactionType   TransactionType
		Frequency         Frequency
		Interval          int
		StartDate         Date
		EndDate           Date // optional
		DayOfWeek         *int // weekly only, 0 = Sunday
		DayOfMonth        *int // monthly only
		Active            bool
		LastGeneratedDate Date
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	Transaction struct {
		ID          ulid.ULID
		UserID      ulid.ULID
		CategoryID  ulid.ULID
		AccountID   *ulid.ULID
		TagIDs      []ulid.ULID
		Title       string
		Description string
		Amount      Money
		Type        TransactionType
		Date        Date
		ScheduleID  *ulid.ULID // set on generated transactions
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrZeroAmount       = errors.New("amount cannot be zero")
	ErrEmptyTitle       = errors.New("empty title")
	ErrInvalidFrequency = errors.New("invalid frequency")
)

// NewID returns a new monotonic ULID.
func NewID() ulid.ULID {
	return ulid.Make()
}

func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (g GoalType) IsValid() bool {
	switch g {
	case GoalSavings, GoalDebtReduction, GoalEmergencyFund, GoalInvestment, GoalCustom:
		return true
	}
	return false
}

func (m TrackingMethod) IsValid() bool {
	switch m {
	case TrackByCategory, TrackByTag, TrackByAccount, TrackManually:
		return true
	}
	return false
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar date in the instant's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO yyyy-mm-dd date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) IsZero() bool      { return m.Cents == 0 }

// IsComplete reports whether the goal is complete by status or by amount.
func (g Goal) IsComplete() bool {
	return g.Status == GoalComplete || g.CurrentAmount.Cents >= g.TargetAmount.Cents
}

func (g Goal) HasCategory(id ulid.ULID) bool {
	return slices.Contains(g.CategoryIDs, id)
}

func (g Goal) HasAnyTag(ids []ulid.ULID) bool {
	for _, id := range ids {
		if slices.Contains(g.TagIDs, id) {
			return true
		}
	}
	return false
}

// Exhausted reports whether the schedule can no longer produce occurrences
// on or after asOf without an explicit re-enable.
func (s Schedule) Exhausted(asOf Date) bool {
	if !s.Active {
		return true
	}
	return !s.EndDate.IsEmpty() && asOf.After(s.EndDate)
}

// Generated reports whether the transaction was produced by a schedule.
func (t Transaction) Generated() bool {
	return t.ScheduleID != nil
}
