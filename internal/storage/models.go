package storage

import (
	"database/sql"
	"time"
)

type FinancialGoal struct {
	ID                      string
	UserID                  string
	Title                   string
	GoalType                string
	TargetAmountCents       int64
	StartingAmountCents     int64
	CurrentAmountCents      int64
	TargetDate              sql.NullString
	Status                  string
	AutoTrack               bool
	TrackingMethod          string
	TrackingCriteria        string
	ContributionAmountCents int64
	ContributionFrequency   sql.NullString
	CompletionDate          sql.NullString
	Version                 int64
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

type GoalContribution struct {
	ID               string
	GoalID           string
	TransactionID    sql.NullString
	AmountCents      int64
	ContributionType string
	Notes            string
	CreatedAt        time.Time
}

type RecurringSchedule struct {
	ID                string
	UserID            string
	CategoryID        string
	AccountID         sql.NullString
	Title             string
	Description       string
	AmountCents       int64
	TransactionType   string
	Frequency         string
	IntervalCount     int64
	StartDate         string
	EndDate           sql.NullString
	DayOfWeek         sql.NullInt64
	DayOfMonth        sql.NullInt64
	IsActive          bool
	LastGeneratedDate sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Transaction struct {
	ID                  string
	UserID              string
	CategoryID          string
	AccountID           sql.NullString
	Title               string
	Description         string
	AmountCents         int64
	TransactionType     string
	TransactionDate     string
	RecurringScheduleID sql.NullString
	CreatedAt           time.Time
}

type Notification struct {
	ID         string
	UserID     string
	Kind       string
	SourceKind string
	SourceID   string
	Title      string
	Body       string
	Metadata   string
	CreatedAt  time.Time
	ReadAt     sql.NullTime
}

type NotificationPreference struct {
	UserID    string
	Kind      string
	Enabled   bool
	Threshold int64
	UpdatedAt time.Time
}
