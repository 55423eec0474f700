package postgres

import (
	"time"
)

type goalModel struct {
	ID                      string     `gorm:"type:varchar(26);primaryKey"`
	UserID                  string     `gorm:"type:varchar(26);not null;index:idx_goals_user_status,priority:1"`
	Title                   string     `gorm:"not null"`
	GoalType                string     `gorm:"type:varchar(32);not null"`
	TargetAmountCents       int64      `gorm:"not null;check:target_amount_cents > 0"`
	StartingAmountCents     int64      `gorm:"not null"`
	CurrentAmountCents      int64      `gorm:"not null"`
	TargetDate              *time.Time `gorm:"type:date"`
	Status                  string     `gorm:"type:varchar(16);not null;index:idx_goals_user_status,priority:2"`
	AutoTrack               bool       `gorm:"not null"`
	TrackingMethod          string     `gorm:"type:varchar(16);not null"`
	TrackingCriteria        string     `gorm:"type:text;not null"`
	ContributionAmountCents int64      `gorm:"not null"`
	ContributionFrequency   string     `gorm:"type:varchar(16)"`
	CompletionDate          *time.Time `gorm:"type:date"`
	Version                 int64      `gorm:"not null"`
	CreatedAt               time.Time  `gorm:"not null"`
	UpdatedAt               time.Time  `gorm:"not null"`
}

func (goalModel) TableName() string { return "financial_goals" }

type goalCategoryModel struct {
	GoalID     string `gorm:"type:varchar(26);primaryKey"`
	CategoryID string `gorm:"type:varchar(26);primaryKey"`
}

func (goalCategoryModel) TableName() string { return "goal_categories" }

type goalTagModel struct {
	GoalID string `gorm:"type:varchar(26);primaryKey"`
	TagID  string `gorm:"type:varchar(26);primaryKey"`
}

func (goalTagModel) TableName() string { return "goal_tags" }

type contributionModel struct {
	ID               string    `gorm:"type:varchar(26);primaryKey"`
	GoalID           string    `gorm:"type:varchar(26);not null;index:idx_contributions_goal,priority:1;uniqueIndex:idx_contributions_goal_transaction,priority:1,where:transaction_id IS NOT NULL"`
	TransactionID    *string   `gorm:"type:varchar(26);index;uniqueIndex:idx_contributions_goal_transaction,priority:2,where:transaction_id IS NOT NULL"`
	AmountCents      int64     `gorm:"not null;check:amount_cents <> 0"`
	ContributionType string    `gorm:"type:varchar(16);not null"`
	Notes            string    `gorm:"type:text;not null"`
	CreatedAt        time.Time `gorm:"not null;index:idx_contributions_goal,priority:2"`
}

func (contributionModel) TableName() string { return "goal_contributions" }

type scheduleModel struct {
	ID                string     `gorm:"type:varchar(26);primaryKey"`
	UserID            string     `gorm:"type:varchar(26);not null;index"`
	CategoryID        string     `gorm:"type:varchar(26);not null"`
	AccountID         *string    `gorm:"type:varchar(26)"`
	Title             string     `gorm:"not null"`
	Description       string     `gorm:"type:text;not null"`
	AmountCents       int64      `gorm:"not null;check:schedule_amount_positive,amount_cents > 0"`
	TransactionType   string     `gorm:"type:varchar(16);not null"`
	Frequency         string     `gorm:"type:varchar(16);not null"`
	IntervalCount     int        `gorm:"not null"`
	StartDate         time.Time  `gorm:"type:date;not null"`
	EndDate           *time.Time `gorm:"type:date"`
	DayOfWeek         *int
	DayOfMonth        *int
	IsActive          bool       `gorm:"not null;index"`
	LastGeneratedDate *time.Time `gorm:"type:date"`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

func (scheduleModel) TableName() string { return "recurring_schedules" }

// One generated transaction per schedule occurrence.
type transactionModel struct {
	ID                  string    `gorm:"type:varchar(26);primaryKey"`
	UserID              string    `gorm:"type:varchar(26);not null;index"`
	CategoryID          string    `gorm:"type:varchar(26);not null"`
	AccountID           *string   `gorm:"type:varchar(26)"`
	Title               string    `gorm:"not null"`
	Description         string    `gorm:"type:text;not null"`
	AmountCents         int64     `gorm:"not null"`
	TransactionType     string    `gorm:"type:varchar(16);not null"`
	TransactionDate     time.Time `gorm:"type:date;not null;uniqueIndex:idx_transactions_occurrence,priority:2,where:recurring_schedule_id IS NOT NULL"`
	RecurringScheduleID *string   `gorm:"type:varchar(26);uniqueIndex:idx_transactions_occurrence,priority:1,where:recurring_schedule_id IS NOT NULL"`
	CreatedAt           time.Time `gorm:"not null"`
}

func (transactionModel) TableName() string { return "transactions" }

type transactionTagModel struct {
	TransactionID string `gorm:"type:varchar(26);primaryKey"`
	TagID         string `gorm:"type:varchar(26);primaryKey"`
}

func (transactionTagModel) TableName() string { return "transaction_tags" }

type notificationModel struct {
	ID         string    `gorm:"type:varchar(64);primaryKey"`
	UserID     string    `gorm:"type:varchar(26);not null;index:idx_notifications_user,priority:1"`
	Kind       string    `gorm:"type:varchar(64);not null"`
	SourceKind string    `gorm:"type:varchar(16);not null"`
	SourceID   string    `gorm:"type:varchar(64);not null"`
	Title      string    `gorm:"not null"`
	Body       string    `gorm:"type:text;not null"`
	Metadata   string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;index:idx_notifications_user,priority:2"`
	ReadAt     *time.Time
}

func (notificationModel) TableName() string { return "notifications" }

type preferenceModel struct {
	UserID    string    `gorm:"type:varchar(26);primaryKey"`
	Kind      string    `gorm:"type:varchar(64);primaryKey"`
	Enabled   bool      `gorm:"not null"`
	Threshold int       `gorm:"not null;check:threshold >= 0"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (preferenceModel) TableName() string { return "notification_preferences" }

func models() []any {
	return []any{
		&goalModel{},
		&goalCategoryModel{},
		&goalTagModel{},
		&contributionModel{},
		&scheduleModel{},
		&transactionModel{},
		&transactionTagModel{},
		&notificationModel{},
		&preferenceModel{},
	}
}
