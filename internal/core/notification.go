package core

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

type (
	NotificationKind string
	SourceKind       string
)

const (
	NotifyGoalMilestone      NotificationKind = "goal_milestone"
	NotifyGoalCompleted      NotificationKind = "goal_completed"
	NotifyRecurringGenerated NotificationKind = "recurring_transaction_processed"
	NotifyRecurringUpcoming  NotificationKind = "recurring_transaction_upcoming"
)

const (
	SourceGoal        SourceKind = "goal"
	SourceSchedule    SourceKind = "schedule"
	SourceTransaction SourceKind = "transaction"
)

// SourceRef points at the entity a notification is about. Consumers switch on
// Kind; ID is the entity's string id.
type SourceRef struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id"`
}

func GoalRef(id ulid.ULID) SourceRef     { return SourceRef{Kind: SourceGoal, ID: id.String()} }
func ScheduleRef(id ulid.ULID) SourceRef { return SourceRef{Kind: SourceSchedule, ID: id.String()} }

func (r SourceRef) IsValid() bool {
	switch r.Kind {
	case SourceGoal, SourceSchedule, SourceTransaction:
		return r.ID != ""
	}
	return false
}

func (r SourceRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// Notification is an in-app message persisted for a user. ID is the id of the
// event it was built from, which makes redelivery idempotent.
type Notification struct {
	ID        string
	UserID    ulid.ULID
	Kind      NotificationKind
	Source    SourceRef
	Title     string
	Body      string
	Metadata  map[string]string
	CreatedAt time.Time
	ReadAt    *time.Time
}
