// Package notify carries ledger status changes to the notification
// collaborator. Producers hand events to a Sink and never wait on delivery.
package notify

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"finledger/internal/core"
)

// Event is the payload of one status change. ID is a random UUID used by
// consumers to drop redeliveries.
type Event struct {
	ID         string                `json:"id"`
	Kind       core.NotificationKind `json:"kind"`
	UserID     string                `json:"user_id"`
	Source     core.SourceRef        `json:"source"`
	OccurredAt time.Time             `json:"occurred_at"`
	Title      string                `json:"title"`
	Body       string                `json:"body"`
	Metadata   map[string]string     `json:"metadata,omitempty"`
}

func newEvent(kind core.NotificationKind, userID ulid.ULID, src core.SourceRef, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		UserID:     userID.String(),
		Source:     src,
		OccurredAt: at.UTC(),
		Metadata:   map[string]string{},
	}
}

// GoalMilestoneReached reports that a goal crossed milestone percent.
func GoalMilestoneReached(g core.Goal, milestone int, at time.Time) Event {
	e := newEvent(core.NotifyGoalMilestone, g.UserID, core.GoalRef(g.ID), at)
	e.Title = fmt.Sprintf("%d%% of %s reached", milestone, g.Title)
	e.Body = fmt.Sprintf("You have saved %s of %s.", g.CurrentAmount, g.TargetAmount)
	e.Metadata["milestone"] = strconv.Itoa(milestone)
	e.Metadata["current_cents"] = strconv.FormatInt(g.CurrentAmount.Cents, 10)
	e.Metadata["target_cents"] = strconv.FormatInt(g.TargetAmount.Cents, 10)
	return e
}

func GoalCompleted(g core.Goal, at time.Time) Event {
	e := newEvent(core.NotifyGoalCompleted, g.UserID, core.GoalRef(g.ID), at)
	e.Title = fmt.Sprintf("Goal reached: %s", g.Title)
	e.Body = fmt.Sprintf("You reached your target of %s.", g.TargetAmount)
	e.Metadata["completion_date"] = g.CompletionDate.String()
	e.Metadata["current_cents"] = strconv.FormatInt(g.CurrentAmount.Cents, 10)
	return e
}

func RecurringTransactionGenerated(s core.Schedule, t core.Transaction, at time.Time) Event {
	e := newEvent(core.NotifyRecurringGenerated, s.UserID, core.ScheduleRef(s.ID), at)
	e.Title = fmt.Sprintf("Recorded %s", s.Title)
	e.Body = fmt.Sprintf("A %s of %s was recorded for %s.", t.Type, t.Amount, t.Date)
	e.Metadata["transaction_id"] = t.ID.String()
	e.Metadata["occurrence_date"] = t.Date.String()
	e.Metadata["amount_cents"] = strconv.FormatInt(t.Amount.Cents, 10)
	return e
}

func RecurringTransactionUpcoming(s core.Schedule, due core.Date, daysUntil int, at time.Time) Event {
	e := newEvent(core.NotifyRecurringUpcoming, s.UserID, core.ScheduleRef(s.ID), at)
	e.Title = fmt.Sprintf("Upcoming: %s", s.Title)
	e.Body = fmt.Sprintf("%s of %s is due on %s.", s.Title, s.Amount, due)
	e.Metadata["due_date"] = due.String()
	e.Metadata["days_until"] = strconv.Itoa(daysUntil)
	e.Metadata["amount_cents"] = strconv.FormatInt(s.Amount.Cents, 10)
	return e
}

// Notification converts the event into the row persisted for the user.
func (e Event) Notification() (core.Notification, error) {
	userID, err := ulid.ParseStrict(e.UserID)
	if err != nil {
		return core.Notification{}, fmt.Errorf("event %s: user id: %w", e.ID, err)
	}
	if !e.Source.IsValid() {
		return core.Notification{}, fmt.Errorf("event %s: invalid source %q", e.ID, e.Source)
	}
	return core.Notification{
		ID:        e.ID,
		UserID:    userID,
		Kind:      e.Kind,
		Source:    e.Source,
		Title:     e.Title,
		Body:      e.Body,
		Metadata:  e.Metadata,
		CreatedAt: e.OccurredAt,
	}, nil
}
