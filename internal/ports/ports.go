// Package ports declares the persistence boundaries the ledger and the
// recurrence engine depend on. Adapters live under internal/storage.
package ports

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"finledger/internal/core"
)

type (
	// GoalTx is a unit of work on one goal. The goal row is locked for the
	// lifetime of the transaction, so Goal() is the committed state and no
	// other writer can change it until the callback returns.
	GoalTx interface {
		Goal() core.Goal
		Contributions(ctx context.Context) ([]core.Contribution, error)
		InsertContribution(ctx context.Context, c core.Contribution) error
		DeleteContribution(ctx context.Context, id ulid.ULID) error
		UpdateContributionAmount(ctx context.Context, id ulid.ULID, amount core.Money) error
		// SaveProgress persists CurrentAmount, Status, CompletionDate and
		// UpdatedAt if the stored version still equals g.Version, and bumps
		// the version. A mismatch returns core.ErrConflict.
		SaveProgress(ctx context.Context, g core.Goal) error
	}

	GoalStore interface {
		CreateGoal(ctx context.Context, g core.Goal) error
		GetGoal(ctx context.Context, id ulid.ULID) (core.Goal, error)
		ListGoalIDs(ctx context.Context) ([]ulid.ULID, error)
		// ActiveAutoTrackedGoals returns the user's goals that are active and
		// have auto tracking on, with their category and tag associations.
		ActiveAutoTrackedGoals(ctx context.Context, userID ulid.ULID) ([]core.Goal, error)
		GetContribution(ctx context.Context, id ulid.ULID) (core.Contribution, error)
		ContributionsForTransaction(ctx context.Context, transactionID ulid.ULID) ([]core.Contribution, error)
		// ContributionsSince returns the goal's contributions created at or
		// after since, oldest first.
		ContributionsSince(ctx context.Context, goalID ulid.ULID, since time.Time) ([]core.Contribution, error)
		// DeleteGoal removes the goal and its contributions.
		DeleteGoal(ctx context.Context, id ulid.ULID) error
		// WithGoal runs fn with the goal locked and commits when fn returns
		// nil. A missing goal yields a *core.NotFoundError.
		WithGoal(ctx context.Context, id ulid.ULID, fn func(GoalTx) error) error
	}

	// ScheduleTx is a unit of work on one schedule. Inserting the generated
	// transaction and advancing the anchor commit together or not at all.
	ScheduleTx interface {
		Schedule() core.Schedule
		InsertTransaction(ctx context.Context, t core.Transaction) error
		// AdvanceAnchor moves last_generated_date from from to to. It fails
		// with core.ErrConflict when the stored anchor is no longer from.
		AdvanceAnchor(ctx context.Context, from, to core.Date) error
	}

	ScheduleStore interface {
		CreateSchedule(ctx context.Context, s core.Schedule) error
		GetSchedule(ctx context.Context, id ulid.ULID) (core.Schedule, error)
		ActiveSchedules(ctx context.Context) ([]core.Schedule, error)
		ActiveSchedulesForUser(ctx context.Context, userID ulid.ULID) ([]core.Schedule, error)
		SetScheduleActive(ctx context.Context, id ulid.ULID, active bool) error
		// DeleteSchedule removes the schedule; generated transactions keep
		// their rows with the schedule reference cleared.
		DeleteSchedule(ctx context.Context, id ulid.ULID) error
		WithSchedule(ctx context.Context, id ulid.ULID, fn func(ScheduleTx) error) error
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) error
		GetTransaction(ctx context.Context, id ulid.ULID) (core.Transaction, error)
		UpdateTransactionAmount(ctx context.Context, id ulid.ULID, amount core.Money) error
		DeleteTransaction(ctx context.Context, id ulid.ULID) error
		TransactionsForSchedule(ctx context.Context, scheduleID ulid.ULID) ([]core.Transaction, error)
	}

	NotificationStore interface {
		// SaveNotification stores n. Saving an id that already exists is a
		// no-op reported as (false, nil).
		SaveNotification(ctx context.Context, n core.Notification) (bool, error)
		NotificationsForUser(ctx context.Context, userID ulid.ULID, limit int) ([]core.Notification, error)
	}

	// PreferenceStore holds per-user notification settings. A user with no
	// stored row for a kind gets core.ErrNotFound.
	PreferenceStore interface {
		NotificationPreference(ctx context.Context, userID ulid.ULID, kind core.NotificationKind) (core.NotificationPreference, error)
		// SaveNotificationPreference inserts or replaces the row for
		// (p.UserID, p.Kind).
		SaveNotificationPreference(ctx context.Context, p core.NotificationPreference) error
		NotificationPreferences(ctx context.Context, userID ulid.ULID) ([]core.NotificationPreference, error)
	}

	// Store is everything a backend provides.
	Store interface {
		GoalStore
		ScheduleStore
		TransactionStore
		NotificationStore
		PreferenceStore
		Close() error
	}
)
