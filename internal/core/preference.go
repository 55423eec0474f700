package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	DefaultMilestoneStep    = 25
	DefaultReminderLeadDays = 3
)

// NotificationPreference is a user's setting for one notification kind.
// Threshold is the milestone spacing in percent for goal milestones and the
// lead time in days for upcoming reminders; other kinds ignore it. Zero
// falls back to the caller's default.
type NotificationPreference struct {
	UserID    ulid.ULID
	Kind      NotificationKind
	Enabled   bool
	Threshold int
	UpdatedAt time.Time
}

// DefaultPreference is what a user without a stored row gets: enabled, with
// the default threshold.
func DefaultPreference(userID ulid.ULID, kind NotificationKind) NotificationPreference {
	return NotificationPreference{UserID: userID, Kind: kind, Enabled: true}
}

func (k NotificationKind) IsValid() bool {
	switch k {
	case NotifyGoalMilestone, NotifyGoalCompleted, NotifyRecurringGenerated, NotifyRecurringUpcoming:
		return true
	}
	return false
}

// ThresholdOr returns the stored threshold, or def when none is set.
func (p NotificationPreference) ThresholdOr(def int) int {
	if p.Threshold > 0 {
		return p.Threshold
	}
	return def
}

// PreferenceRequest is the input for storing a notification preference.
type PreferenceRequest struct {
	UserID    ulid.ULID        `validate:"required"`
	Kind      NotificationKind `validate:"required,oneof=goal_milestone goal_completed recurring_transaction_processed recurring_transaction_upcoming"`
	Enabled   bool             `validate:"-"`
	Threshold int              `validate:"gte=0,lte=366"`
}

// NewPreference validates req. A milestone spacing must leave at least one
// milestone below 100%.
func NewPreference(req PreferenceRequest, now time.Time) (NotificationPreference, error) {
	errs := translate(structValidator().Struct(req))
	if req.Kind == NotifyGoalMilestone && req.Threshold >= 100 {
		errs = append(errs, NewValidationError("threshold", "must be below 100 for milestones"))
	}
	if err := errs.OrNil(); err != nil {
		return NotificationPreference{}, err
	}
	return NotificationPreference{
		UserID:    req.UserID,
		Kind:      req.Kind,
		Enabled:   req.Enabled,
		Threshold: req.Threshold,
		UpdatedAt: now,
	}, nil
}
