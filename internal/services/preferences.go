package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"finledger/internal/calendar"
	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/ports"
)

// notificationKinds are the kinds a user can configure, in listing order.
var notificationKinds = []core.NotificationKind{
	core.NotifyGoalCompleted,
	core.NotifyGoalMilestone,
	core.NotifyRecurringGenerated,
	core.NotifyRecurringUpcoming,
}

// Preferences reads and writes per-user notification settings.
type Preferences struct {
	store  ports.PreferenceStore
	clock  calendar.Clock
	logger *log.Logger
}

func NewPreferences(store ports.PreferenceStore, opts Options) *Preferences {
	opts = opts.withDefaults()
	return &Preferences{store: store, clock: opts.Clock, logger: opts.Logger.WithComponent(log.ComponentPrefs)}
}

// Set validates req and stores it, replacing any earlier setting.
func (p *Preferences) Set(ctx context.Context, req core.PreferenceRequest) (core.NotificationPreference, error) {
	pref, err := core.NewPreference(req, p.clock.Now())
	if err != nil {
		return core.NotificationPreference{}, err
	}
	if err := p.store.SaveNotificationPreference(ctx, pref); err != nil {
		return core.NotificationPreference{}, fmt.Errorf("save preference: %w", err)
	}
	p.logger.InfoContext(ctx, "Notification preference saved",
		log.FieldUserID, pref.UserID.String(),
		log.FieldNotifyKind, string(pref.Kind),
		"enabled", pref.Enabled,
		"threshold", pref.Threshold)
	return pref, nil
}

// List returns one preference per configurable kind, stored or default.
func (p *Preferences) List(ctx context.Context, userID ulid.ULID) ([]core.NotificationPreference, error) {
	stored, err := p.store.NotificationPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	byKind := make(map[core.NotificationKind]core.NotificationPreference, len(stored))
	for _, s := range stored {
		byKind[s.Kind] = s
	}
	out := make([]core.NotificationPreference, 0, len(notificationKinds))
	for _, k := range notificationKinds {
		if s, ok := byKind[k]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, core.DefaultPreference(userID, k))
	}
	return out, nil
}

// preferenceFor returns the user's setting for kind. A missing row, a nil
// store or a failed lookup all yield the default, so a broken preference
// table never silences notifications.
func preferenceFor(ctx context.Context, store ports.PreferenceStore, logger *log.Logger, userID ulid.ULID, kind core.NotificationKind) core.NotificationPreference {
	if store == nil {
		return core.DefaultPreference(userID, kind)
	}
	pref, err := store.NotificationPreference(ctx, userID, kind)
	if err == nil {
		return pref
	}
	if !errors.Is(err, core.ErrNotFound) {
		logger.WarnContext(ctx, "Preference lookup failed, using default",
			log.FieldUserID, userID.String(),
			log.FieldNotifyKind, string(kind),
			log.FieldError, err)
	}
	return core.DefaultPreference(userID, kind)
}
