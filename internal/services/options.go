// Package services holds the goal ledger, the transaction matcher and the
// recurring-transaction engine.
package services

import (
	"finledger/internal/calendar"
	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/ports"
)

// Options are the collaborators and tunables shared by the services. Zero
// values are replaced by defaults.
type Options struct {
	Clock  calendar.Clock
	Events notify.Sink
	Retry  RetryPolicy
	Logger *log.Logger
	// Preferences holds per-user notification settings. Nil means every
	// user gets the defaults.
	Preferences ports.PreferenceStore

	// MilestoneStep is the percentage spacing of goal milestones.
	MilestoneStep int
	// MaxOccurrences caps how many occurrences one catch-up of a single
	// schedule may generate.
	MaxOccurrences int
	// Concurrency is how many schedules RunCatchUp processes at once.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = calendar.SystemClock{}
	}
	if o.Events == nil {
		o.Events = notify.Discard{}
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = DefaultRetryPolicy()
	}
	if o.Logger == nil {
		o.Logger = log.Discard()
	}
	if o.MilestoneStep <= 0 || o.MilestoneStep >= 100 {
		o.MilestoneStep = core.DefaultMilestoneStep
	}
	if o.MaxOccurrences <= 0 {
		o.MaxOccurrences = 1000
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	return o
}
