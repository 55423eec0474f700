package cli

import (
	"time"

	"finledger/internal/calendar"
	"finledger/internal/config"
	"finledger/internal/core"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/ports"
	"finledger/internal/services"
)

// Services is the ledger wired over one store.
type Services struct {
	Store     ports.Store
	Clock     calendar.Clock
	Ledger    *services.GoalLedger
	Matcher   *services.Matcher
	Recurring *services.RecurringProcessor
	Hooks     *services.TransactionHooks
	Prefs     *services.Preferences
}

// NewServices wires the ledger, matcher and recurrence engine. A nil clock
// means the system clock; a nil sink drops events.
func NewServices(store ports.Store, cfg *config.Config, clock calendar.Clock, events notify.Sink, logger *log.Logger) *Services {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	retry := services.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.LedgerMaxRetries

	opts := services.Options{
		Clock:          clock,
		Events:         events,
		Retry:          retry,
		Logger:         logger,
		Preferences:    store,
		MilestoneStep:  cfg.MilestoneStep,
		MaxOccurrences: cfg.CatchUpMaxOccurrences,
		Concurrency:    cfg.CatchUpConcurrency,
	}
	ledger := services.NewGoalLedger(store, opts)
	matcher := services.NewMatcher(store, ledger, opts)
	return &Services{
		Store:     store,
		Clock:     clock,
		Ledger:    ledger,
		Matcher:   matcher,
		Recurring: services.NewRecurringProcessor(store, matcher, opts),
		Hooks:     services.NewTransactionHooks(store, ledger, matcher),
		Prefs:     services.NewPreferences(store, opts),
	}
}

// Today is the current date on the services' clock.
func (s *Services) Today() core.Date { return calendar.Today(s.Clock) }

// ShutdownTimeout bounds how long a binary waits for in-flight work.
const ShutdownTimeout = 30 * time.Second
