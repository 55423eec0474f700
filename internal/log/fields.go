package log

import "time"

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldError          = "error"
	FieldErrorType      = "error_type"
	FieldOperation      = "operation"
	FieldDuration       = "duration_ms"
	FieldSuccess        = "success"
	FieldUserID         = "user_id"
	FieldGoalID         = "goal_id"
	FieldContributionID = "contribution_id"
	FieldScheduleID     = "schedule_id"
	FieldTransactionID  = "transaction_id"
	FieldOccurrence     = "occurrence_date"
	FieldAsOf           = "as_of"
	FieldAmountCents    = "amount_cents"
	FieldAttempt        = "attempt"
	FieldCount          = "count"
	FieldEventID        = "event_id"
	FieldEventKind      = "event_kind"
	FieldNotifyKind     = "notification_kind"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentLedger     = "ledger"
	ComponentRecurring  = "recurring"
	ComponentMatcher    = "matcher"
	ComponentReminders  = "reminders"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentDispatcher = "dispatcher"
	ComponentCache      = "cache"
	ComponentBackend    = "backend"
	ComponentScheduler  = "scheduler"
	ComponentCLI        = "cli"
	ComponentPrefs      = "preferences"
)

// Operations defines standard operation names
const (
	OpAddContribution    = "add_contribution"
	OpRemoveContribution = "remove_contribution"
	OpScaleContributions = "scale_contributions"
	OpRecalculate        = "recalculate"
	OpGenerate           = "generate"
	OpCatchUp            = "catch_up"
	OpMatch              = "match"
	OpRemind             = "remind"
	OpPublish            = "publish"
	OpConsume            = "consume"
	OpMigrate            = "migrate"
	OpShutdown           = "shutdown"
	OpStartup            = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeGeneration    = "generation_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error and its category. A nil error is ignored.
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

func (f LogFields) WithGoal(goalID string) LogFields {
	f[FieldGoalID] = goalID
	return f
}

func (f LogFields) WithSchedule(scheduleID, occurrence string) LogFields {
	f[FieldScheduleID] = scheduleID
	if occurrence != "" {
		f[FieldOccurrence] = occurrence
	}
	return f
}

func (f LogFields) WithTransaction(transactionID string, amountCents int64) LogFields {
	f[FieldTransactionID] = transactionID
	f[FieldAmountCents] = amountCents
	return f
}

func (f LogFields) WithDuration(d time.Duration) LogFields {
	f[FieldDuration] = d.Milliseconds()
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
