package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"finledger/internal/calendar"
	"finledger/internal/core"
	"finledger/internal/keylock"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/ports"
)

// ScheduleState is the derived lifecycle state of a schedule.
type ScheduleState string

const (
	StateScheduled ScheduleState = "scheduled"
	StateExhausted ScheduleState = "exhausted"
)

// State is exhausted for inactive schedules and past the end date.
func State(s core.Schedule, asOf core.Date) ScheduleState {
	if s.Exhausted(asOf) {
		return StateExhausted
	}
	return StateScheduled
}

// RecurringProcessor generates the transactions implied by recurring
// schedules. Each occurrence is one atomic unit: the transaction insert and
// the anchor advance commit together, so an interrupted catch-up resumes
// exactly where it stopped.
type RecurringProcessor struct {
	schedules      ports.ScheduleStore
	matcher        *Matcher
	clock          calendar.Clock
	events         notify.Sink
	retry          RetryPolicy
	prefs          ports.PreferenceStore
	maxOccurrences int
	concurrency    int
	locks          *keylock.Map[ulid.ULID]
	logger         *log.Logger
}

// NewRecurringProcessor wires the engine. matcher may be nil, in which case
// generated transactions are not routed to goals.
func NewRecurringProcessor(schedules ports.ScheduleStore, matcher *Matcher, opts Options) *RecurringProcessor {
	opts = opts.withDefaults()
	return &RecurringProcessor{
		schedules:      schedules,
		matcher:        matcher,
		clock:          opts.Clock,
		events:         opts.Events,
		retry:          opts.Retry,
		prefs:          opts.Preferences,
		maxOccurrences: opts.MaxOccurrences,
		concurrency:    opts.Concurrency,
		locks:          keylock.New[ulid.ULID](),
		logger:         opts.Logger.WithComponent(log.ComponentRecurring),
	}
}

// CreateSchedule validates req and stores an active schedule.
func (p *RecurringProcessor) CreateSchedule(ctx context.Context, req core.ScheduleRequest) (core.Schedule, error) {
	s, err := core.NewSchedule(req, p.clock.Now())
	if err != nil {
		return core.Schedule{}, err
	}
	if err := p.schedules.CreateSchedule(ctx, s); err != nil {
		return core.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}
	return s, nil
}

// NextOccurrence is the date the schedule would generate next.
func NextOccurrence(s core.Schedule) (core.Date, error) {
	return calendar.RecurrenceOf(s).Next(s.LastGeneratedDate)
}

// ShouldGenerate reports whether an occurrence is due on or before asOf.
// It is false once asOf is past the end date, even when occurrences up to
// the end date were never generated; GenerateAllPending and RunCatchUp still
// fill those in, since they bound the window by the end date instead.
func ShouldGenerate(s core.Schedule, asOf core.Date) (bool, error) {
	if !s.Active || (!s.EndDate.IsEmpty() && asOf.After(s.EndDate)) {
		return false, nil
	}
	next, err := NextOccurrence(s)
	if err != nil {
		return false, err
	}
	return !next.After(asOf), nil
}

// GenerateOne creates the transaction for one occurrence and advances the
// anchor. A nil occurrence means the next one after the anchor. On any
// failure the anchor is left untouched.
func (p *RecurringProcessor) GenerateOne(ctx context.Context, scheduleID ulid.ULID, occurrence *core.Date) (core.Transaction, error) {
	unlock := p.locks.Lock(scheduleID)
	defer unlock()

	t, s, _, err := p.generate(ctx, scheduleID, occurrence, nil)
	if err != nil {
		return core.Transaction{}, err
	}
	p.afterGenerate(ctx, s, t)
	return t, nil
}

// GenerateAllPending generates every occurrence up to asOf, or up to the end
// date when that comes first. A second call with the same asOf generates
// nothing. Cancellation is checked between occurrences only.
func (p *RecurringProcessor) GenerateAllPending(ctx context.Context, scheduleID ulid.ULID, asOf core.Date) ([]core.Transaction, error) {
	unlock := p.locks.Lock(scheduleID)
	defer unlock()

	var out []core.Transaction
	for len(out) < p.maxOccurrences {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		t, s, done, err := p.generate(ctx, scheduleID, nil, &asOf)
		if err != nil {
			return out, err
		}
		if done {
			return out, nil
		}
		out = append(out, t)
		p.afterGenerate(ctx, s, t)
	}

	p.logger.WarnContext(ctx, "Catch-up stopped at occurrence cap",
		log.FieldScheduleID, scheduleID.String(),
		log.FieldCount, len(out),
		log.FieldAsOf, asOf.String())
	return out, nil
}

// generate runs one occurrence. With a non-nil until it is in catch-up mode:
// an inactive schedule or an occurrence past until or the end date reports
// done instead of failing.
func (p *RecurringProcessor) generate(ctx context.Context, scheduleID ulid.ULID, occurrence, until *core.Date) (core.Transaction, core.Schedule, bool, error) {
	var (
		t    core.Transaction
		s    core.Schedule
		done bool
	)
	catchUp := until != nil
	err := p.retry.Do(ctx, "schedule", scheduleID.String(), func() error {
		done = false
		return p.schedules.WithSchedule(ctx, scheduleID, func(tx ports.ScheduleTx) error {
			s = tx.Schedule()
			if err := s.Validate(); err != nil {
				return err
			}
			if !s.Active {
				if catchUp {
					done = true
					return nil
				}
				return core.NewValidationError("active", "schedule is inactive")
			}

			var occ core.Date
			if occurrence != nil {
				occ = *occurrence
			} else {
				next, err := NextOccurrence(s)
				if err != nil {
					return err
				}
				occ = next
			}

			outside := occ.Before(s.StartDate) || (!s.EndDate.IsEmpty() && occ.After(s.EndDate))
			if catchUp && (outside || occ.After(*until)) {
				done = true
				return nil
			}
			if outside {
				return core.NewValidationError("occurrence_date", fmt.Sprintf("%s is outside the schedule window", occ))
			}

			t = core.Transaction{
				ID:          core.NewID(),
				UserID:      s.UserID,
				CategoryID:  s.CategoryID,
				AccountID:   s.AccountID,
				Title:       s.Title,
				Description: s.Description,
				Amount:      s.Amount,
				Type:        s.TransactionType,
				Date:        occ,
				ScheduleID:  &s.ID,
				CreatedAt:   p.clock.Now(),
			}
			if err := tx.InsertTransaction(ctx, t); err != nil {
				return &core.GenerationFailure{ScheduleID: s.ID.String(), Occurrence: occ, Err: err}
			}
			anchor := calendar.Max(s.LastGeneratedDate, occ)
			if err := tx.AdvanceAnchor(ctx, s.LastGeneratedDate, anchor); err != nil {
				return &core.GenerationFailure{ScheduleID: s.ID.String(), Occurrence: occ, Err: err}
			}
			s.LastGeneratedDate = anchor
			return nil
		})
	})
	if err != nil {
		fields := log.NewFields().
			WithOperation(log.OpGenerate).
			WithSchedule(scheduleID.String(), t.Date.String()).
			WithError(err, generationErrorType(err))
		p.logger.ErrorContext(ctx, "Failed to generate recurring transaction", fields.ToSlice()...)
		return core.Transaction{}, core.Schedule{}, false, err
	}
	return t, s, done, nil
}

func generationErrorType(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrConflict):
		return log.ErrorTypeConflict
	default:
		return log.ErrorTypeGeneration
	}
}

// afterGenerate runs the post-commit side effects of one occurrence. Their
// failures are logged; the occurrence itself stays generated.
func (p *RecurringProcessor) afterGenerate(ctx context.Context, s core.Schedule, t core.Transaction) {
	p.logger.InfoContext(ctx, "Generated recurring transaction",
		log.FieldScheduleID, s.ID.String(),
		log.FieldTransactionID, t.ID.String(),
		log.FieldOccurrence, t.Date.String(),
		log.FieldAmountCents, t.Amount.Cents)

	if preferenceFor(ctx, p.prefs, p.logger, s.UserID, core.NotifyRecurringGenerated).Enabled {
		p.events.Emit(ctx, notify.RecurringTransactionGenerated(s, t, p.clock.Now()))
	}

	if p.matcher == nil {
		return
	}
	if _, err := p.matcher.Apply(ctx, t); err != nil {
		p.logger.ErrorContext(ctx, "Goal matching failed for generated transaction",
			log.FieldScheduleID, s.ID.String(),
			log.FieldTransactionID, t.ID.String(),
			log.FieldError, err)
	}
}

// CatchUpReport summarises one RunCatchUp pass.
type CatchUpReport struct {
	Schedules int
	Generated int
	Failed    int
	Duration  time.Duration
}

// RunCatchUp runs GenerateAllPending for every active schedule, a bounded
// number at a time. One schedule failing does not stop the others; all
// failures are joined into the returned error.
func (p *RecurringProcessor) RunCatchUp(ctx context.Context, asOf core.Date) (CatchUpReport, error) {
	start := time.Now()
	schedules, err := p.schedules.ActiveSchedules(ctx)
	if err != nil {
		return CatchUpReport{}, fmt.Errorf("list active schedules: %w", err)
	}

	p.logger.InfoContext(ctx, "Starting catch-up",
		log.FieldAsOf, asOf.String(),
		log.FieldCount, len(schedules))

	var (
		mu     sync.Mutex
		report = CatchUpReport{Schedules: len(schedules)}
		errs   []error
		g      errgroup.Group
	)
	g.SetLimit(p.concurrency)
	for _, s := range schedules {
		g.Go(func() error {
			generated, err := p.GenerateAllPending(ctx, s.ID, asOf)
			mu.Lock()
			defer mu.Unlock()
			report.Generated += len(generated)
			if err != nil {
				report.Failed++
				errs = append(errs, fmt.Errorf("schedule %s: %w", s.ID, err))
			}
			return nil
		})
	}
	_ = g.Wait()
	report.Duration = time.Since(start)

	p.logger.InfoContext(ctx, "Catch-up complete",
		log.FieldAsOf, asOf.String(),
		"schedules", report.Schedules,
		"generated", report.Generated,
		"failed", report.Failed,
		log.FieldDuration, report.Duration.Milliseconds())
	return report, errors.Join(errs...)
}

// Reminder is an upcoming occurrence announced ahead of time.
type Reminder struct {
	Schedule  core.Schedule
	DueDate   core.Date
	DaysUntil int
}

// UpcomingReminders emits a reminder for each active schedule whose next
// occurrence is exactly the owner's lead time after today. daysBefore is the
// lead time for owners without a stored threshold; owners who turned
// reminders off are skipped.
func (p *RecurringProcessor) UpcomingReminders(ctx context.Context, today core.Date, daysBefore int) ([]Reminder, error) {
	schedules, err := p.schedules.ActiveSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	var out []Reminder
	prefs := make(map[ulid.ULID]core.NotificationPreference)
	for _, s := range schedules {
		next, err := NextOccurrence(s)
		if err != nil {
			p.logger.WarnContext(ctx, "Skipping schedule with invalid recurrence",
				log.FieldScheduleID, s.ID.String(), log.FieldError, err)
			continue
		}
		if !s.EndDate.IsEmpty() && next.After(s.EndDate) {
			continue
		}
		pref, ok := prefs[s.UserID]
		if !ok {
			pref = preferenceFor(ctx, p.prefs, p.logger, s.UserID, core.NotifyRecurringUpcoming)
			prefs[s.UserID] = pref
		}
		if !pref.Enabled {
			continue
		}
		days := calendar.DaysBetween(today, next)
		if days != pref.ThresholdOr(daysBefore) {
			continue
		}
		r := Reminder{Schedule: s, DueDate: next, DaysUntil: days}
		out = append(out, r)
		p.events.Emit(ctx, notify.RecurringTransactionUpcoming(s, next, days, p.clock.Now()))
	}
	p.logger.InfoContext(ctx, "Reminders sent",
		log.FieldOperation, log.OpRemind,
		log.FieldCount, len(out),
		"days_before", daysBefore)
	return out, nil
}

// Deactivate stops a schedule without touching its generated transactions.
func (p *RecurringProcessor) Deactivate(ctx context.Context, scheduleID ulid.ULID) error {
	return p.schedules.SetScheduleActive(ctx, scheduleID, false)
}

// Reactivate re-enables a schedule. The end date is kept, so a schedule past
// its end date stays exhausted.
func (p *RecurringProcessor) Reactivate(ctx context.Context, scheduleID ulid.ULID) error {
	return p.schedules.SetScheduleActive(ctx, scheduleID, true)
}
