package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
)

// GoalRequest is the input for creating a goal. Amounts are in cents.
type GoalRequest struct {
	UserID                ulid.ULID      `validate:"required"`
	Title                 string         `validate:"required,max=200"`
	Type                  GoalType       `validate:"required,oneof=savings debt_reduction emergency_fund investment custom"`
	TargetCents           int64          `validate:"gt=0"`
	StartingCents         int64          `validate:"gte=0"`
	TargetDate            Date           `validate:"-"`
	AutoTrack             bool           `validate:"-"`
	TrackingMethod        TrackingMethod `validate:"omitempty,oneof=category tag account manual"`
	TrackingCriteria      []string       `validate:"dive,required"`
	CategoryIDs           []ulid.ULID    `validate:"-"`
	TagIDs                []ulid.ULID    `validate:"-"`
	ContributionCents     int64          `validate:"gte=0"`
	ContributionFrequency Frequency      `validate:"omitempty,oneof=daily weekly monthly yearly"`
}

// ScheduleRequest is the input for creating a recurring schedule.
type ScheduleRequest struct {
	UserID          ulid.ULID       `validate:"required"`
	CategoryID      ulid.ULID       `validate:"required"`
	AccountID       *ulid.ULID      `validate:"-"`
	Title           string          `validate:"required,max=200"`
	Description     string          `validate:"max=500"`
	AmountCents     int64           `validate:"gt=0"`
	TransactionType TransactionType `validate:"required,oneof=income expense"`
	Frequency       Frequency       `validate:"required,oneof=daily weekly monthly yearly"`
	Interval        int             `validate:"gte=1"`
	StartDate       Date            `validate:"-"`
	EndDate         Date            `validate:"-"`
	DayOfWeek       *int            `validate:"omitempty,gte=0,lte=6"`
	DayOfMonth      *int            `validate:"omitempty,gte=1,lte=31"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// ulid.ULID is a byte array; treat the zero value as missing.
		validate.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if id, ok := field.Interface().(ulid.ULID); ok {
				if id == (ulid.ULID{}) {
					return nil
				}
				return id.String()
			}
			return nil
		}, ulid.ULID{})
	})
	return validate
}

// NewGoal validates req and builds an active goal whose current amount starts
// at the starting amount. today anchors the target-date-in-future rule.
func NewGoal(req GoalRequest, today Date, now time.Time) (Goal, error) {
	errs := translate(structValidator().Struct(req))
	if !req.TargetDate.IsEmpty() && req.TargetDate.Before(today) {
		errs = append(errs, NewValidationError("target_date", "must be in the future"))
	}
	if err := errs.OrNil(); err != nil {
		return Goal{}, err
	}

	method := req.TrackingMethod
	if method == "" {
		method = TrackManually
	}
	return Goal{
		ID:                    NewID(),
		UserID:                req.UserID,
		Title:                 strings.TrimSpace(req.Title),
		Type:                  req.Type,
		TargetAmount:          Money{Cents: req.TargetCents},
		StartingAmount:        Money{Cents: req.StartingCents},
		CurrentAmount:         Money{Cents: req.StartingCents},
		TargetDate:            req.TargetDate,
		Status:                GoalActive,
		AutoTrack:             req.AutoTrack,
		TrackingMethod:        method,
		TrackingCriteria:      append([]string(nil), req.TrackingCriteria...),
		CategoryIDs:           append([]ulid.ULID(nil), req.CategoryIDs...),
		TagIDs:                append([]ulid.ULID(nil), req.TagIDs...),
		ContributionAmount:    Money{Cents: req.ContributionCents},
		ContributionFrequency: req.ContributionFrequency,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// NewSchedule validates req and builds an active schedule with no anchor.
// Frequency-specific fields are range-checked here, never at generation time.
func NewSchedule(req ScheduleRequest, now time.Time) (Schedule, error) {
	errs := translate(structValidator().Struct(req))
	if req.StartDate.IsEmpty() {
		errs = append(errs, NewValidationError("start_date", "is required"))
	}
	if !req.EndDate.IsEmpty() && !req.StartDate.IsEmpty() && req.EndDate.Before(req.StartDate) {
		errs = append(errs, NewValidationError("end_date", "must not be before the start date"))
	}
	if req.DayOfWeek != nil && req.Frequency != Weekly {
		errs = append(errs, NewValidationError("day_of_week", "only allowed for weekly schedules"))
	}
	if req.DayOfMonth != nil && req.Frequency != Monthly {
		errs = append(errs, NewValidationError("day_of_month", "only allowed for monthly schedules"))
	}
	if err := errs.OrNil(); err != nil {
		return Schedule{}, err
	}

	return Schedule{
		ID:              NewID(),
		UserID:          req.UserID,
		CategoryID:      req.CategoryID,
		AccountID:       req.AccountID,
		Title:           strings.TrimSpace(req.Title),
		Description:     strings.TrimSpace(req.Description),
		Amount:          Money{Cents: req.AmountCents},
		TransactionType: req.TransactionType,
		Frequency:       req.Frequency,
		Interval:        req.Interval,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		DayOfWeek:       req.DayOfWeek,
		DayOfMonth:      req.DayOfMonth,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Validate re-checks a schedule loaded from storage.
func (s Schedule) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(s.Title) == "" {
		errs = append(errs, NewValidationError("title", ErrEmptyTitle.Error()))
	}
	if err := s.Amount.Validate(); err != nil {
		errs = append(errs, NewValidationError("amount", "must be greater than zero"))
	}
	if !s.TransactionType.IsValid() {
		errs = append(errs, NewValidationError("transaction_type", "must be income or expense"))
	}
	if !s.Frequency.IsValid() {
		errs = append(errs, NewValidationError("frequency", ErrInvalidFrequency.Error()))
	}
	if s.Interval < 1 {
		errs = append(errs, NewValidationError("interval", "must be a positive integer"))
	}
	if err := s.StartDate.Validate(); err != nil {
		errs = append(errs, NewValidationError("start_date", err.Error()))
	}
	if !s.EndDate.IsEmpty() && s.EndDate.Before(s.StartDate) {
		errs = append(errs, NewValidationError("end_date", "must not be before the start date"))
	}
	if s.DayOfWeek != nil && (*s.DayOfWeek < 0 || *s.DayOfWeek > 6) {
		errs = append(errs, NewValidationError("day_of_week", "must be between 0 (Sunday) and 6 (Saturday)"))
	}
	if s.DayOfMonth != nil && (*s.DayOfMonth < 1 || *s.DayOfMonth > 31) {
		errs = append(errs, NewValidationError("day_of_month", "must be between 1 and 31"))
	}
	return errs.OrNil()
}

func translate(err error) ValidationErrors {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{NewValidationError("", err.Error())}
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, NewValidationError(snakeCase(fe.Field()), message(fe)))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed '%s' validation", fe.Tag())
	}
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	out := b.String()
	out = strings.TrimSuffix(out, "_cents")
	return out
}
