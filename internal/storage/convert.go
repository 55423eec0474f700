package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"finledger/internal/core"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDate(d core.Date) sql.NullString {
	return nullString(d.String())
}

func nullID(id *ulid.ULID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return nullString(id.String())
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func parseDate(ns sql.NullString) (core.Date, error) {
	if !ns.Valid || ns.String == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(ns.String)
}

func parseOptionalID(ns sql.NullString) (*ulid.ULID, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	id, err := ulid.ParseStrict(ns.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func parseIDs(in []string) ([]ulid.ULID, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]ulid.ULID, 0, len(in))
	for _, s := range in {
		id, err := ulid.ParseStrict(s)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func utc(t time.Time) time.Time { return t.UTC() }

func goalRow(g core.Goal) (FinancialGoal, error) {
	criteria := g.TrackingCriteria
	if criteria == nil {
		criteria = []string{}
	}
	raw, err := json.Marshal(criteria)
	if err != nil {
		return FinancialGoal{}, fmt.Errorf("encode tracking criteria: %w", err)
	}
	return FinancialGoal{
		ID:                      g.ID.String(),
		UserID:                  g.UserID.String(),
		Title:                   g.Title,
		GoalType:                string(g.Type),
		TargetAmountCents:       g.TargetAmount.Cents,
		StartingAmountCents:     g.StartingAmount.Cents,
		CurrentAmountCents:      g.CurrentAmount.Cents,
		TargetDate:              nullDate(g.TargetDate),
		Status:                  string(g.Status),
		AutoTrack:               g.AutoTrack,
		TrackingMethod:          string(g.TrackingMethod),
		TrackingCriteria:        string(raw),
		ContributionAmountCents: g.ContributionAmount.Cents,
		ContributionFrequency:   nullString(string(g.ContributionFrequency)),
		CompletionDate:          nullDate(g.CompletionDate),
		Version:                 g.Version,
		CreatedAt:               utc(g.CreatedAt),
		UpdatedAt:               utc(g.UpdatedAt),
	}, nil
}

func toGoal(r FinancialGoal, categories, tags []string) (core.Goal, error) {
	id, err := ulid.ParseStrict(r.ID)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal id: %w", err)
	}
	userID, err := ulid.ParseStrict(r.UserID)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal %s user id: %w", r.ID, err)
	}
	targetDate, err := parseDate(r.TargetDate)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal %s target date: %w", r.ID, err)
	}
	completion, err := parseDate(r.CompletionDate)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal %s completion date: %w", r.ID, err)
	}
	var criteria []string
	if r.TrackingCriteria != "" {
		if err := json.Unmarshal([]byte(r.TrackingCriteria), &criteria); err != nil {
			return core.Goal{}, fmt.Errorf("goal %s tracking criteria: %w", r.ID, err)
		}
	}
	catIDs, err := parseIDs(categories)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal %s categories: %w", r.ID, err)
	}
	tagIDs, err := parseIDs(tags)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal %s tags: %w", r.ID, err)
	}
	return core.Goal{
		ID:                    id,
		UserID:                userID,
		Title:                 r.Title,
		Type:                  core.GoalType(r.GoalType),
		TargetAmount:          core.Money{Cents: r.TargetAmountCents},
		StartingAmount:        core.Money{Cents: r.StartingAmountCents},
		CurrentAmount:         core.Money{Cents: r.CurrentAmountCents},
		TargetDate:            targetDate,
		Status:                core.GoalStatus(r.Status),
		AutoTrack:             r.AutoTrack,
		TrackingMethod:        core.TrackingMethod(r.TrackingMethod),
		TrackingCriteria:      criteria,
		CategoryIDs:           catIDs,
		TagIDs:                tagIDs,
		ContributionAmount:    core.Money{Cents: r.ContributionAmountCents},
		ContributionFrequency: core.Frequency(r.ContributionFrequency.String),
		CompletionDate:        completion,
		Version:               r.Version,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}, nil
}

func contributionRow(c core.Contribution) GoalContribution {
	return GoalContribution{
		ID:               c.ID.String(),
		GoalID:           c.GoalID.String(),
		TransactionID:    nullID(c.TransactionID),
		AmountCents:      c.Amount.Cents,
		ContributionType: string(c.Type),
		Notes:            c.Notes,
		CreatedAt:        utc(c.CreatedAt),
	}
}

func toContribution(r GoalContribution) (core.Contribution, error) {
	id, err := ulid.ParseStrict(r.ID)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("contribution id: %w", err)
	}
	goalID, err := ulid.ParseStrict(r.GoalID)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("contribution %s goal id: %w", r.ID, err)
	}
	txID, err := parseOptionalID(r.TransactionID)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("contribution %s transaction id: %w", r.ID, err)
	}
	return core.Contribution{
		ID:            id,
		GoalID:        goalID,
		TransactionID: txID,
		Amount:        core.Money{Cents: r.AmountCents},
		Type:          core.ContributionType(r.ContributionType),
		Notes:         r.Notes,
		CreatedAt:     r.CreatedAt,
	}, nil
}

func toContributions(rows []GoalContribution) ([]core.Contribution, error) {
	out := make([]core.Contribution, 0, len(rows))
	for _, r := range rows {
		c, err := toContribution(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func scheduleRow(s core.Schedule) RecurringSchedule {
	return RecurringSchedule{
		ID:                s.ID.String(),
		UserID:            s.UserID.String(),
		CategoryID:        s.CategoryID.String(),
		AccountID:         nullID(s.AccountID),
		Title:             s.Title,
		Description:       s.Description,
		AmountCents:       s.Amount.Cents,
		TransactionType:   string(s.TransactionType),
		Frequency:         string(s.Frequency),
		IntervalCount:     int64(s.Interval),
		StartDate:         s.StartDate.String(),
		EndDate:           nullDate(s.EndDate),
		DayOfWeek:         nullInt(s.DayOfWeek),
		DayOfMonth:        nullInt(s.DayOfMonth),
		IsActive:          s.Active,
		LastGeneratedDate: nullDate(s.LastGeneratedDate),
		CreatedAt:         utc(s.CreatedAt),
		UpdatedAt:         utc(s.UpdatedAt),
	}
}

func toSchedule(r RecurringSchedule) (core.Schedule, error) {
	var (
		s   core.Schedule
		err error
	)
	if s.ID, err = ulid.ParseStrict(r.ID); err != nil {
		return core.Schedule{}, fmt.Errorf("schedule id: %w", err)
	}
	if s.UserID, err = ulid.ParseStrict(r.UserID); err != nil {
		return core.Schedule{}, fmt.Errorf("schedule %s user id: %w", r.ID, err)
	}
	if s.CategoryID, err = ulid.ParseStrict(r.CategoryID); err != nil {
		return core.Schedule{}, fmt.Errorf("schedule %s category id: %w", r.ID, err)
	}
	if s.AccountID, err = parseOptionalID(r.AccountID); err != nil {
		return core.Schedule{}, fmt.Errorf("schedule %s account id: %w", r.ID, err)
	}
	if s.StartDate, err = core.ParseDate(r.StartDate); err != nil {
		return core.Schedule{}, fmt.Errorf("schedule %s start date: %w", r.ID, err)
	}
	if s.EndDate, err = parseDate(r.EndDate); err != nil {
		return core.Schedule{}, fmt.Errorf("schedule %s end date: %w", r.ID, err)
	}
	if s.LastGeneratedDate, err = parseDate(r.LastGeneratedDate); err != nil {
		return core.Schedule{}, fmt.Errorf("schedule %s anchor: %w", r.ID, err)
	}
	s.Title = r.Title
	s.Description = r.Description
	s.Amount = core.Money{Cents: r.AmountCents}
	s.TransactionType = core.TransactionType(r.TransactionType)
	s.Frequency = core.Frequency(r.Frequency)
	s.Interval = int(r.IntervalCount)
	s.DayOfWeek = intPtr(r.DayOfWeek)
	s.DayOfMonth = intPtr(r.DayOfMonth)
	s.Active = r.IsActive
	s.CreatedAt = r.CreatedAt
	s.UpdatedAt = r.UpdatedAt
	return s, nil
}

func transactionRow(t core.Transaction) Transaction {
	return Transaction{
		ID:                  t.ID.String(),
		UserID:              t.UserID.String(),
		CategoryID:          t.CategoryID.String(),
		AccountID:           nullID(t.AccountID),
		Title:               t.Title,
		Description:         t.Description,
		AmountCents:         t.Amount.Cents,
		TransactionType:     string(t.Type),
		TransactionDate:     t.Date.String(),
		RecurringScheduleID: nullID(t.ScheduleID),
		CreatedAt:           utc(t.CreatedAt),
	}
}

func toTransaction(r Transaction, tags []string) (core.Transaction, error) {
	var (
		t   core.Transaction
		err error
	)
	if t.ID, err = ulid.ParseStrict(r.ID); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	if t.UserID, err = ulid.ParseStrict(r.UserID); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s user id: %w", r.ID, err)
	}
	if t.CategoryID, err = ulid.ParseStrict(r.CategoryID); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s category id: %w", r.ID, err)
	}
	if t.AccountID, err = parseOptionalID(r.AccountID); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s account id: %w", r.ID, err)
	}
	if t.ScheduleID, err = parseOptionalID(r.RecurringScheduleID); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s schedule id: %w", r.ID, err)
	}
	if t.Date, err = core.ParseDate(r.TransactionDate); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s date: %w", r.ID, err)
	}
	if t.TagIDs, err = parseIDs(tags); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s tags: %w", r.ID, err)
	}
	t.Title = r.Title
	t.Description = r.Description
	t.Amount = core.Money{Cents: r.AmountCents}
	t.Type = core.TransactionType(r.TransactionType)
	t.CreatedAt = r.CreatedAt
	return t, nil
}

func notificationRow(n core.Notification) (Notification, error) {
	meta := n.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return Notification{}, fmt.Errorf("encode metadata: %w", err)
	}
	row := Notification{
		ID:         n.ID,
		UserID:     n.UserID.String(),
		Kind:       string(n.Kind),
		SourceKind: string(n.Source.Kind),
		SourceID:   n.Source.ID,
		Title:      n.Title,
		Body:       n.Body,
		Metadata:   string(raw),
		CreatedAt:  utc(n.CreatedAt),
	}
	if n.ReadAt != nil {
		row.ReadAt = sql.NullTime{Time: utc(*n.ReadAt), Valid: true}
	}
	return row, nil
}

func toNotification(r Notification) (core.Notification, error) {
	userID, err := ulid.ParseStrict(r.UserID)
	if err != nil {
		return core.Notification{}, fmt.Errorf("notification %s user id: %w", r.ID, err)
	}
	meta := map[string]string{}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
			return core.Notification{}, fmt.Errorf("notification %s metadata: %w", r.ID, err)
		}
	}
	n := core.Notification{
		ID:        r.ID,
		UserID:    userID,
		Kind:      core.NotificationKind(r.Kind),
		Source:    core.SourceRef{Kind: core.SourceKind(r.SourceKind), ID: r.SourceID},
		Title:     r.Title,
		Body:      r.Body,
		Metadata:  meta,
		CreatedAt: r.CreatedAt,
	}
	if r.ReadAt.Valid {
		t := r.ReadAt.Time
		n.ReadAt = &t
	}
	return n, nil
}

func preferenceRow(p core.NotificationPreference) NotificationPreference {
	return NotificationPreference{
		UserID:    p.UserID.String(),
		Kind:      string(p.Kind),
		Enabled:   p.Enabled,
		Threshold: int64(p.Threshold),
		UpdatedAt: utc(p.UpdatedAt),
	}
}

func toPreference(r NotificationPreference) (core.NotificationPreference, error) {
	userID, err := ulid.ParseStrict(r.UserID)
	if err != nil {
		return core.NotificationPreference{}, fmt.Errorf("preference %s user id: %w", r.Kind, err)
	}
	return core.NotificationPreference{
		UserID:    userID,
		Kind:      core.NotificationKind(r.Kind),
		Enabled:   r.Enabled,
		Threshold: int(r.Threshold),
		UpdatedAt: r.UpdatedAt,
	}, nil
}
