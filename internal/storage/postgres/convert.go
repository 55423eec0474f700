package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"finledger/internal/core"
)

func datePtr(d core.Date) *time.Time {
	if d.IsEmpty() {
		return nil
	}
	t := d.Time
	return &t
}

func fromDatePtr(t *time.Time) core.Date {
	if t == nil {
		return core.Date{}
	}
	return core.DateOf(*t)
}

func idPtr(id *ulid.ULID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func parseIDPtr(s *string) (*ulid.ULID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := ulid.ParseStrict(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
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

func toGoalModel(g core.Goal) (goalModel, error) {
	criteria := g.TrackingCriteria
	if criteria == nil {
		criteria = []string{}
	}
	raw, err := json.Marshal(criteria)
	if err != nil {
		return goalModel{}, fmt.Errorf("encode tracking criteria: %w", err)
	}
	return goalModel{
		ID:                      g.ID.String(),
		UserID:                  g.UserID.String(),
		Title:                   g.Title,
		GoalType:                string(g.Type),
		TargetAmountCents:       g.TargetAmount.Cents,
		StartingAmountCents:     g.StartingAmount.Cents,
		CurrentAmountCents:      g.CurrentAmount.Cents,
		TargetDate:              datePtr(g.TargetDate),
		Status:                  string(g.Status),
		AutoTrack:               g.AutoTrack,
		TrackingMethod:          string(g.TrackingMethod),
		TrackingCriteria:        string(raw),
		ContributionAmountCents: g.ContributionAmount.Cents,
		ContributionFrequency:   string(g.ContributionFrequency),
		CompletionDate:          datePtr(g.CompletionDate),
		Version:                 g.Version,
		CreatedAt:               g.CreatedAt.UTC(),
		UpdatedAt:               g.UpdatedAt.UTC(),
	}, nil
}

func toGoal(m goalModel, categories, tags []string) (core.Goal, error) {
	id, err := ulid.ParseStrict(m.ID)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal id: %w", err)
	}
	userID, err := ulid.ParseStrict(m.UserID)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal %s user id: %w", m.ID, err)
	}
	var criteria []string
	if m.TrackingCriteria != "" {
		if err := json.Unmarshal([]byte(m.TrackingCriteria), &criteria); err != nil {
			return core.Goal{}, fmt.Errorf("goal %s tracking criteria: %w", m.ID, err)
		}
	}
	catIDs, err := parseIDs(categories)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal %s categories: %w", m.ID, err)
	}
	tagIDs, err := parseIDs(tags)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal %s tags: %w", m.ID, err)
	}
	return core.Goal{
		ID:                    id,
		UserID:                userID,
		Title:                 m.Title,
		Type:                  core.GoalType(m.GoalType),
		TargetAmount:          core.Money{Cents: m.TargetAmountCents},
		StartingAmount:        core.Money{Cents: m.StartingAmountCents},
		CurrentAmount:         core.Money{Cents: m.CurrentAmountCents},
		TargetDate:            fromDatePtr(m.TargetDate),
		Status:                core.GoalStatus(m.Status),
		AutoTrack:             m.AutoTrack,
		TrackingMethod:        core.TrackingMethod(m.TrackingMethod),
		TrackingCriteria:      criteria,
		CategoryIDs:           catIDs,
		TagIDs:                tagIDs,
		ContributionAmount:    core.Money{Cents: m.ContributionAmountCents},
		ContributionFrequency: core.Frequency(m.ContributionFrequency),
		CompletionDate:        fromDatePtr(m.CompletionDate),
		Version:               m.Version,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}, nil
}

func toContributionModel(c core.Contribution) contributionModel {
	return contributionModel{
		ID:               c.ID.String(),
		GoalID:           c.GoalID.String(),
		TransactionID:    idPtr(c.TransactionID),
		AmountCents:      c.Amount.Cents,
		ContributionType: string(c.Type),
		Notes:            c.Notes,
		CreatedAt:        c.CreatedAt.UTC(),
	}
}

func toContribution(m contributionModel) (core.Contribution, error) {
	id, err := ulid.ParseStrict(m.ID)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("contribution id: %w", err)
	}
	goalID, err := ulid.ParseStrict(m.GoalID)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("contribution %s goal id: %w", m.ID, err)
	}
	txID, err := parseIDPtr(m.TransactionID)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("contribution %s transaction id: %w", m.ID, err)
	}
	return core.Contribution{
		ID:            id,
		GoalID:        goalID,
		TransactionID: txID,
		Amount:        core.Money{Cents: m.AmountCents},
		Type:          core.ContributionType(m.ContributionType),
		Notes:         m.Notes,
		CreatedAt:     m.CreatedAt,
	}, nil
}

func toContributions(ms []contributionModel) ([]core.Contribution, error) {
	out := make([]core.Contribution, 0, len(ms))
	for _, m := range ms {
		c, err := toContribution(m)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func toScheduleModel(s core.Schedule) scheduleModel {
	return scheduleModel{
		ID:                s.ID.String(),
		UserID:            s.UserID.String(),
		CategoryID:        s.CategoryID.String(),
		AccountID:         idPtr(s.AccountID),
		Title:             s.Title,
		Description:       s.Description,
		AmountCents:       s.Amount.Cents,
		TransactionType:   string(s.TransactionType),
		Frequency:         string(s.Frequency),
		IntervalCount:     s.Interval,
		StartDate:         s.StartDate.Time,
		EndDate:           datePtr(s.EndDate),
		DayOfWeek:         s.DayOfWeek,
		DayOfMonth:        s.DayOfMonth,
		IsActive:          s.Active,
		LastGeneratedDate: datePtr(s.LastGeneratedDate),
		CreatedAt:         s.CreatedAt.UTC(),
		UpdatedAt:         s.UpdatedAt.UTC(),
	}
}

func toSchedule(m scheduleModel) (core.Schedule, error) {
	var (
		s   core.Schedule
		err error
	)
	if s.ID, err = ulid.ParseStrict(m.ID); err != nil {
		return core.Schedule{}, fmt.Errorf("schedule id: %w", err)
	}
	if s.UserID, err = ulid.ParseStrict(m.UserID); err != nil {
		return core.Schedule{}, fmt.Errorf("schedule %s user id: %w", m.ID, err)
	}
	if s.CategoryID, err = ulid.ParseStrict(m.CategoryID); err != nil {
		return core.Schedule{}, fmt.Errorf("schedule %s category id: %w", m.ID, err)
	}
	if s.AccountID, err = parseIDPtr(m.AccountID); err != nil {
		return core.Schedule{}, fmt.Errorf("schedule %s account id: %w", m.ID, err)
	}
	s.Title = m.Title
	s.Description = m.Description
	s.Amount = core.Money{Cents: m.AmountCents}
	s.TransactionType = core.TransactionType(m.TransactionType)
	s.Frequency = core.Frequency(m.Frequency)
	s.Interval = m.IntervalCount
	s.StartDate = core.DateOf(m.StartDate)
	s.EndDate = fromDatePtr(m.EndDate)
	s.DayOfWeek = m.DayOfWeek
	s.DayOfMonth = m.DayOfMonth
	s.Active = m.IsActive
	s.LastGeneratedDate = fromDatePtr(m.LastGeneratedDate)
	s.CreatedAt = m.CreatedAt
	s.UpdatedAt = m.UpdatedAt
	return s, nil
}

func toTransactionModel(t core.Transaction) transactionModel {
	return transactionModel{
		ID:                  t.ID.String(),
		UserID:              t.UserID.String(),
		CategoryID:          t.CategoryID.String(),
		AccountID:           idPtr(t.AccountID),
		Title:               t.Title,
		Description:         t.Description,
		AmountCents:         t.Amount.Cents,
		TransactionType:     string(t.Type),
		TransactionDate:     t.Date.Time,
		RecurringScheduleID: idPtr(t.ScheduleID),
		CreatedAt:           t.CreatedAt.UTC(),
	}
}

func toTransaction(m transactionModel, tags []string) (core.Transaction, error) {
	var (
		t   core.Transaction
		err error
	)
	if t.ID, err = ulid.ParseStrict(m.ID); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	if t.UserID, err = ulid.ParseStrict(m.UserID); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s user id: %w", m.ID, err)
	}
	if t.CategoryID, err = ulid.ParseStrict(m.CategoryID); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s category id: %w", m.ID, err)
	}
	if t.AccountID, err = parseIDPtr(m.AccountID); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s account id: %w", m.ID, err)
	}
	if t.ScheduleID, err = parseIDPtr(m.RecurringScheduleID); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s schedule id: %w", m.ID, err)
	}
	if t.TagIDs, err = parseIDs(tags); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s tags: %w", m.ID, err)
	}
	t.Title = m.Title
	t.Description = m.Description
	t.Amount = core.Money{Cents: m.AmountCents}
	t.Type = core.TransactionType(m.TransactionType)
	t.Date = core.DateOf(m.TransactionDate)
	t.CreatedAt = m.CreatedAt
	return t, nil
}

func toNotificationModel(n core.Notification) (notificationModel, error) {
	meta := n.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return notificationModel{}, fmt.Errorf("encode metadata: %w", err)
	}
	m := notificationModel{
		ID:         n.ID,
		UserID:     n.UserID.String(),
		Kind:       string(n.Kind),
		SourceKind: string(n.Source.Kind),
		SourceID:   n.Source.ID,
		Title:      n.Title,
		Body:       n.Body,
		Metadata:   string(raw),
		CreatedAt:  n.CreatedAt.UTC(),
	}
	if n.ReadAt != nil {
		t := n.ReadAt.UTC()
		m.ReadAt = &t
	}
	return m, nil
}

func toNotification(m notificationModel) (core.Notification, error) {
	userID, err := ulid.ParseStrict(m.UserID)
	if err != nil {
		return core.Notification{}, fmt.Errorf("notification %s user id: %w", m.ID, err)
	}
	meta := map[string]string{}
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &meta); err != nil {
			return core.Notification{}, fmt.Errorf("notification %s metadata: %w", m.ID, err)
		}
	}
	return core.Notification{
		ID:        m.ID,
		UserID:    userID,
		Kind:      core.NotificationKind(m.Kind),
		Source:    core.SourceRef{Kind: core.SourceKind(m.SourceKind), ID: m.SourceID},
		Title:     m.Title,
		Body:      m.Body,
		Metadata:  meta,
		CreatedAt: m.CreatedAt,
		ReadAt:    m.ReadAt,
	}, nil
}

func toPreferenceModel(p core.NotificationPreference) preferenceModel {
	return preferenceModel{
		UserID:    p.UserID.String(),
		Kind:      string(p.Kind),
		Enabled:   p.Enabled,
		Threshold: p.Threshold,
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func toPreference(m preferenceModel) (core.NotificationPreference, error) {
	userID, err := ulid.ParseStrict(m.UserID)
	if err != nil {
		return core.NotificationPreference{}, fmt.Errorf("preference %s user id: %w", m.Kind, err)
	}
	return core.NotificationPreference{
		UserID:    userID,
		Kind:      core.NotificationKind(m.Kind),
		Enabled:   m.Enabled,
		Threshold: m.Threshold,
		UpdatedAt: m.UpdatedAt,
	}, nil
}
