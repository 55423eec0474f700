package storage

import (
	"context"
	"database/sql"
	"time"
)

const scheduleColumns = `id, user_id, category_id, account_id, title, description, amount_cents,
    transaction_type, frequency, interval_count, start_date, end_date, day_of_week, day_of_month,
    is_active, last_generated_date, created_at, updated_at`

func scanSchedule(row interface{ Scan(...interface{}) error }) (RecurringSchedule, error) {
	var i RecurringSchedule
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.CategoryID,
		&i.AccountID,
		&i.Title,
		&i.Description,
		&i.AmountCents,
		&i.TransactionType,
		&i.Frequency,
		&i.IntervalCount,
		&i.StartDate,
		&i.EndDate,
		&i.DayOfWeek,
		&i.DayOfMonth,
		&i.IsActive,
		&i.LastGeneratedDate,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createSchedule = `-- name: CreateSchedule :exec
INSERT INTO recurring_schedules (` + scheduleColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateSchedule(ctx context.Context, arg RecurringSchedule) error {
	_, err := q.db.ExecContext(ctx, createSchedule,
		arg.ID,
		arg.UserID,
		arg.CategoryID,
		arg.AccountID,
		arg.Title,
		arg.Description,
		arg.AmountCents,
		arg.TransactionType,
		arg.Frequency,
		arg.IntervalCount,
		arg.StartDate,
		arg.EndDate,
		arg.DayOfWeek,
		arg.DayOfMonth,
		arg.IsActive,
		arg.LastGeneratedDate,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getSchedule = `-- name: GetSchedule :one
SELECT ` + scheduleColumns + ` FROM recurring_schedules WHERE id = ?
`

func (q *Queries) GetSchedule(ctx context.Context, id string) (RecurringSchedule, error) {
	return scanSchedule(q.db.QueryRowContext(ctx, getSchedule, id))
}

const listActiveSchedules = `-- name: ListActiveSchedules :many
SELECT ` + scheduleColumns + ` FROM recurring_schedules WHERE is_active = 1 ORDER BY id
`

func (q *Queries) ListActiveSchedules(ctx context.Context) ([]RecurringSchedule, error) {
	return q.listSchedules(ctx, listActiveSchedules)
}

const listActiveSchedulesByUser = `-- name: ListActiveSchedulesByUser :many
SELECT ` + scheduleColumns + ` FROM recurring_schedules WHERE is_active = 1 AND user_id = ? ORDER BY id
`

func (q *Queries) ListActiveSchedulesByUser(ctx context.Context, userID string) ([]RecurringSchedule, error) {
	return q.listSchedules(ctx, listActiveSchedulesByUser, userID)
}

const setScheduleActive = `-- name: SetScheduleActive :execrows
UPDATE recurring_schedules SET is_active = ?, updated_at = ? WHERE id = ?
`

func (q *Queries) SetScheduleActive(ctx context.Context, active bool, updatedAt time.Time, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, setScheduleActive, active, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteSchedule = `-- name: DeleteSchedule :execrows
DELETE FROM recurring_schedules WHERE id = ?
`

func (q *Queries) DeleteSchedule(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSchedule, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// The anchor compare uses IS so that a NULL anchor matches a NULL argument.
const advanceScheduleAnchor = `-- name: AdvanceScheduleAnchor :execrows
UPDATE recurring_schedules
SET last_generated_date = ?, updated_at = ?
WHERE id = ? AND last_generated_date IS ?
`

type AdvanceScheduleAnchorParams struct {
	To        sql.NullString
	UpdatedAt time.Time
	ID        string
	From      sql.NullString
}

func (q *Queries) AdvanceScheduleAnchor(ctx context.Context, arg AdvanceScheduleAnchorParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, advanceScheduleAnchor, arg.To, arg.UpdatedAt, arg.ID, arg.From)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) listSchedules(ctx context.Context, query string, args ...interface{}) ([]RecurringSchedule, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringSchedule
	for rows.Next() {
		i, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
