package storage

import (
	"context"
	"database/sql"
	"time"
)

const goalColumns = `id, user_id, title, goal_type, target_amount_cents, starting_amount_cents,
    current_amount_cents, target_date, status, auto_track, tracking_method, tracking_criteria,
    contribution_amount_cents, contribution_frequency, completion_date, version, created_at, updated_at`

func scanGoal(row interface{ Scan(...interface{}) error }) (FinancialGoal, error) {
	var i FinancialGoal
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Title,
		&i.GoalType,
		&i.TargetAmountCents,
		&i.StartingAmountCents,
		&i.CurrentAmountCents,
		&i.TargetDate,
		&i.Status,
		&i.AutoTrack,
		&i.TrackingMethod,
		&i.TrackingCriteria,
		&i.ContributionAmountCents,
		&i.ContributionFrequency,
		&i.CompletionDate,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createGoal = `-- name: CreateGoal :exec
INSERT INTO financial_goals (` + goalColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateGoal(ctx context.Context, arg FinancialGoal) error {
	_, err := q.db.ExecContext(ctx, createGoal,
		arg.ID,
		arg.UserID,
		arg.Title,
		arg.GoalType,
		arg.TargetAmountCents,
		arg.StartingAmountCents,
		arg.CurrentAmountCents,
		arg.TargetDate,
		arg.Status,
		arg.AutoTrack,
		arg.TrackingMethod,
		arg.TrackingCriteria,
		arg.ContributionAmountCents,
		arg.ContributionFrequency,
		arg.CompletionDate,
		arg.Version,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getGoal = `-- name: GetGoal :one
SELECT ` + goalColumns + ` FROM financial_goals WHERE id = ?
`

func (q *Queries) GetGoal(ctx context.Context, id string) (FinancialGoal, error) {
	return scanGoal(q.db.QueryRowContext(ctx, getGoal, id))
}

const listGoalIDs = `-- name: ListGoalIDs :many
SELECT id FROM financial_goals ORDER BY id
`

func (q *Queries) ListGoalIDs(ctx context.Context) ([]string, error) {
	return q.listStrings(ctx, listGoalIDs)
}

const listActiveAutoTrackedGoals = `-- name: ListActiveAutoTrackedGoals :many
SELECT ` + goalColumns + ` FROM financial_goals
WHERE user_id = ? AND status = 'active' AND auto_track = 1
ORDER BY id
`

func (q *Queries) ListActiveAutoTrackedGoals(ctx context.Context, userID string) ([]FinancialGoal, error) {
	rows, err := q.db.QueryContext(ctx, listActiveAutoTrackedGoals, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FinancialGoal
	for rows.Next() {
		i, err := scanGoal(rows)
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

const updateGoalProgress = `-- name: UpdateGoalProgress :execrows
UPDATE financial_goals
SET current_amount_cents = ?, status = ?, completion_date = ?, updated_at = ?, version = version + 1
WHERE id = ? AND version = ?
`

type UpdateGoalProgressParams struct {
	CurrentAmountCents int64
	Status             string
	CompletionDate     sql.NullString
	UpdatedAt          time.Time
	ID                 string
	Version            int64
}

func (q *Queries) UpdateGoalProgress(ctx context.Context, arg UpdateGoalProgressParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateGoalProgress,
		arg.CurrentAmountCents,
		arg.Status,
		arg.CompletionDate,
		arg.UpdatedAt,
		arg.ID,
		arg.Version,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteGoal = `-- name: DeleteGoal :execrows
DELETE FROM financial_goals WHERE id = ?
`

func (q *Queries) DeleteGoal(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteGoal, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertGoalCategory = `-- name: InsertGoalCategory :exec
INSERT INTO goal_categories (goal_id, category_id) VALUES (?, ?) ON CONFLICT DO NOTHING
`

func (q *Queries) InsertGoalCategory(ctx context.Context, goalID, categoryID string) error {
	_, err := q.db.ExecContext(ctx, insertGoalCategory, goalID, categoryID)
	return err
}

const insertGoalTag = `-- name: InsertGoalTag :exec
INSERT INTO goal_tags (goal_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING
`

func (q *Queries) InsertGoalTag(ctx context.Context, goalID, tagID string) error {
	_, err := q.db.ExecContext(ctx, insertGoalTag, goalID, tagID)
	return err
}

const listGoalCategories = `-- name: ListGoalCategories :many
SELECT category_id FROM goal_categories WHERE goal_id = ? ORDER BY category_id
`

func (q *Queries) ListGoalCategories(ctx context.Context, goalID string) ([]string, error) {
	return q.listStrings(ctx, listGoalCategories, goalID)
}

const listGoalTags = `-- name: ListGoalTags :many
SELECT tag_id FROM goal_tags WHERE goal_id = ? ORDER BY tag_id
`

func (q *Queries) ListGoalTags(ctx context.Context, goalID string) ([]string, error) {
	return q.listStrings(ctx, listGoalTags, goalID)
}

const contributionColumns = `id, goal_id, transaction_id, amount_cents, contribution_type, notes, created_at`

func scanContribution(row interface{ Scan(...interface{}) error }) (GoalContribution, error) {
	var i GoalContribution
	err := row.Scan(
		&i.ID,
		&i.GoalID,
		&i.TransactionID,
		&i.AmountCents,
		&i.ContributionType,
		&i.Notes,
		&i.CreatedAt,
	)
	return i, err
}

const createContribution = `-- name: CreateContribution :exec
INSERT INTO goal_contributions (` + contributionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateContribution(ctx context.Context, arg GoalContribution) error {
	_, err := q.db.ExecContext(ctx, createContribution,
		arg.ID,
		arg.GoalID,
		arg.TransactionID,
		arg.AmountCents,
		arg.ContributionType,
		arg.Notes,
		arg.CreatedAt,
	)
	return err
}

const getContribution = `-- name: GetContribution :one
SELECT ` + contributionColumns + ` FROM goal_contributions WHERE id = ?
`

func (q *Queries) GetContribution(ctx context.Context, id string) (GoalContribution, error) {
	return scanContribution(q.db.QueryRowContext(ctx, getContribution, id))
}

const listContributionsByGoal = `-- name: ListContributionsByGoal :many
SELECT ` + contributionColumns + ` FROM goal_contributions
WHERE goal_id = ?
ORDER BY created_at, id
`

func (q *Queries) ListContributionsByGoal(ctx context.Context, goalID string) ([]GoalContribution, error) {
	return q.listContributions(ctx, listContributionsByGoal, goalID)
}

const listContributionsByTransaction = `-- name: ListContributionsByTransaction :many
SELECT ` + contributionColumns + ` FROM goal_contributions
WHERE transaction_id = ?
ORDER BY created_at, id
`

func (q *Queries) ListContributionsByTransaction(ctx context.Context, transactionID string) ([]GoalContribution, error) {
	return q.listContributions(ctx, listContributionsByTransaction, transactionID)
}

const listContributionsSince = `-- name: ListContributionsSince :many
SELECT ` + contributionColumns + ` FROM goal_contributions
WHERE goal_id = ? AND created_at >= ?
ORDER BY created_at, id
`

func (q *Queries) ListContributionsSince(ctx context.Context, goalID string, since time.Time) ([]GoalContribution, error) {
	return q.listContributions(ctx, listContributionsSince, goalID, since)
}

const deleteContribution = `-- name: DeleteContribution :execrows
DELETE FROM goal_contributions WHERE id = ? AND goal_id = ?
`

func (q *Queries) DeleteContribution(ctx context.Context, id, goalID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteContribution, id, goalID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateContributionAmount = `-- name: UpdateContributionAmount :execrows
UPDATE goal_contributions SET amount_cents = ? WHERE id = ? AND goal_id = ?
`

func (q *Queries) UpdateContributionAmount(ctx context.Context, amountCents int64, id, goalID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateContributionAmount, amountCents, id, goalID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *Queries) listContributions(ctx context.Context, query string, args ...interface{}) ([]GoalContribution, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GoalContribution
	for rows.Next() {
		i, err := scanContribution(rows)
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

func (q *Queries) listStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
