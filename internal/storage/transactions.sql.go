package storage

import (
	"context"
)

const transactionColumns = `id, user_id, category_id, account_id, title, description, amount_cents,
    transaction_type, transaction_date, recurring_schedule_id, created_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (Transaction, error) {
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.CategoryID,
		&i.AccountID,
		&i.Title,
		&i.Description,
		&i.AmountCents,
		&i.TransactionType,
		&i.TransactionDate,
		&i.RecurringScheduleID,
		&i.CreatedAt,
	)
	return i, err
}

const createTransaction = `-- name: CreateTransaction :exec
INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateTransaction(ctx context.Context, arg Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID,
		arg.UserID,
		arg.CategoryID,
		arg.AccountID,
		arg.Title,
		arg.Description,
		arg.AmountCents,
		arg.TransactionType,
		arg.TransactionDate,
		arg.RecurringScheduleID,
		arg.CreatedAt,
	)
	return err
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const updateTransactionAmount = `-- name: UpdateTransactionAmount :execrows
UPDATE transactions SET amount_cents = ? WHERE id = ?
`

func (q *Queries) UpdateTransactionAmount(ctx context.Context, amountCents int64, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateTransactionAmount, amountCents, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTransaction = `-- name: DeleteTransaction :execrows
DELETE FROM transactions WHERE id = ?
`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listTransactionsBySchedule = `-- name: ListTransactionsBySchedule :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE recurring_schedule_id = ?
ORDER BY transaction_date, id
`

func (q *Queries) ListTransactionsBySchedule(ctx context.Context, scheduleID string) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsBySchedule, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		i, err := scanTransaction(rows)
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

const insertTransactionTag = `-- name: InsertTransactionTag :exec
INSERT INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING
`

func (q *Queries) InsertTransactionTag(ctx context.Context, transactionID, tagID string) error {
	_, err := q.db.ExecContext(ctx, insertTransactionTag, transactionID, tagID)
	return err
}

const listTransactionTags = `-- name: ListTransactionTags :many
SELECT tag_id FROM transaction_tags WHERE transaction_id = ? ORDER BY tag_id
`

func (q *Queries) ListTransactionTags(ctx context.Context, transactionID string) ([]string, error) {
	return q.listStrings(ctx, listTransactionTags, transactionID)
}
