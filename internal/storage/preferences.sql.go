package storage

import (
	"context"
)

const upsertNotificationPreference = `-- name: UpsertNotificationPreference :exec
INSERT INTO notification_preferences (user_id, kind, enabled, threshold, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id, kind) DO UPDATE SET
    enabled = excluded.enabled,
    threshold = excluded.threshold,
    updated_at = excluded.updated_at
`

func (q *Queries) UpsertNotificationPreference(ctx context.Context, arg NotificationPreference) error {
	_, err := q.db.ExecContext(ctx, upsertNotificationPreference,
		arg.UserID,
		arg.Kind,
		arg.Enabled,
		arg.Threshold,
		arg.UpdatedAt,
	)
	return err
}

const getNotificationPreference = `-- name: GetNotificationPreference :one
SELECT user_id, kind, enabled, threshold, updated_at
FROM notification_preferences
WHERE user_id = ? AND kind = ?
`

func (q *Queries) GetNotificationPreference(ctx context.Context, userID, kind string) (NotificationPreference, error) {
	row := q.db.QueryRowContext(ctx, getNotificationPreference, userID, kind)
	var i NotificationPreference
	err := row.Scan(
		&i.UserID,
		&i.Kind,
		&i.Enabled,
		&i.Threshold,
		&i.UpdatedAt,
	)
	return i, err
}

const listNotificationPreferences = `-- name: ListNotificationPreferences :many
SELECT user_id, kind, enabled, threshold, updated_at
FROM notification_preferences
WHERE user_id = ?
ORDER BY kind
`

func (q *Queries) ListNotificationPreferences(ctx context.Context, userID string) ([]NotificationPreference, error) {
	rows, err := q.db.QueryContext(ctx, listNotificationPreferences, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []NotificationPreference
	for rows.Next() {
		var i NotificationPreference
		if err := rows.Scan(
			&i.UserID,
			&i.Kind,
			&i.Enabled,
			&i.Threshold,
			&i.UpdatedAt,
		); err != nil {
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
