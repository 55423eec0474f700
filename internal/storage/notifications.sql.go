package storage

import (
	"context"
)

const insertNotification = `-- name: InsertNotification :execrows
INSERT INTO notifications (id, user_id, kind, source_kind, source_id, title, body, metadata, created_at, read_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING
`

func (q *Queries) InsertNotification(ctx context.Context, arg Notification) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertNotification,
		arg.ID,
		arg.UserID,
		arg.Kind,
		arg.SourceKind,
		arg.SourceID,
		arg.Title,
		arg.Body,
		arg.Metadata,
		arg.CreatedAt,
		arg.ReadAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listNotificationsByUser = `-- name: ListNotificationsByUser :many
SELECT id, user_id, kind, source_kind, source_id, title, body, metadata, created_at, read_at
FROM notifications
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`

func (q *Queries) ListNotificationsByUser(ctx context.Context, userID string, limit int64) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotificationsByUser, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		var i Notification
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Kind,
			&i.SourceKind,
			&i.SourceID,
			&i.Title,
			&i.Body,
			&i.Metadata,
			&i.CreatedAt,
			&i.ReadAt,
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
