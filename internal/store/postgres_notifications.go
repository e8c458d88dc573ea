// internal/store/postgres_notifications.go
package store

import (
	"context"
	"database/sql"

	"access-workflow/internal/common/database"
	"access-workflow/internal/common/errors"
	"access-workflow/internal/models"
)

const notificationColumns = `id, user_id, type, title, body, payload, read, created_at`

// PostgresNotificationStore is the NotificationStore backed by the notifications table.
type PostgresNotificationStore struct {
	db *sql.DB
}

func NewPostgresNotificationStore(db *sql.DB) *PostgresNotificationStore {
	return &PostgresNotificationStore{db: db}
}

func (s *PostgresNotificationStore) Insert(ctx context.Context, n *models.Notification) error {
	payload, err := models.EncodePayload(n.Payload)
	if err != nil {
		return errors.NewInvalidArgumentError(err.Error())
	}

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := s.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		string(n.Type),
		n.Title,
		n.Body,
		payload,
		n.Read,
		n.CreatedAt,
	); err != nil {
		return errors.NewStoreFailureError("insert notification", err)
	}
	return nil
}

func (s *PostgresNotificationStore) Get(ctx context.Context, id string) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows || database.IsInvalidText(err) {
		return nil, errors.NewNotFoundError("notification", id)
	}
	if err != nil {
		return nil, errors.NewStoreFailureError("get notification", err)
	}
	return n, nil
}

func (s *PostgresNotificationStore) ListByUser(ctx context.Context, userID string, filter models.NotificationFilter) ([]*models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, userID, filter.UnreadOnly, clampLimit(filter.Limit))
	if err != nil {
		return nil, errors.NewStoreFailureError("list notifications", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.NewStoreFailureError("scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreFailureError("list notifications", err)
	}
	return out, nil
}

func (s *PostgresNotificationStore) MarkRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if database.IsInvalidText(err) {
		return errors.NewNotFoundError("notification", id)
	}
	if err != nil {
		return errors.NewStoreFailureError("mark notification read", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewStoreFailureError("mark notification read", err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("notification", id)
	}
	return nil
}

func (s *PostgresNotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return 0, errors.NewStoreFailureError("mark all notifications read", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewStoreFailureError("mark all notifications read", err)
	}
	return affected, nil
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n       models.Notification
		typ     string
		payload []byte
	)
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&typ,
		&n.Title,
		&n.Body,
		&payload,
		&n.Read,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}

	n.Type = models.NotificationType(typ)
	p, err := models.DecodePayload(n.Type, payload)
	if err != nil {
		return nil, err
	}
	n.Payload = p
	return &n, nil
}
