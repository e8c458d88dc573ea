// Package directory resolves users for the workflow and the notification
// fanout. The profile service owns the data; this package only reads it.
package directory

import (
	"context"
	"database/sql"

	"access-workflow/internal/common/errors"
	"access-workflow/internal/models"
)

// UserDirectory looks up a user by id. Unknown ids fail with NOT_FOUND.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// PostgresDirectory reads users and their push endpoints from postgres.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := d.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, push_enabled, email_enabled
		FROM users
		WHERE id = $1`, id,
	).Scan(&u.ID, &u.DisplayName, &u.Email, &u.Preferences.PushEnabled, &u.Preferences.EmailEnabled)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("user", id)
	}
	if err != nil {
		return nil, errors.NewStoreFailureError("get user", err)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT endpoint_arn
		FROM user_push_tokens
		WHERE user_id = $1
		ORDER BY created_at`, id)
	if err != nil {
		return nil, errors.NewStoreFailureError("get push tokens", err)
	}
	defer rows.Close()

	for rows.Next() {
		var arn string
		if err := rows.Scan(&arn); err != nil {
			return nil, errors.NewStoreFailureError("scan push token", err)
		}
		u.PushTokens = append(u.PushTokens, arn)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreFailureError("get push tokens", err)
	}

	return &u, nil
}

// StaticDirectory serves a fixed set of users. Used in tests and local runs.
type StaticDirectory map[string]*models.User

func (d StaticDirectory) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := d[id]
	if !ok {
		return nil, errors.NewNotFoundError("user", id)
	}
	c := *u
	c.PushTokens = append([]string(nil), u.PushTokens...)
	return &c, nil
}
