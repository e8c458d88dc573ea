// Package store persists access requests and in-app notifications.
package store

import (
	"context"
	"embed"
	"time"

	"access-workflow/internal/models"
)

// Migrations holds the schema for the postgres stores and the directory tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the *.up.sql files.
const MigrationsDir = "migrations"

// DefaultListLimit caps list queries when the caller does not.
const DefaultListLimit = 50

// MaxListLimit is the largest page any list query returns.
const MaxListLimit = 200

// RequestStore persists AccessRequests and enforces that a requester/target
// pair has at most one pending or accepted request.
type RequestStore interface {
	// Insert stores a new request. A second active request for the same pair
	// fails with CONFLICT.
	Insert(ctx context.Context, req *models.AccessRequest) error
	// Get fails with NOT_FOUND when id is unknown.
	Get(ctx context.Context, id string) (*models.AccessRequest, error)
	// FindActive returns the pending or accepted request for the pair, or nil.
	FindActive(ctx context.Context, requesterID, targetID string) (*models.AccessRequest, error)
	// UpdateStatus moves a request from `from` to `to` only if it is still in
	// `from`; otherwise CONFLICT (or NOT_FOUND for an unknown id).
	UpdateStatus(ctx context.Context, id string, from, to models.RequestStatus, message string, respondedAt time.Time) (*models.AccessRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]*models.AccessRequest, error)
}

// NotificationStore persists in-app notification records.
type NotificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, id string) (*models.Notification, error)
	ListByUser(ctx context.Context, userID string, filter models.NotificationFilter) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	// MarkAllRead returns the number of notifications that changed.
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
