package workflow

import (
	"context"

	"access-workflow/internal/common/errors"
	"access-workflow/internal/common/logger"
	"access-workflow/internal/models"
	"access-workflow/internal/store"
)

// Inbox is the owner's view of their in-app notifications.
type Inbox struct {
	notifications store.NotificationStore
	logger        logger.Logger
}

func NewInbox(notifications store.NotificationStore, log logger.Logger) *Inbox {
	return &Inbox{
		notifications: notifications,
		logger:        log.WithFields(map[string]interface{}{"component": "inbox"}),
	}
}

func (i *Inbox) List(ctx context.Context, userID string, filter models.NotificationFilter) ([]*models.Notification, error) {
	if userID == "" {
		return nil, errors.NewInvalidArgumentError("caller is required")
	}
	if filter.Limit < 0 {
		return nil, errors.NewInvalidArgumentError("limit must not be negative")
	}
	return i.notifications.ListByUser(ctx, userID, filter)
}

// MarkRead flags one notification as read. Only its recipient may do so.
func (i *Inbox) MarkRead(ctx context.Context, id, callerID string) error {
	n, err := i.notifications.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != callerID {
		return errors.NewUnauthorizedError("notification belongs to another user")
	}
	if n.Read {
		return nil
	}
	return i.notifications.MarkRead(ctx, id)
}

func (i *Inbox) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, errors.NewInvalidArgumentError("caller is required")
	}
	changed, err := i.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	i.logger.Debug("Notifications marked read", map[string]interface{}{
		"userId":  userID,
		"changed": changed,
	})
	return changed, nil
}
