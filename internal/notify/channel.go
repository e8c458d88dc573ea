// internal/notify/channel.go
package notify

import (
	"context"

	"access-workflow/internal/models"
)

// Address is where a single user can be reached on the external channels.
type Address struct {
	DisplayName string
	PushTokens  []string
	Email       string
}

// Message is a rendered notification handed to a channel.
type Message struct {
	NotificationID string
	UserID         string
	Type           models.NotificationType
	Title          string
	Body           string
	Payload        models.Payload
}

// Receipt summarises what a provider accepted.
type Receipt struct {
	Provider   string
	MessageIDs []string
	Delivered  int
	Failed     int
}

// ChannelSender attempts delivery on one external channel. Implementations
// keep no state between calls and persist nothing.
type ChannelSender interface {
	Channel() models.Channel
	Send(ctx context.Context, addr Address, msg Message) (*Receipt, error)
}
