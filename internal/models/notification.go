// internal/models/notification.go
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationRequestCreated   NotificationType = "request_created"
	NotificationRequestResponded NotificationType = "request_responded"
)

// Notification is the durable in-app record; the only delivery guarantee.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Payload   Payload          `json:"payload"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NotificationFilter narrows NotificationStore.ListByUser.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
}

// Payload is the type-specific body of a notification. The concrete type
// determines the notification type.
type Payload interface {
	Type() NotificationType
}

type RequestCreatedPayload struct {
	RequestID     string `json:"requestId"`
	RequesterID   string `json:"requesterId"`
	RequesterName string `json:"requesterName"`
	Message       string `json:"message,omitempty"`
}

func (RequestCreatedPayload) Type() NotificationType { return NotificationRequestCreated }

type RequestRespondedPayload struct {
	RequestID  string        `json:"requestId"`
	TargetID   string        `json:"targetId"`
	TargetName string        `json:"targetName"`
	Outcome    RequestStatus `json:"outcome"`
	Message    string        `json:"message,omitempty"`
}

func (RequestRespondedPayload) Type() NotificationType { return NotificationRequestResponded }

// UnknownPayloadTypeError is returned by DecodePayload for an unregistered type.
type UnknownPayloadTypeError struct {
	Type NotificationType
}

func (e *UnknownPayloadTypeError) Error() string {
	return fmt.Sprintf("unknown notification type %q", e.Type)
}

func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil payload")
	}
	return json.Marshal(p)
}

func DecodePayload(t NotificationType, data []byte) (Payload, error) {
	switch t {
	case NotificationRequestCreated:
		var p RequestCreatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return p, nil
	case NotificationRequestResponded:
		var p RequestRespondedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
		return p, nil
	default:
		return nil, &UnknownPayloadTypeError{Type: t}
	}
}
