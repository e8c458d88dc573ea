// internal/models/delivery.go
package models

import "time"

type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

type DeliveryOutcome string

const (
	DeliverySuccess DeliveryOutcome = "success"
	DeliveryFailure DeliveryOutcome = "failure"
)

// DeliveryAttempt describes one channel send for diagnostics. It is logged and
// indexed, never read back by the workflow.
type DeliveryAttempt struct {
	NotificationID string                 `json:"notificationId"`
	UserID         string                 `json:"userId"`
	Type           NotificationType       `json:"type"`
	Channel        Channel                `json:"channel"`
	Outcome        DeliveryOutcome        `json:"outcome"`
	Error          string                 `json:"error,omitempty"`
	Detail         map[string]interface{} `json:"detail,omitempty"`
	LatencyMs      int64                  `json:"latencyMs"`
	TraceID        string                 `json:"traceId,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}
