// internal/models/user.go
package models

// User is the read-only view of a directory entry the workflow needs.
type User struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	Email       string          `json:"email,omitempty"`
	PushTokens  []string        `json:"pushTokens,omitempty"` // SNS platform endpoint ARNs
	Preferences UserPreferences `json:"preferences"`
}

type UserPreferences struct {
	PushEnabled  bool `json:"pushEnabled"`
	EmailEnabled bool `json:"emailEnabled"`
}
