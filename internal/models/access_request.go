// internal/models/access_request.go
package models

import (
	"strings"
	"time"
)

// MaxMessageLength bounds request and response messages, in runes.
const MaxMessageLength = 500

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// BlocksNewRequest reports whether a request in this status counts toward the
// one-active-request-per-pair rule.
func (s RequestStatus) BlocksNewRequest() bool {
	return s == StatusPending || s == StatusAccepted
}

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// ParseResponse maps a caller-supplied response onto a terminal status.
// "accept"/"accepted" and "reject"/"rejected" are accepted in any case.
func ParseResponse(s string) (RequestStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept", "accepted":
		return StatusAccepted, true
	case "reject", "rejected":
		return StatusRejected, true
	}
	return "", false
}

// AccessRequest is one user's request for a privileged grant from another.
type AccessRequest struct {
	ID              string        `json:"id"`
	RequesterID     string        `json:"requesterId"`
	TargetID        string        `json:"targetId"`
	Message         string        `json:"message,omitempty"`
	Status          RequestStatus `json:"status"`
	ResponseMessage string        `json:"responseMessage,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	RespondedAt     *time.Time    `json:"respondedAt,omitempty"`
}

// ListRole selects which side of a request the caller is on.
type ListRole string

const (
	RoleIncoming ListRole = "incoming" // caller is the target
	RoleOutgoing ListRole = "outgoing" // caller is the requester
)

// RequestFilter narrows RequestStore.List.
type RequestFilter struct {
	UserID string
	Role   ListRole
	Status RequestStatus // empty for any
	Limit  int
}
