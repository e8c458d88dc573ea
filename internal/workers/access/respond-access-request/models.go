package respondaccessrequest

import (
	"context"
	"time"

	"access-workflow/internal/models"
	"access-workflow/internal/workflow"
)

type Input struct {
	RequestID string `json:"accessRequestId"`
	CallerID  string `json:"responderId"`
	Response  string `json:"response"`
	Message   string `json:"message,omitempty"`
}

type Output struct {
	AccessRequestID     string               `json:"accessRequestId"`
	AccessRequestStatus models.RequestStatus `json:"accessRequestStatus"`
	RequesterID         string               `json:"requesterId"`
	RespondedAt         time.Time            `json:"respondedAt"`
}

// Responder is the workflow operation this worker drives.
type Responder interface {
	Respond(ctx context.Context, in workflow.RespondInput) (*models.AccessRequest, error)
}
