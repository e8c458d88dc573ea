package createaccessrequest

import (
	"context"

	"access-workflow/internal/models"
	"access-workflow/internal/workflow"
)

type Input struct {
	RequesterID string `json:"requesterId"`
	TargetID    string `json:"targetId"`
	Message     string `json:"message,omitempty"`
}

type Output struct {
	AccessRequestID     string               `json:"accessRequestId"`
	AccessRequestStatus models.RequestStatus `json:"accessRequestStatus"`
}

// Creator is the workflow operation this worker drives.
type Creator interface {
	Create(ctx context.Context, in workflow.CreateInput) (*models.AccessRequest, error)
}
