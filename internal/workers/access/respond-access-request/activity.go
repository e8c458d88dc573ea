package respondaccessrequest

import (
	"access-workflow/internal/common/errors"
	"access-workflow/pkg/registry"
)

// Activity describes this worker for the activity registry.
func Activity() registry.Activity {
	cfg := DefaultConfig()
	return registry.Activity{
		ID:              ConfigKey,
		DisplayName:     "Respond To Access Request",
		Description:     "Records the target's accept or reject on a pending request and notifies the requester",
		Category:        "access",
		TaskType:        TaskType,
		ConfigKey:       ConfigKey,
		InputSchema:     GetInputSchema().ToMap(),
		OutputVariables: []string{"accessRequestId", "accessRequestStatus", "requesterId", "respondedAt"},
		ErrorCodes: []string{
			errors.BPMNErrorMapping[errors.ErrCodeInvalidArgument],
			errors.BPMNErrorMapping[errors.ErrCodeNotFound],
			errors.BPMNErrorMapping[errors.ErrCodeUnauthorized],
			errors.BPMNErrorMapping[errors.ErrCodeConflict],
			errors.BPMNErrorMapping[errors.ErrCodeInputParsing],
		},
		Timeout:       cfg.Timeout.String(),
		MaxJobsActive: cfg.MaxJobsActive,
	}
}
