package createaccessrequest

import (
	"access-workflow/internal/common/errors"
	"access-workflow/pkg/registry"
)

// Activity describes this worker for the activity registry.
func Activity() registry.Activity {
	cfg := DefaultConfig()
	return registry.Activity{
		ID:              ConfigKey,
		DisplayName:     "Create Access Request",
		Description:     "Opens a pending access request from requesterId to targetId and notifies the target",
		Category:        "access",
		TaskType:        TaskType,
		ConfigKey:       ConfigKey,
		InputSchema:     GetInputSchema().ToMap(),
		OutputVariables: []string{"accessRequestId", "accessRequestStatus"},
		ErrorCodes: []string{
			errors.BPMNErrorMapping[errors.ErrCodeInvalidArgument],
			errors.BPMNErrorMapping[errors.ErrCodeNotFound],
			errors.BPMNErrorMapping[errors.ErrCodeConflict],
			errors.BPMNErrorMapping[errors.ErrCodeInputParsing],
		},
		Timeout:       cfg.Timeout.String(),
		MaxJobsActive: cfg.MaxJobsActive,
	}
}
