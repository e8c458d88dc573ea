package respondaccessrequest

import (
	"access-workflow/internal/common/validation"
	"access-workflow/internal/models"
)

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"accessRequestId", "responderId", "response"},
		Properties: map[string]validation.Property{
			"accessRequestId": {
				Type:        "string",
				Description: "Request being answered",
				MinLength:   validation.IntPtr(1),
			},
			"responderId": {
				Type:        "string",
				Description: "User answering; must be the request target",
				MinLength:   validation.IntPtr(1),
			},
			"response": {
				Type:        "string",
				Description: "accepted or rejected, any case",
				Pattern:     "^(?i)(accept|accepted|reject|rejected)$",
			},
			"message": {
				Type:        "string",
				Description: "Optional note shown to the requester",
				MaxLength:   validation.IntPtr(models.MaxMessageLength),
			},
		},
		AdditionalProperties: true,
	}
}
