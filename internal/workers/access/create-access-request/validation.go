package createaccessrequest

import (
	"access-workflow/internal/common/validation"
	"access-workflow/internal/models"
)

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"requesterId", "targetId"},
		Properties: map[string]validation.Property{
			"requesterId": {
				Type:        "string",
				Description: "User asking for access",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(128),
			},
			"targetId": {
				Type:        "string",
				Description: "User whose consent is requested",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(128),
			},
			"message": {
				Type:        "string",
				Description: "Optional note shown to the target",
				MaxLength:   validation.IntPtr(models.MaxMessageLength),
			},
		},
		// process instances carry unrelated variables
		AdditionalProperties: true,
	}
}
