// Package access groups the Zeebe workers that drive access requests from a
// BPMN process.
package access

import (
	car "access-workflow/internal/workers/access/create-access-request"
	rar "access-workflow/internal/workers/access/respond-access-request"
	"access-workflow/pkg/registry"
)

// RegistryVersion is bumped whenever a worker's contract changes.
const RegistryVersion = "1.0.0"

// Registry builds the activity registry from the worker packages.
func Registry() *registry.ActivityRegistry {
	return &registry.ActivityRegistry{
		Version: RegistryVersion,
		Activities: []registry.Activity{
			car.Activity(),
			rar.Activity(),
		},
	}
}
