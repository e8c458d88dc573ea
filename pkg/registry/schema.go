// pkg/registry/schema.go
package registry

// ActivityRegistry lists the Zeebe task types served by the worker manager,
// so process modellers can see inputs, outputs and thrown error codes.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID              string                 `json:"id"`
	DisplayName     string                 `json:"displayName"`
	Description     string                 `json:"description"`
	Category        string                 `json:"category"`
	TaskType        string                 `json:"taskType"`
	ConfigKey       string                 `json:"configKey"`
	InputSchema     map[string]interface{} `json:"inputSchema"`
	OutputVariables []string               `json:"outputVariables"`
	ErrorCodes      []string               `json:"errorCodes"`
	Timeout         string                 `json:"timeout"`
	MaxJobsActive   int                    `json:"maxJobsActive"`
}
