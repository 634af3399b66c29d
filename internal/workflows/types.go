package workflows

import "learnflow/internal/models"

type GenerationInput struct {
	ProjectID string                  `json:"project_id"`
	RunID     string                  `json:"run_id"`
	Step      models.Step             `json:"step"`
	Stages    []models.Step           `json:"stages"`
	Config    models.GenerationConfig `json:"config"`
}

// GenerationProgress is what the GetProgress query returns while a run executes.
type GenerationProgress struct {
	ProjectID   string            `json:"project_id"`
	RunID       string            `json:"run_id"`
	CurrentStep models.Step       `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	Steps       map[string]string `json:"steps"`
}

const (
	ResultComplete   = "complete"
	ResultFailed     = "failed"
	ResultSuperseded = "superseded"
)
