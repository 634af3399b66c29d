package activities

import "learnflow/internal/models"

type RunStageInput struct {
	ProjectID string                  `json:"project_id"`
	RunID     string                  `json:"run_id"`
	Step      models.Step             `json:"step"`
	Config    models.GenerationConfig `json:"config"`
}

type AdvanceRunInput struct {
	ProjectID string      `json:"project_id"`
	RunID     string      `json:"run_id"`
	Step      models.Step `json:"step"`
}

// AdvanceRunOutput reports Stale when a newer start replaced the run.
type AdvanceRunOutput struct {
	Stale   bool   `json:"stale"`
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

type FailRunInput struct {
	ProjectID string `json:"project_id"`
	RunID     string `json:"run_id"`
	Message   string `json:"message"`
}

type FinalizeInput struct {
	ProjectID string `json:"project_id"`
}
