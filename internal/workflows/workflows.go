package workflows

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"learnflow/internal/activities"
	"learnflow/internal/job"
	"learnflow/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetProgress = "GetProgress"

// WorkflowID is the one workflow a project can have running; starting again
// terminates the previous execution.
func WorkflowID(projectID string) string {
	return "generate-" + projectID
}

// GenerationWorkflow runs the stages of one started run. The tracker rejects
// transitions from a replaced run, which ends the workflow as superseded.
func GenerationWorkflow(ctx workflow.Context, input GenerationInput) (string, error) {
	progress := GenerationProgress{
		ProjectID:   input.ProjectID,
		RunID:       input.RunID,
		CurrentStep: input.Step,
		Status:      models.JobRunning,
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (GenerationProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	p := job.PipelineOf(input.Stages)
	if p.Len() == 0 {
		p = job.NewPipeline(input.Config)
	}
	step := input.Step
	for step != models.StepComplete {
		progress.CurrentStep = step
		progress.Steps[string(step)] = "processing"
		err := workflow.ExecuteActivity(ctx, "RunStageActivity", activities.RunStageInput{
			ProjectID: input.ProjectID,
			RunID:     input.RunID,
			Step:      step,
			Config:    input.Config,
		}).Get(ctx, nil)
		if err != nil {
			progress.Steps[string(step)] = "failed"
			return failRun(ctx, &progress, input, err)
		}
		progress.Steps[string(step)] = "done"

		next, ok := p.Next(step)
		if !ok {
			return failRun(ctx, &progress, input, fmt.Errorf("pipeline has no stage after %s", step))
		}
		if next == models.StepComplete {
			// a missing publish draft does not fail the run
			_ = workflow.ExecuteActivity(ctx, "FinalizeActivity", activities.FinalizeInput{ProjectID: input.ProjectID}).Get(ctx, nil)
		}
		var adv activities.AdvanceRunOutput
		if err := workflow.ExecuteActivity(ctx, "AdvanceRunActivity", activities.AdvanceRunInput{
			ProjectID: input.ProjectID,
			RunID:     input.RunID,
			Step:      next,
		}).Get(ctx, &adv); err != nil {
			return failRun(ctx, &progress, input, err)
		}
		if adv.Stale {
			progress.Status = ResultSuperseded
			return ResultSuperseded, nil
		}
		step = next
	}
	progress.CurrentStep = models.StepComplete
	progress.Status = models.JobComplete
	return ResultComplete, nil
}

func failRun(ctx workflow.Context, progress *GenerationProgress, input GenerationInput, cause error) (string, error) {
	msg := rootMessage(cause)
	progress.Status = models.JobError
	progress.FailReason = msg
	if err := workflow.ExecuteActivity(ctx, "FailRunActivity", activities.FailRunInput{
		ProjectID: input.ProjectID,
		RunID:     input.RunID,
		Message:   msg,
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	return ResultFailed, nil
}

// rootMessage strips the activity and application error wrappers so the status
// document carries the stage's own message.
func rootMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		msg, _, _ := strings.Cut(appErr.Error(), " (type: ")
		return msg
	}
	return err.Error()
}
