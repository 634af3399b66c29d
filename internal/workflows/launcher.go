package workflows

import (
	"context"
	"fmt"

	"learnflow/internal/models"

	log "github.com/sirupsen/logrus"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Starter is the part of client.Client the launcher uses.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Launcher hands started runs to a Temporal worker.
type Launcher struct {
	client    Starter
	taskQueue string
}

func NewLauncher(c Starter, taskQueue string) *Launcher {
	return &Launcher{client: c, taskQueue: taskQueue}
}

func (l *Launcher) Launch(ctx context.Context, projectID string, st models.JobStatus, cfg models.GenerationConfig) error {
	opts := client.StartWorkflowOptions{
		ID:                    WorkflowID(projectID),
		TaskQueue:             l.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_TERMINATE_IF_RUNNING,
	}
	run, err := l.client.ExecuteWorkflow(ctx, opts, GenerationWorkflow, GenerationInput{
		ProjectID: projectID,
		RunID:     st.RunID,
		Step:      st.Step,
		Stages:    st.Stages,
		Config:    cfg,
	})
	if err != nil {
		return fmt.Errorf("start generation workflow: %w", err)
	}
	log.WithFields(log.Fields{
		"project_id":  projectID,
		"run_id":      st.RunID,
		"workflow_id": run.GetID(),
		"execution":   run.GetRunID(),
	}).Info("workflows: generation started")
	return nil
}
