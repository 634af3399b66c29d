package activities

import (
	"context"
	"errors"

	"learnflow/internal/config"
	"learnflow/internal/errs"
	"learnflow/internal/job"
	"learnflow/internal/pipeline"
	"learnflow/internal/providers"
	"learnflow/internal/storage"
	"learnflow/internal/util"

	log "github.com/sirupsen/logrus"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

const (
	errTypeStage = "StageFailed"
	errTypeState = "InvalidState"
)

type Activities struct {
	tracker   *job.Tracker
	generator *pipeline.Generator
}

func New(cfg config.Config, store *storage.Store, tracker *job.Tracker) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	log.WithField("llm_providers", pm.LLMCount()).Info("activities ready")
	return NewWith(tracker, pipeline.NewGenerator(store, pm, cfg)), nil
}

func NewWith(tracker *job.Tracker, generator *pipeline.Generator) *Activities {
	return &Activities{tracker: tracker, generator: generator}
}

// RunStageActivity produces one stage's artifacts. Failures no other attempt
// could fix come back non-retryable.
func (a *Activities) RunStageActivity(ctx context.Context, in RunStageInput) error {
	logger := log.WithFields(log.Fields{"project_id": in.ProjectID, "run_id": in.RunID, "step": in.Step})
	if info := activity.GetInfo(ctx); info.Attempt > 1 {
		logger = logger.WithField("attempt", info.Attempt)
	}
	err := a.generator.RunStage(ctx, in.ProjectID, in.Step, in.Config)
	if err == nil {
		return nil
	}
	if permanent(err) {
		logger.WithError(err).Warn("activities: stage failed permanently")
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypeStage, nil)
	}
	return err
}

func (a *Activities) AdvanceRunActivity(ctx context.Context, in AdvanceRunInput) (AdvanceRunOutput, error) {
	st, err := a.tracker.Advance(ctx, in.ProjectID, in.RunID, in.Step)
	switch {
	case errors.Is(err, job.ErrStaleRun), errors.Is(err, job.ErrTerminal):
		return AdvanceRunOutput{Stale: true}, nil
	case errors.Is(err, job.ErrInvalidTransition), errors.Is(err, job.ErrPercentRegression):
		return AdvanceRunOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), errTypeState, nil)
	case err != nil:
		return AdvanceRunOutput{}, err
	}
	return AdvanceRunOutput{Percent: st.Percent, Status: st.Status}, nil
}

// FailRunActivity latches the error. A run that was already replaced is left alone.
func (a *Activities) FailRunActivity(ctx context.Context, in FailRunInput) error {
	_, err := a.tracker.Fail(ctx, in.ProjectID, in.RunID, in.Message)
	if errors.Is(err, job.ErrStaleRun) || errors.Is(err, job.ErrTerminal) {
		return nil
	}
	return err
}

func (a *Activities) FinalizeActivity(ctx context.Context, in FinalizeInput) error {
	return a.generator.Finalize(ctx, in.ProjectID)
}

func permanent(err error) bool {
	if errors.Is(err, util.ErrNoExtractableText) || errs.IsNotFound(err) {
		return true
	}
	if _, ok := errs.AsValidation(err); ok {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	kind := providers.ClassifyError(err)
	return kind == providers.ErrorUnconfigured || !providers.Failover(kind)
}
