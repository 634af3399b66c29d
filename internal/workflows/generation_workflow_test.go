package workflows

import (
	"context"
	"strings"
	"testing"

	"learnflow/internal/activities"
	"learnflow/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(GenerationWorkflow)
	registerActivityName(env, "RunStageActivity", func(context.Context, activities.RunStageInput) error { return nil })
	registerActivityName(env, "AdvanceRunActivity", func(context.Context, activities.AdvanceRunInput) (activities.AdvanceRunOutput, error) {
		return activities.AdvanceRunOutput{}, nil
	})
	registerActivityName(env, "FailRunActivity", func(context.Context, activities.FailRunInput) error { return nil })
	registerActivityName(env, "FinalizeActivity", func(context.Context, activities.FinalizeInput) error { return nil })
	return env
}

func input() GenerationInput {
	cfg := models.DefaultGenerationConfig()
	cfg.QuizCount = 0
	return GenerationInput{
		ProjectID: "p1",
		RunID:     "run-1",
		Step:      models.StepParsing,
		Stages:    []models.Step{models.StepParsing, models.StepIndexing, models.StepSummary},
		Config:    cfg,
	}
}

func TestGenerationWorkflowRunsEveryStage(t *testing.T) {
	env := newEnv(t)
	var ran []models.Step
	env.OnActivity("RunStageActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.RunStageInput) error {
		ran = append(ran, in.Step)
		return nil
	})
	var advanced []models.Step
	env.OnActivity("AdvanceRunActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.AdvanceRunInput) (activities.AdvanceRunOutput, error) {
		advanced = append(advanced, in.Step)
		return activities.AdvanceRunOutput{Status: models.JobRunning}, nil
	})
	env.OnActivity("FinalizeActivity", mock.Anything, activities.FinalizeInput{ProjectID: "p1"}).Return(nil).Once()

	env.ExecuteWorkflow(GenerationWorkflow, input())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultComplete, out)
	require.Equal(t, []models.Step{models.StepParsing, models.StepIndexing, models.StepSummary}, ran)
	require.Equal(t, []models.Step{models.StepIndexing, models.StepSummary, models.StepComplete}, advanced)
	env.AssertExpectations(t)
}

func TestGenerationWorkflowLatchesStageFailure(t *testing.T) {
	env := newEnv(t)
	env.OnActivity("RunStageActivity", mock.Anything, mock.Anything).Return(
		temporal.NewNonRetryableApplicationError("no extractable text found in inputs", "StageFailed", nil))
	env.OnActivity("FailRunActivity", mock.Anything, mock.MatchedBy(func(in activities.FailRunInput) bool {
		return in.RunID == "run-1" && strings.HasPrefix(in.Message, "no extractable text found in inputs")
	})).Return(nil).Once()

	env.ExecuteWorkflow(GenerationWorkflow, input())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultFailed, out)
	env.AssertExpectations(t)
}

func TestGenerationWorkflowStopsWhenSuperseded(t *testing.T) {
	env := newEnv(t)
	calls := 0
	env.OnActivity("RunStageActivity", mock.Anything, mock.Anything).Return(func(context.Context, activities.RunStageInput) error {
		calls++
		return nil
	})
	env.OnActivity("AdvanceRunActivity", mock.Anything, mock.Anything).Return(activities.AdvanceRunOutput{Stale: true}, nil)

	env.ExecuteWorkflow(GenerationWorkflow, input())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, ResultSuperseded, out)
	require.Equal(t, 1, calls)
}

func TestGenerationWorkflowProgressQuery(t *testing.T) {
	env := newEnv(t)
	env.OnActivity("RunStageActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("AdvanceRunActivity", mock.Anything, mock.Anything).Return(activities.AdvanceRunOutput{}, nil)

	env.ExecuteWorkflow(GenerationWorkflow, input())
	require.NoError(t, env.GetWorkflowError())

	v, err := env.QueryWorkflow(QueryGetProgress)
	require.NoError(t, err)
	var progress GenerationProgress
	require.NoError(t, v.Get(&progress))
	require.Equal(t, models.StepComplete, progress.CurrentStep)
	require.Equal(t, models.JobComplete, progress.Status)
	require.Equal(t, "done", progress.Steps[string(models.StepSummary)])
}

type fakeRun struct{ client.WorkflowRun }

func (fakeRun) GetID() string    { return "generate-p1" }
func (fakeRun) GetRunID() string { return "exec-1" }

type fakeStarter struct {
	opts client.StartWorkflowOptions
	args []interface{}
}

func (f *fakeStarter) ExecuteWorkflow(_ context.Context, opts client.StartWorkflowOptions, _ interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.opts = opts
	f.args = args
	return fakeRun{}, nil
}

func TestLauncherStartsOneWorkflowPerProject(t *testing.T) {
	starter := &fakeStarter{}
	l := NewLauncher(starter, "learnflow")
	in := input()
	st := models.JobStatus{Step: in.Step, RunID: in.RunID, Stages: in.Stages, Status: models.JobRunning}

	require.NoError(t, l.Launch(context.Background(), "p1", st, in.Config))
	require.Equal(t, "generate-p1", starter.opts.ID)
	require.Equal(t, "learnflow", starter.opts.TaskQueue)
	require.Len(t, starter.args, 1)
	require.Equal(t, in, starter.args[0])
}
