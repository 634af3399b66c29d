package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"learnflow/internal/config"
	"learnflow/internal/errs"
	"learnflow/internal/job"
	"learnflow/internal/models"
	"learnflow/internal/pipeline"
	"learnflow/internal/providers"
	"learnflow/internal/storage"
	"learnflow/internal/util"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func TestPermanent(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"no text", util.ErrNoExtractableText, true},
		{"missing project", fmt.Errorf("project p1: %w", errs.ErrNotFound), true},
		{"validation", errs.NewValidation("language", "must be one of: zh en"), true},
		{"deadline", fmt.Errorf("generate summary: %w", context.DeadlineExceeded), false},
		{"rate limited", errors.New("openai generate error 429: rate limited"), false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connection refused"), false},
		{"missing key", fmt.Errorf("openai key missing: %w", providers.ErrProviderUnconfigured), true},
		{"bad request", errors.New("project p1 has no indexed chunks"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, permanent(tc.err))
		})
	}
}

func newActivities(t *testing.T) (*Activities, *job.Tracker, *storage.Store) {
	t.Helper()
	store, err := storage.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	_, err = store.CreateProject(context.Background(), models.Project{ID: "bio", Name: "Biology"})
	require.NoError(t, err)
	tracker := job.NewTracker(store)
	llm := providers.NewStaticManager(providers.NamedLLMProvider{Ref: providers.ProviderRef{Name: "mock"}, Provider: providers.NewMockProvider()})
	gen := pipeline.NewGenerator(store, llm, config.Config{ChunkSize: 200, ChunkOverlap: 20})
	return NewWith(tracker, gen), tracker, store
}

func TestRunStageActivity(t *testing.T) {
	a, tracker, store := newActivities(t)
	ctx := context.Background()
	_, err := store.PutFile(ctx, "bio", storage.KindUploads, "docs", "cells.txt", strings.NewReader("Cells divide by mitosis. Ribosomes build proteins."))
	require.NoError(t, err)
	st, err := tracker.Start(ctx, "bio", models.DefaultGenerationConfig())
	require.NoError(t, err)

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(a)

	_, err = env.ExecuteActivity(a.RunStageActivity, RunStageInput{ProjectID: "bio", RunID: st.RunID, Step: models.StepParsing, Config: models.DefaultGenerationConfig()})
	require.NoError(t, err)
	parsed, found, err := store.GetParsed(ctx, "bio")
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, parsed.Text, "mitosis")

	// Summary before indexing has nothing to read; retrying cannot help.
	_, err = env.ExecuteActivity(a.RunStageActivity, RunStageInput{ProjectID: "bio", RunID: st.RunID, Step: models.StepSummary, Config: models.DefaultGenerationConfig()})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.True(t, appErr.NonRetryable())
	require.Equal(t, errTypeStage, appErr.Type())
}

func TestAdvanceRunActivity(t *testing.T) {
	a, tracker, _ := newActivities(t)
	ctx := context.Background()
	st, err := tracker.Start(ctx, "bio", models.DefaultGenerationConfig())
	require.NoError(t, err)

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(a)

	val, err := env.ExecuteActivity(a.AdvanceRunActivity, AdvanceRunInput{ProjectID: "bio", RunID: st.RunID, Step: models.StepIndexing})
	require.NoError(t, err)
	var out AdvanceRunOutput
	require.NoError(t, val.Get(&out))
	require.False(t, out.Stale)
	require.Equal(t, models.JobRunning, out.Status)
	require.Positive(t, out.Percent)

	val, err = env.ExecuteActivity(a.AdvanceRunActivity, AdvanceRunInput{ProjectID: "bio", RunID: "older-run", Step: models.StepSummary})
	require.NoError(t, err)
	require.NoError(t, val.Get(&out))
	require.True(t, out.Stale)

	_, err = env.ExecuteActivity(a.AdvanceRunActivity, AdvanceRunInput{ProjectID: "bio", RunID: st.RunID, Step: models.StepPPT})
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, errTypeState, appErr.Type())
}

func TestFailRunActivityIgnoresReplacedRun(t *testing.T) {
	a, tracker, _ := newActivities(t)
	ctx := context.Background()
	st, err := tracker.Start(ctx, "bio", models.DefaultGenerationConfig())
	require.NoError(t, err)

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(a)

	_, err = env.ExecuteActivity(a.FailRunActivity, FailRunInput{ProjectID: "bio", RunID: "older-run", Message: "boom"})
	require.NoError(t, err)
	cur, err := tracker.Status(ctx, "bio")
	require.NoError(t, err)
	require.Equal(t, models.JobRunning, cur.Status)

	_, err = env.ExecuteActivity(a.FailRunActivity, FailRunInput{ProjectID: "bio", RunID: st.RunID, Message: "boom"})
	require.NoError(t, err)
	cur, err = tracker.Status(ctx, "bio")
	require.NoError(t, err)
	require.Equal(t, models.JobError, cur.Status)
	require.Equal(t, "boom", cur.LastError)
}
