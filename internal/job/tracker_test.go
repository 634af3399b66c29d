package job

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"learnflow/internal/errs"
	"learnflow/internal/models"
	"learnflow/internal/storage"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu     sync.Mutex
	events []models.JobStatus
}

func (r *memRecorder) RecordTransition(_ context.Context, _ string, st models.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, st)
}

func newTestTracker(t *testing.T) (*Tracker, *storage.Store) {
	t.Helper()
	store, err := storage.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	_, err = store.CreateProject(context.Background(), models.Project{ID: "p1", Name: "Math"})
	require.NoError(t, err)

	tr := NewTracker(store)
	tr.now = func() time.Time { return t0 }
	n := 0
	tr.newRunID = func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
	return tr, store
}

func TestTrackerStartWritesConfigAndStatus(t *testing.T) {
	tr, store := newTestTracker(t)
	ctx := context.Background()
	cfg := models.DefaultGenerationConfig()
	cfg.Language = "en"

	st, err := tr.Start(ctx, "p1", cfg)
	require.NoError(t, err)
	require.Equal(t, models.StepParsing, st.Step)
	require.Equal(t, 0, st.Percent)
	require.Equal(t, models.JobRunning, st.Status)
	require.Equal(t, "run-1", st.RunID)

	stored, found, err := store.GetConfig(ctx, "p1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, cfg, stored)

	got, err := tr.Status(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, st, got)

	p, err := store.GetProject(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, models.ProjectProcessing, p.Status)
}

func TestTrackerStatusIdleWhenNeverStarted(t *testing.T) {
	tr, _ := newTestTracker(t)
	st, err := tr.Status(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, models.IdleStatus(), st)

	_, err = tr.Status(context.Background(), "ghost")
	require.True(t, errs.IsNotFound(err))
}

func TestTrackerStartMissingProject(t *testing.T) {
	tr, _ := newTestTracker(t)
	_, err := tr.Start(context.Background(), "ghost", models.DefaultGenerationConfig())
	require.True(t, errs.IsNotFound(err))
}

func TestTrackerRunToCompletion(t *testing.T) {
	tr, store := newTestTracker(t)
	rec := &memRecorder{}
	tr.WithRecorder(rec)
	ctx := context.Background()

	st, err := tr.Start(ctx, "p1", models.DefaultGenerationConfig())
	require.NoError(t, err)
	for _, next := range []models.Step{models.StepIndexing, models.StepSummary, models.StepQuiz} {
		st, err = tr.Advance(ctx, "p1", st.RunID, next)
		require.NoError(t, err)
	}
	st, err = tr.Complete(ctx, "p1", st.RunID)
	require.NoError(t, err)
	require.Equal(t, models.JobComplete, st.Status)
	require.Equal(t, 100, st.Percent)

	require.Len(t, rec.events, 5)
	for i := 1; i < len(rec.events); i++ {
		require.GreaterOrEqual(t, rec.events[i].Percent, rec.events[i-1].Percent)
	}

	p, err := store.GetProject(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, models.ProjectComplete, p.Status)

	_, err = tr.Advance(ctx, "p1", st.RunID, models.StepParsing)
	require.ErrorIs(t, err, ErrTerminal)
}

func TestTrackerRejectsStaleRun(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	first, err := tr.Start(ctx, "p1", models.DefaultGenerationConfig())
	require.NoError(t, err)
	second, err := tr.Start(ctx, "p1", models.DefaultGenerationConfig())
	require.NoError(t, err)
	require.NotEqual(t, first.RunID, second.RunID)

	_, err = tr.Advance(ctx, "p1", first.RunID, models.StepIndexing)
	require.ErrorIs(t, err, ErrStaleRun)
	_, err = tr.Fail(ctx, "p1", first.RunID, "late failure")
	require.ErrorIs(t, err, ErrStaleRun)

	got, err := tr.Status(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, second, got)
}

func TestTrackerFailThenRestart(t *testing.T) {
	tr, store := newTestTracker(t)
	ctx := context.Background()

	st, err := tr.Start(ctx, "p1", models.DefaultGenerationConfig())
	require.NoError(t, err)
	st, err = tr.Fail(ctx, "p1", st.RunID, "no extractable text")
	require.NoError(t, err)
	require.Equal(t, models.JobError, st.Status)
	require.Equal(t, "no extractable text", st.LastError)

	p, _ := store.GetProject(ctx, "p1")
	require.Equal(t, models.ProjectError, p.Status)

	restarted, err := tr.Start(ctx, "p1", models.DefaultGenerationConfig())
	require.NoError(t, err)
	require.Equal(t, models.StepParsing, restarted.Step)
	require.Empty(t, restarted.LastError)
	require.Len(t, restarted.History, 1)
}
