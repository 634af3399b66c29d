package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnflow/internal/models"
	"learnflow/internal/storage"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrStaleRun is returned when a transition names a run that a later start replaced.
var ErrStaleRun = errors.New("run superseded by a newer start")

// Recorder observes every persisted transition.
type Recorder interface {
	RecordTransition(ctx context.Context, projectID string, st models.JobStatus)
}

// Tracker applies state machine transitions to the status document in the store.
type Tracker struct {
	store    *storage.Store
	recorder Recorder
	now      func() time.Time
	newRunID func() string
}

func NewTracker(store *storage.Store) *Tracker {
	return &Tracker{
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		newRunID: uuid.NewString,
	}
}

func (t *Tracker) WithRecorder(r Recorder) *Tracker {
	t.recorder = r
	return t
}

// Start persists cfg as the project's config, then replaces the status document
// with a fresh run. Whatever the previous run was doing is superseded.
func (t *Tracker) Start(ctx context.Context, projectID string, cfg models.GenerationConfig) (models.JobStatus, error) {
	if err := t.store.SetConfig(ctx, projectID, cfg); err != nil {
		return models.JobStatus{}, err
	}
	p := NewPipeline(cfg)
	runID := t.newRunID()
	st, err := t.store.UpdateStatus(ctx, projectID, func(models.JobStatus, bool) (models.JobStatus, error) {
		return Start(p, runID, t.now()), nil
	})
	if err != nil {
		return models.JobStatus{}, err
	}
	t.setProjectStatus(ctx, projectID, models.ProjectProcessing)
	t.record(ctx, projectID, st)
	return st, nil
}

// Advance moves the run identified by runID into next.
func (t *Tracker) Advance(ctx context.Context, projectID, runID string, next models.Step) (models.JobStatus, error) {
	st, err := t.transition(ctx, projectID, runID, func(cur models.JobStatus, p Pipeline) (models.JobStatus, error) {
		return Advance(cur, p, next, t.now())
	})
	if err != nil {
		return st, err
	}
	if st.Status == models.JobComplete {
		t.setProjectStatus(ctx, projectID, models.ProjectComplete)
	}
	return st, nil
}

// Complete advances the run past its last stage.
func (t *Tracker) Complete(ctx context.Context, projectID, runID string) (models.JobStatus, error) {
	return t.Advance(ctx, projectID, runID, models.StepComplete)
}

// Fail latches status=error with msg on the run identified by runID.
func (t *Tracker) Fail(ctx context.Context, projectID, runID, msg string) (models.JobStatus, error) {
	st, err := t.transition(ctx, projectID, runID, func(cur models.JobStatus, _ Pipeline) (models.JobStatus, error) {
		return Fail(cur, msg, t.now())
	})
	if err != nil {
		return st, err
	}
	t.setProjectStatus(ctx, projectID, models.ProjectError)
	return st, nil
}

// Status returns the stored status, or the idle document when no run was ever started.
func (t *Tracker) Status(ctx context.Context, projectID string) (models.JobStatus, error) {
	if _, err := t.store.GetProject(ctx, projectID); err != nil {
		return models.JobStatus{}, err
	}
	st, found, err := t.store.GetStatus(ctx, projectID)
	if err != nil {
		return models.JobStatus{}, err
	}
	if !found {
		return models.IdleStatus(), nil
	}
	if st.History == nil {
		st.History = []models.HistoryEntry{}
	}
	return st, nil
}

func (t *Tracker) transition(ctx context.Context, projectID, runID string, fn func(models.JobStatus, Pipeline) (models.JobStatus, error)) (models.JobStatus, error) {
	st, err := t.store.UpdateStatus(ctx, projectID, func(cur models.JobStatus, found bool) (models.JobStatus, error) {
		if !found || cur.RunID != runID {
			return cur, fmt.Errorf("%w: project %s run %s", ErrStaleRun, projectID, runID)
		}
		p := PipelineOf(cur.Stages)
		if p.Len() == 0 {
			cfg, _, err := t.store.GetConfig(ctx, projectID)
			if err != nil {
				return cur, err
			}
			p = NewPipeline(cfg)
		}
		return fn(cur, p)
	})
	if err != nil {
		log.WithFields(log.Fields{"project_id": projectID, "run_id": runID}).WithError(err).Debug("job: transition rejected")
		return st, err
	}
	t.record(ctx, projectID, st)
	return st, nil
}

func (t *Tracker) setProjectStatus(ctx context.Context, projectID, status string) {
	if _, err := t.store.UpdateProject(ctx, projectID, map[string]any{"status": status}); err != nil {
		log.WithField("project_id", projectID).WithError(err).Warn("job: project status not updated")
	}
}

func (t *Tracker) record(ctx context.Context, projectID string, st models.JobStatus) {
	if t.recorder != nil {
		t.recorder.RecordTransition(ctx, projectID, st)
	}
}
