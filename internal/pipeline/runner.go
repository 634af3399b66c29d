package pipeline

import (
	"context"
	"errors"
	"sync"

	"learnflow/internal/job"
	"learnflow/internal/logging"
	"learnflow/internal/models"

	log "github.com/sirupsen/logrus"
)

// Launcher hands a freshly started run to whatever executes its stages.
type Launcher interface {
	Launch(ctx context.Context, projectID string, st models.JobStatus, cfg models.GenerationConfig) error
}

// NoopLauncher leaves started runs for an external worker to pick up.
type NoopLauncher struct{}

func (NoopLauncher) Launch(context.Context, string, models.JobStatus, models.GenerationConfig) error {
	return nil
}

// LocalRunner executes runs in-process, one goroutine per run. Starting a project
// again cancels the goroutine of its previous run.
type LocalRunner struct {
	tracker   *job.Tracker
	generator *Generator

	base    context.Context
	stopAll context.CancelFunc

	mu      sync.Mutex
	running map[string]*activeRun
	wg      sync.WaitGroup
}

type activeRun struct {
	cancel context.CancelFunc
}

func NewLocalRunner(tracker *job.Tracker, generator *Generator) *LocalRunner {
	base, cancel := context.WithCancel(context.Background())
	return &LocalRunner{
		tracker:   tracker,
		generator: generator,
		base:      base,
		stopAll:   cancel,
		running:   map[string]*activeRun{},
	}
}

// Launch returns immediately; ctx only bounds the hand-off, not the run.
func (r *LocalRunner) Launch(ctx context.Context, projectID string, st models.JobStatus, cfg models.GenerationConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(r.base)
	run := &activeRun{cancel: cancel}
	r.mu.Lock()
	if prev, ok := r.running[projectID]; ok {
		prev.cancel()
	}
	r.running[projectID] = run
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(projectID, run)
		r.Run(runCtx, projectID, st, cfg)
	}()
	return nil
}

// Run drives one run to a terminal state. A run superseded by a newer start
// stops quietly.
func (r *LocalRunner) Run(ctx context.Context, projectID string, st models.JobStatus, cfg models.GenerationConfig) {
	logger := logging.ForProject(projectID).WithField("run_id", st.RunID)
	p := job.PipelineOf(st.Stages)
	if p.Len() == 0 {
		p = job.NewPipeline(cfg)
	}
	step := st.Step
	for step != models.StepComplete {
		if err := r.generator.RunStage(ctx, projectID, step, cfg); err != nil {
			r.fail(ctx, logger, projectID, st.RunID, err)
			return
		}
		next, ok := p.Next(step)
		if !ok {
			r.fail(ctx, logger, projectID, st.RunID, errors.New("pipeline has no stage after "+string(step)))
			return
		}
		if next == models.StepComplete {
			if err := r.generator.Finalize(ctx, projectID); err != nil {
				logger.WithError(err).Warn("pipeline: publish draft not written")
			}
		}
		if _, err := r.tracker.Advance(ctx, projectID, st.RunID, next); err != nil {
			if errors.Is(err, job.ErrStaleRun) || errors.Is(err, job.ErrTerminal) {
				logger.Debug("pipeline: run superseded")
				return
			}
			r.fail(ctx, logger, projectID, st.RunID, err)
			return
		}
		step = next
	}
	logger.Info("pipeline: run complete")
}

func (r *LocalRunner) fail(ctx context.Context, logger *log.Entry, projectID, runID string, cause error) {
	if errors.Is(cause, context.Canceled) {
		logger.Debug("pipeline: run cancelled")
		return
	}
	logger.WithError(cause).Warn("pipeline: run failed")
	if _, err := r.tracker.Fail(context.WithoutCancel(ctx), projectID, runID, cause.Error()); err != nil && !errors.Is(err, job.ErrStaleRun) {
		logger.WithError(err).Error("pipeline: failure not recorded")
	}
}

func (r *LocalRunner) release(projectID string, run *activeRun) {
	run.cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[projectID] == run {
		delete(r.running, projectID)
	}
}

// Wait blocks until every launched run has returned.
func (r *LocalRunner) Wait() {
	r.wg.Wait()
}

// Close cancels all runs and waits for them.
func (r *LocalRunner) Close() {
	r.stopAll()
	r.wg.Wait()
}
