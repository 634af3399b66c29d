// Package job drives the generation status document through its stages.
package job

import (
	"errors"
	"fmt"
	"time"

	"learnflow/internal/models"
)

var (
	ErrTerminal          = errors.New("job already finished")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrPercentRegression = errors.New("progress would decrease")
)

var allStages = []models.Step{
	models.StepParsing,
	models.StepIndexing,
	models.StepSummary,
	models.StepQuiz,
	models.StepImages,
	models.StepPPT,
}

// Pipeline is the ordered list of stages a run goes through.
type Pipeline struct {
	stages []models.Step
}

// NewPipeline picks the stages cfg enables. Parsing, indexing and summary always run.
func NewPipeline(cfg models.GenerationConfig) Pipeline {
	out := make([]models.Step, 0, len(allStages))
	for _, s := range allStages {
		switch {
		case s == models.StepQuiz && cfg.QuizCount <= 0:
		case s == models.StepImages && !cfg.AutoImages:
		case s == models.StepPPT && !cfg.GeneratePPT:
		default:
			out = append(out, s)
		}
	}
	return Pipeline{stages: out}
}

// PipelineOf rebuilds a pipeline from the stage list stored in a status document.
func PipelineOf(stages []models.Step) Pipeline {
	return Pipeline{stages: append([]models.Step(nil), stages...)}
}

func (p Pipeline) Stages() []models.Step {
	return append([]models.Step(nil), p.stages...)
}

func (p Pipeline) Len() int { return len(p.stages) }

// Next returns the stage after cur, or StepComplete after the last one.
func (p Pipeline) Next(cur models.Step) (models.Step, bool) {
	for i, s := range p.stages {
		if s == cur {
			if i+1 < len(p.stages) {
				return p.stages[i+1], true
			}
			return models.StepComplete, true
		}
	}
	return "", false
}

// Percent is the progress reported on entering step: k*100/n for the k-th of n stages.
func (p Pipeline) Percent(step models.Step) int {
	if step == models.StepComplete {
		return 100
	}
	for i, s := range p.stages {
		if s == step {
			return i * 100 / len(p.stages)
		}
	}
	return 0
}

// Start returns the status of a fresh run positioned on the first stage.
func Start(p Pipeline, runID string, now time.Time) models.JobStatus {
	first := models.StepComplete
	if len(p.stages) > 0 {
		first = p.stages[0]
	}
	return models.JobStatus{
		Step:    first,
		Percent: 0,
		Status:  models.JobRunning,
		RunID:   runID,
		Stages:  p.Stages(),
		History: []models.HistoryEntry{{Step: first, Timestamp: now}},
	}
}

// Advance moves st into next, which must directly follow the current stage.
func Advance(st models.JobStatus, p Pipeline, next models.Step, now time.Time) (models.JobStatus, error) {
	if st.Terminal() {
		return st, ErrTerminal
	}
	if st.Status != models.JobRunning {
		return st, fmt.Errorf("%w: job is %s", ErrInvalidTransition, st.Status)
	}
	want, ok := p.Next(st.Step)
	if !ok || want != next {
		return st, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, st.Step, next)
	}
	percent := p.Percent(next)
	if percent < st.Percent {
		return st, fmt.Errorf("%w: %d -> %d", ErrPercentRegression, st.Percent, percent)
	}

	out := st
	out.Step = next
	out.Percent = percent
	out.History = appendHistory(st.History, models.HistoryEntry{Step: next, Timestamp: now})
	if next == models.StepComplete {
		out.Status = models.JobComplete
	}
	return out, nil
}

// Fail latches the error status on st. The step is left where the failure happened.
func Fail(st models.JobStatus, msg string, now time.Time) (models.JobStatus, error) {
	if st.Terminal() {
		return st, ErrTerminal
	}
	out := st
	out.Status = models.JobError
	out.LastError = msg
	out.History = appendHistory(st.History, models.HistoryEntry{Step: st.Step, Timestamp: now, Error: msg})
	return out, nil
}

func appendHistory(h []models.HistoryEntry, e models.HistoryEntry) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(h)+1)
	return append(append(out, h...), e)
}
