package audit

import (
	"context"
	"time"

	"learnflow/internal/models"

	"github.com/avast/retry-go"
	log "github.com/sirupsen/logrus"
)

type inserter interface {
	Insert(ctx context.Context, ev JobEvent) error
}

// Recorder appends every persisted job transition to the audit trail. Failures are
// retried briefly and then logged; they never block the job.
type Recorder struct {
	repo     inserter
	attempts uint
	delay    time.Duration
}

func NewRecorder(repo *JobEventRepo) *Recorder {
	return &Recorder{repo: repo, attempts: 3, delay: 200 * time.Millisecond}
}

func (r *Recorder) RecordTransition(ctx context.Context, projectID string, st models.JobStatus) {
	ev := JobEvent{
		ProjectID: projectID,
		RunID:     st.RunID,
		Step:      string(st.Step),
		Status:    st.Status,
		Percent:   st.Percent,
		LastError: st.LastError,
	}
	err := retry.Do(
		func() error { return r.repo.Insert(ctx, ev) },
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		log.WithFields(log.Fields{
			"project_id": projectID,
			"run_id":     st.RunID,
			"step":       st.Step,
		}).WithError(err).Warn("audit: job event not recorded")
	}
}
