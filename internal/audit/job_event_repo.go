package audit

import (
	"context"
	"fmt"
	"time"
)

type JobEvent struct {
	ProjectID  string    `json:"project_id"`
	RunID      string    `json:"run_id"`
	Step       string    `json:"step"`
	Status     string    `json:"status"`
	Percent    int       `json:"percent"`
	LastError  string    `json:"last_error,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type JobEventRepo struct {
	db *DB
}

func NewJobEventRepo(db *DB) *JobEventRepo {
	return &JobEventRepo{db: db}
}

func (r *JobEventRepo) Insert(ctx context.Context, ev JobEvent) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO job_events(project_id, run_id, step, status, percent, last_error)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,''))`,
		ev.ProjectID, ev.RunID, ev.Step, ev.Status, ev.Percent, ev.LastError)
	if err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

func (r *JobEventRepo) ListByProject(ctx context.Context, projectID string, limit int) ([]JobEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT project_id, run_id, step, status, percent, COALESCE(last_error,''), recorded_at
FROM job_events
WHERE project_id=$1
ORDER BY event_id DESC
LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list job events: %w", err)
	}
	defer rows.Close()

	out := make([]JobEvent, 0)
	for rows.Next() {
		var ev JobEvent
		if err := rows.Scan(&ev.ProjectID, &ev.RunID, &ev.Step, &ev.Status, &ev.Percent, &ev.LastError, &ev.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan job event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job events: %w", err)
	}
	return out, nil
}
