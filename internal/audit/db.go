package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// EnsureSchema creates the job_events table when it does not exist yet.
func (d *DB) EnsureSchema(ctx context.Context) error {
	_, err := d.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS job_events (
  event_id    BIGSERIAL PRIMARY KEY,
  project_id  TEXT NOT NULL,
  run_id      TEXT NOT NULL,
  step        TEXT NOT NULL,
  status      TEXT NOT NULL,
  percent     INT NOT NULL,
  last_error  TEXT,
  recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS job_events_project_idx ON job_events (project_id, event_id);`)
	if err != nil {
		return fmt.Errorf("ensure job_events schema: %w", err)
	}
	return nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

// Open connects to dsn, prepares the schema and returns a recorder over it. The
// returned close func releases the pool.
func Open(ctx context.Context, dsn string) (*Recorder, *JobEventRepo, func(), error) {
	db, err := NewDB(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	repo := NewJobEventRepo(db)
	return NewRecorder(repo), repo, db.Close, nil
}
