package main

import (
	"context"
	"time"

	"learnflow/internal/activities"
	"learnflow/internal/audit"
	"learnflow/internal/config"
	"learnflow/internal/job"
	"learnflow/internal/logging"
	"learnflow/internal/storage"
	"learnflow/internal/workflows"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	logging.Init(cfg)

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.WithError(err).Fatal("dial temporal")
	}
	defer c.Close()

	store, err := storage.NewOS(cfg.DataDir)
	if err != nil {
		log.WithError(err).Fatal("open data dir")
	}
	tracker := job.NewTracker(store)
	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rec, _, closeDB, err := audit.Open(ctx, cfg.PostgresURL)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("open audit database")
		}
		defer closeDB()
		tracker.WithRecorder(rec)
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	a, err := activities.New(cfg, store, tracker)
	if err != nil {
		log.WithError(err).Fatal("build activities")
	}
	activities.Register(w, a)

	log.WithFields(log.Fields{
		"temporal":      cfg.TemporalAddress,
		"queue":         cfg.TemporalTaskQueue,
		"data_dir":      store.Root(),
		"llm_providers": cfg.LLMProviders,
	}).Info("learnflow worker listening")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.WithError(err).Fatal("worker stopped")
	}
}
