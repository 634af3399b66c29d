package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"learnflow/internal/api"
	"learnflow/internal/audit"
	"learnflow/internal/config"
	"learnflow/internal/job"
	"learnflow/internal/logging"
	"learnflow/internal/pipeline"
	"learnflow/internal/providers"
	"learnflow/internal/storage"
	"learnflow/internal/workflows"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	logging.Init(cfg)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewOS(cfg.DataDir)
	if err != nil {
		log.WithError(err).Fatal("open data dir")
	}
	report, err := store.Reconcile(ctx)
	if err != nil {
		log.WithError(err).Fatal("reconcile project index")
	}
	log.WithFields(log.Fields{
		"dropped": report.Dropped,
		"adopted": report.Adopted,
		"swept":   report.Swept,
	}).Info("project index reconciled")

	tracker := job.NewTracker(store)
	var events api.EventLister
	if cfg.PostgresURL != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rec, repo, closeDB, err := audit.Open(dbCtx, cfg.PostgresURL)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("open audit database")
		}
		defer closeDB()
		tracker.WithRecorder(rec)
		events = repo
	}

	launcher, closeLauncher, err := newLauncher(cfg, store, tracker)
	if err != nil {
		log.WithError(err).Fatal("set up launcher")
	}
	defer closeLauncher()

	srv := api.NewServer(cfg, store, tracker, launcher)
	if events != nil {
		srv.WithEvents(events)
	}
	httpSrv := &http.Server{Addr: cfg.APIAddr, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.WithFields(log.Fields{
		"addr":          cfg.APIAddr,
		"data_dir":      store.Root(),
		"launcher":      cfg.Launcher,
		"llm_providers": cfg.LLMProviders,
	}).Info("learnflow api listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("serve")
	}
}

func newLauncher(cfg config.Config, store *storage.Store, tracker *job.Tracker) (pipeline.Launcher, func(), error) {
	switch cfg.Launcher {
	case config.LauncherTemporal:
		c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			return nil, nil, err
		}
		return workflows.NewLauncher(c, cfg.TemporalTaskQueue), c.Close, nil
	case config.LauncherNone:
		return pipeline.NoopLauncher{}, func() {}, nil
	default:
		pm, err := providers.NewManager(cfg)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("llm_providers", pm.LLMCount()).Info("local generator ready")
		runner := pipeline.NewLocalRunner(tracker, pipeline.NewGenerator(store, pm, cfg))
		return runner, runner.Close, nil
	}
}
