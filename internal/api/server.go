// Package api serves projects, their artifacts and generation runs over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"learnflow/internal/audit"
	"learnflow/internal/config"
	"learnflow/internal/job"
	"learnflow/internal/pipeline"
	"learnflow/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 8 << 20

type Server struct {
	cfg      config.Config
	store    *storage.Store
	tracker  *job.Tracker
	launcher pipeline.Launcher
	events   EventLister
}

// EventLister reads the job audit trail.
type EventLister interface {
	ListByProject(ctx context.Context, projectID string, limit int) ([]audit.JobEvent, error)
}

func NewServer(cfg config.Config, store *storage.Store, tracker *job.Tracker, launcher pipeline.Launcher) *Server {
	if launcher == nil {
		launcher = pipeline.NoopLauncher{}
	}
	return &Server{cfg: cfg, store: store, tracker: tracker, launcher: launcher}
}

// WithEvents serves the audit trail under /projects/:id/events.
func (s *Server) WithEvents(events EventLister) *Server {
	s.events = events
	return s
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), s.corsMiddleware())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	r.GET("/projects", s.listProjects)
	r.POST("/projects", s.createProject)
	p := r.Group("/projects/:id")
	p.GET("", s.getProject)
	p.PUT("", s.putProject)
	p.DELETE("", s.deleteProject)
	p.POST("/start", s.startJob)
	p.GET("/status", s.getStatus)
	if s.events != nil {
		p.GET("/events", s.listEvents)
	}
	p.POST("/uploads", s.uploadFiles)
	p.GET("/publish", s.listPublish)
	p.GET("/publish/:platform", s.getPublish)
	p.POST("/publish/:platform", s.setPublish)
	for name, a := range artifactRoutes(s.store) {
		p.GET("/"+name, s.getArtifact(a))
		p.POST("/"+name, s.setArtifact(a))
	}

	r.GET("/files/:projectId/:type/:subType/:fileName", s.serveFile)
	r.NoRoute(func(c *gin.Context) { writeErr(c, notFound("route")) })
	return r
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	cc.AllowAllOrigins = len(s.cfg.AllowedOrigins) == 0
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" {
			cc.AllowAllOrigins = true
		}
	}
	if !cc.AllowAllOrigins {
		cc.AllowOrigins = s.cfg.AllowedOrigins
	}
	return cors.New(cc)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("api: request")
	}
}

func readBody(c *gin.Context) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errMalformedJSON
	}
	return b, nil
}

// bindJSON decodes the request body into out. An empty body leaves out as is.
func bindJSON(c *gin.Context, out any) error {
	b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errMalformedJSON
	}
	return nil
}
