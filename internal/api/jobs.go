package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"learnflow/internal/logging"
	"learnflow/internal/models"

	"github.com/gin-gonic/gin"
)

var errLaunch = errors.New("launch failed")

// startJob resets the status document and hands the run to the launcher.
// Omitted config keys keep their defaults.
func (s *Server) startJob(c *gin.Context) {
	id := c.Param("id")
	cfg := models.DefaultGenerationConfig()
	if err := bindJSON(c, &cfg); err != nil {
		writeErr(c, err)
		return
	}
	if err := models.Validate(cfg); err != nil {
		writeErr(c, err)
		return
	}
	if _, err := s.store.GetProject(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	st, err := s.tracker.Start(c.Request.Context(), id, cfg)
	if err != nil {
		writeErr(c, err)
		return
	}
	if err := s.launcher.Launch(c.Request.Context(), id, st, cfg); err != nil {
		logging.ForProject(id).WithField("run_id", st.RunID).WithError(err).Error("api: launch failed")
		if _, ferr := s.tracker.Fail(c.Request.Context(), id, st.RunID, err.Error()); ferr != nil {
			logging.ForProject(id).WithError(ferr).Warn("api: launch failure not recorded")
		}
		writeErr(c, fmt.Errorf("%w: %v", errLaunch, err))
		return
	}
	c.JSON(http.StatusAccepted, st)
}

func (s *Server) getStatus(c *gin.Context) {
	st, err := s.tracker.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) listEvents(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.GetProject(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	events, err := s.events.ListByProject(c.Request.Context(), id, limit)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
