package api

import (
	"net/http"

	"learnflow/internal/errs"
	"learnflow/internal/models"

	"github.com/gin-gonic/gin"
)

func (s *Server) listProjects(c *gin.Context) {
	projects, err := s.store.ListProjects(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) createProject(c *gin.Context) {
	var p models.Project
	if err := bindJSON(c, &p); err != nil {
		writeErr(c, err)
		return
	}
	created, err := s.store.CreateProject(c.Request.Context(), p)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) getProject(c *gin.Context) {
	p, err := s.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// putProject merges the supplied keys into the project, creating it when absent.
func (s *Server) putProject(c *gin.Context) {
	patch := map[string]any{}
	if err := bindJSON(c, &patch); err != nil {
		writeErr(c, err)
		return
	}
	p, _, err := s.store.UpsertProject(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deleteProject(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.DeleteProject(c.Request.Context(), id); err != nil {
		if _, ok := errs.AsValidation(err); !ok {
			writeErr(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}
