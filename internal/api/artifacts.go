package api

import (
	"context"
	"net/http"

	"learnflow/internal/envelope"
	"learnflow/internal/errs"
	"learnflow/internal/models"
	"learnflow/internal/storage"

	"github.com/gin-gonic/gin"
)

// artifact is one whole-document resource under /projects/:id.
type artifact struct {
	name string
	get  func(ctx context.Context, id string) (any, bool, error)
	set  func(ctx context.Context, id string, body []byte) (any, error)
}

func artifactRoutes(store *storage.Store) map[string]artifact {
	return map[string]artifact{
		"summary":    docArtifact("summary", store.GetSummary, store.SetSummary, nil),
		"inputs":     docArtifact("inputs", store.GetInputs, store.SetInputs, nil),
		"config":     docArtifact("config", store.GetConfig, store.SetConfig, models.DefaultGenerationConfig),
		"quiz":       listArtifact("quiz", envelope.QuizField, store.GetQuiz, store.SetQuiz),
		"images":     listArtifact("images", envelope.ImagesField, store.GetImages, store.SetImages),
		"slides":     listArtifact("slides", envelope.SlidesField, store.GetSlides, store.SetSlides),
		"references": listArtifact("references", envelope.ReferencesField, store.GetReferences, store.SetReferences),
	}
}

// docArtifact decodes the body as T, over base() when given.
func docArtifact[T any](name string, get func(context.Context, string) (T, bool, error), set func(context.Context, string, T) error, base func() T) artifact {
	return artifact{
		name: name,
		get: func(ctx context.Context, id string) (any, bool, error) {
			return get(ctx, id)
		},
		set: func(ctx context.Context, id string, body []byte) (any, error) {
			var v T
			if base != nil {
				v = base()
			}
			if err := json.Unmarshal(body, &v); err != nil {
				return nil, errMalformedJSON
			}
			return v, set(ctx, id, v)
		},
	}
}

// listArtifact accepts any envelope shape on write and stores the canonical one.
func listArtifact[T any](name, field string, get func(context.Context, string) (T, bool, error), set func(context.Context, string, T) error) artifact {
	return artifact{
		name: name,
		get: func(ctx context.Context, id string) (any, bool, error) {
			return get(ctx, id)
		},
		set: func(ctx context.Context, id string, body []byte) (any, error) {
			var raw any
			if err := json.Unmarshal(body, &raw); err != nil {
				return nil, errMalformedJSON
			}
			doc, shape := envelope.Normalize(raw, field)
			if shape == envelope.Unknown {
				return nil, errs.NewValidation(field, "expected a list, {value: [...]} or {%s: [...]}", field)
			}
			b, err := json.Marshal(doc)
			if err != nil {
				return nil, err
			}
			var v T
			if err := json.Unmarshal(b, &v); err != nil {
				return nil, errs.NewValidation(field, "%v", err)
			}
			return v, set(ctx, id, v)
		},
	}
}

func (s *Server) getArtifact(a artifact) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, found, err := a.get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeErr(c, err)
			return
		}
		if !found {
			writeErr(c, notFound(a.name))
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func (s *Server) setArtifact(a artifact) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c)
		if err != nil {
			writeErr(c, err)
			return
		}
		v, err := a.set(c.Request.Context(), c.Param("id"), body)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func (s *Server) listPublish(c *gin.Context) {
	platforms, err := s.store.ListPublishPlatforms(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"platforms": platforms})
}

func (s *Server) getPublish(c *gin.Context) {
	platform := c.Param("platform")
	if err := storage.ValidatePlatform(platform); err != nil {
		writeErr(c, err)
		return
	}
	m, found, err := s.store.GetPublish(c.Request.Context(), c.Param("id"), platform)
	if err != nil {
		writeErr(c, err)
		return
	}
	if !found {
		writeErr(c, notFound("publish manifest"))
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) setPublish(c *gin.Context) {
	var m models.PublishManifest
	if err := bindJSON(c, &m); err != nil {
		writeErr(c, err)
		return
	}
	platform := c.Param("platform")
	if err := s.store.SetPublish(c.Request.Context(), c.Param("id"), platform, m); err != nil {
		writeErr(c, err)
		return
	}
	if m.Platform == "" {
		m.Platform = platform
	}
	c.JSON(http.StatusOK, m)
}
