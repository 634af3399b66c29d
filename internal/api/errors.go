package api

import (
	"errors"
	"net/http"

	"learnflow/internal/errs"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

var errMalformedJSON = errors.New("malformed json body")

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeErr maps err onto a status code and the user-safe error body. Details of
// 5xx errors only go to the log.
func writeErr(c *gin.Context, err error) {
	status, apiErr := toAPIError(err)
	if status >= 500 {
		log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).WithError(err).Error("api: request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apiErr})
}

func toAPIError(err error) (int, apiError) {
	if v, ok := errs.AsValidation(err); ok {
		return http.StatusBadRequest, apiError{Code: "LN-API-4001", Message: v.Error(), Field: v.Field}
	}
	switch {
	case errors.Is(err, errMalformedJSON):
		return http.StatusBadRequest, apiError{Code: "LN-API-4001", Message: "Malformed JSON request body."}
	case errs.IsNotFound(err):
		return http.StatusNotFound, apiError{Code: "LN-API-4004", Message: "Requested resource was not found."}
	case errs.IsConflict(err):
		return http.StatusConflict, apiError{Code: "LN-API-4009", Message: "Operation conflicts with current state."}
	case errors.Is(err, errLaunch):
		return http.StatusBadGateway, apiError{Code: "LN-API-5020", Message: "Generation could not be started. Retry shortly."}
	default:
		return http.StatusInternalServerError, apiError{Code: "LN-API-5000", Message: "Internal server error. Please retry or check service logs."}
	}
}

func notFound(what string) error {
	return &notFoundError{what: what}
}

type notFoundError struct{ what string }

func (e *notFoundError) Error() string { return e.what + " not found" }
func (e *notFoundError) Unwrap() error { return errs.ErrNotFound }
