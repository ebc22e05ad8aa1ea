package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/placement/internal/convert"
	"github.com/and161185/placement/internal/errs"
)

// statusOf maps a service error to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrDuplicateApplication),
		errors.Is(err, errs.ErrAlreadyExists),
		errors.Is(err, errs.ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, errs.ErrInvalidTransition),
		errors.Is(err, errs.ErrInvalidState),
		errors.Is(err, errs.ErrNotAcceptingApplications):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// writeError aborts the request with the mapped status. Internal errors
// are logged and their text withheld from the client.
func (s *Server) writeError(c *gin.Context, err error) {
	code := statusOf(err)
	body := convert.Error{Error: err.Error()}
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if code == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Error(err),
		)
		body = convert.Error{Error: "internal error"}
	}
	c.AbortWithStatusJSON(code, body)
}

// badRequest reports a body or query that could not be decoded.
func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, convert.Error{Error: "malformed request: " + err.Error()})
}
