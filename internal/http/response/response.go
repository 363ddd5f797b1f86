package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondFromError maps the sentinel taxonomy to HTTP statuses so handlers
// can pass service errors through unexamined.
func RespondFromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, apperrors.ErrUnauthorized):
		RespondError(c, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, apperrors.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, apperrors.ErrConflict):
		RespondError(c, http.StatusConflict, "conflict", err)
	case errors.Is(err, apperrors.ErrQueueFull):
		RespondError(c, http.StatusTooManyRequests, "queue_full", err)
	case errors.Is(err, apperrors.ErrProviderUnavailable):
		RespondError(c, http.StatusServiceUnavailable, "provider_unavailable", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
