// Package httputil renders errors and parses common query parameters for gin handlers.
package httputil

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/braidmgr/braidmgr/internal/errors"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ErrorPolicy controls how errors are rendered.
type ErrorPolicy struct {
	// Conceal lists errors that are rendered as forbidden so that clients cannot
	// tell them apart from a permission denial.
	Conceal []error
}

var forbidden = ErrorResponse{
	Error:   "forbidden",
	Message: "You don't have permission to access this resource",
}

// HandleErrorGin renders err with the default policy.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	ErrorPolicy{}.Handle(c, err, logger)
}

// Handle maps err to a status code and writes the JSON error body. The full error
// is logged; the client only sees the mapped code and message.
func (p ErrorPolicy) Handle(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	statusCode, body := p.classify(err)
	switch statusCode {
	case http.StatusServiceUnavailable:
		c.Header("Retry-After", "1")
	case http.StatusTooManyRequests:
		c.Header("Retry-After", retryAfterSeconds(err))
	}

	if logger != nil {
		level := slog.LevelWarn
		if statusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed",
			slog.Int("status_code", statusCode),
			slog.String("error_code", body.Error),
			slog.Any("error", err),
		)
	}

	c.JSON(statusCode, body)
}

func (p ErrorPolicy) classify(err error) (int, ErrorResponse) {
	for _, concealed := range p.Conceal {
		if apperrors.Is(err, concealed) {
			return http.StatusForbidden, forbidden
		}
	}

	switch {
	case apperrors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Authentication is required",
		}
	case apperrors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, forbidden
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "The requested resource was not found",
		}
	case apperrors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: "A conflict occurred with existing data",
		}
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_input",
			Message: err.Error(),
		}
	case apperrors.Is(err, apperrors.ErrTooManyRequests):
		return http.StatusTooManyRequests, ErrorResponse{
			Error:   "too_many_requests",
			Message: err.Error(),
		}
	case apperrors.IsRetryable(err):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "The service is temporarily unavailable, retry later",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		}
	}
}

// retryAfterSeconds renders the error's back-off rounded up to whole seconds.
func retryAfterSeconds(err error) string {
	d, ok := apperrors.RetryAfter(err)
	if !ok || d <= 0 {
		return "1"
	}
	return strconv.FormatInt(int64((d+time.Second-1)/time.Second), 10)
}

// HandleBadRequestGin writes a 400 response for malformed parameters.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: err.Error(),
	})
}
