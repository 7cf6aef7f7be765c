package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	jobdomain "github.com/heylinko/linko/internal/job/domain"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware maps domain sentinels to HTTP statuses after
// the handler chain. Handlers report failures with AbortWithError.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, jobdomain.ErrJobForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "job belongs to another user",
		}
	case errors.Is(err, jobdomain.ErrJobNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, jobdomain.ErrJobRejected):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "server is shutting down",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, contactdomain.ErrInvalidUser) ||
		errors.Is(err, contactdomain.ErrInvalidName) ||
		errors.Is(err, subscriptiondomain.ErrInvalidUser) ||
		errors.Is(err, subscriptiondomain.ErrInvalidLevel) ||
		errors.Is(err, costdomain.ErrInvalidUser) ||
		errors.Is(err, costdomain.ErrInvalidCost) ||
		errors.Is(err, costdomain.ErrInvalidFeature) ||
		errors.Is(err, costdomain.ErrInvalidModel) ||
		errors.Is(err, costdomain.ErrInvalidRuns) ||
		errors.Is(err, costdomain.ErrInvalidPageSize) ||
		errors.Is(err, jobdomain.ErrInvalidUser)
}
