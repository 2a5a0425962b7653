package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	funneldomain "github.com/smallbiznis/sparks/internal/funnel/domain"
	"github.com/smallbiznis/sparks/internal/ingest"
	keyworddomain "github.com/smallbiznis/sparks/internal/keyword/domain"
	"github.com/smallbiznis/sparks/pkg/db/pagination"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidPageSize    = errors.New("invalid_page_size")
	ErrPayloadTooLarge    = errors.New("payload_too_large")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

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
		c.Header("Content-Type", "application/json")
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

func newValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

// badRequests maps sentinel errors from every layer onto one validation
// entry each. Order matters only for errors wrapping more than one sentinel.
var badRequests = []struct {
	err error
	ValidationError
}{
	{ingest.ErrInvalidJSON, ValidationError{"body", "invalid_json", "body must be a JSON object"}},
	{ErrInvalidRequest, ValidationError{"body", "invalid_request", "request body is malformed"}},
	{keyworddomain.ErrEmptyRequest, ValidationError{"body", "empty_keyword_request", "at least one category is required"}},
	{keyworddomain.ErrInvalidCategory, ValidationError{"category", "invalid_category", "category must be opening, booking or transaction"}},
	{ErrInvalidDate, ValidationError{"date", "invalid_date", "dates use YYYY-MM-DD"}},
	{funneldomain.ErrInvalidDateRange, ValidationError{"end_date", "invalid_date_range", "end_date is before start_date"}},
	{ErrInvalidPageSize, ValidationError{"page_size", "invalid_page_size", "page_size must be a positive integer"}},
	{pagination.ErrInvalidPageToken, ValidationError{"page_token", "invalid_page_token", "page_token is not valid"}},
}

// failures covers everything that is not the caller's input.
var failures = []struct {
	err    error
	status int
	errorPayload
}{
	{ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, errorPayload{Type: "payload_too_large", Message: "payload too large"}},
	{ingest.ErrStreamUnavailable, http.StatusInternalServerError, errorPayload{Type: "stream_unavailable", Message: "event stream unavailable"}},
	{ErrServiceUnavailable, http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: "service unavailable"}},
}

var internalError = errorPayload{Type: "internal_error", Message: "internal server error"}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalError
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: "validation error", Errors: vErr.Errors}
	}
	for _, rule := range badRequests {
		if errors.Is(err, rule.err) {
			return http.StatusBadRequest, errorPayload{
				Type:    "validation_error",
				Message: "validation error",
				Errors:  []ValidationError{rule.ValidationError},
			}
		}
	}

	var limited *ingest.RateLimitedError
	if errors.As(err, &limited) {
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}
	}
	for _, rule := range failures {
		if errors.Is(err, rule.err) {
			return rule.status, rule.errorPayload
		}
	}
	return http.StatusInternalServerError, internalError
}

// classifyErrorForLog returns the error type and code written to request logs.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "internal", code
	}
	return "client", code
}
