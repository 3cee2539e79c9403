package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
)

// ErrorCategory classifies an error for handling and logging.
//
// NotFound is deliberately absent: a missing actor or chain returns empty
// results per the query contracts, never an error.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryUpstream      ErrorCategory = "upstream"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryRateLimit     ErrorCategory = "rate_limit"
	CategoryInternal      ErrorCategory = "internal"
	CategoryConfiguration ErrorCategory = "configuration"
)

// AppError wraps an errbuilder error with the HTTP mapping and category.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   ErrorCategory `json:"category"`
	HTTPStatus int           `json:"http_status"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Code returns the stable wire identifier for the error.
func (e *AppError) Code() string {
	switch e.ErrBuilder.ErrCode() {
	case errbuilder.CodeInvalidArgument:
		return "INVALID_ARGUMENT"
	case errbuilder.CodeUnavailable:
		return "UPSTREAM_UNAVAILABLE"
	case errbuilder.CodeDeadlineExceeded:
		return "TIMEOUT"
	case errbuilder.CodeResourceExhausted:
		return "RATE_LIMIT_EXCEEDED"
	case errbuilder.CodeInternal:
		return "INTERNAL_ERROR"
	case errbuilder.CodeFailedPrecondition:
		return "CONFIGURATION_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code(), e.ErrBuilder.Msg)
}

func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

// MarshalJSON renders the client-facing error body. A dedicated shape is
// used instead of the embedded builder so marshaling never depends on an
// optional cause being present.
func (e *AppError) MarshalJSON() ([]byte, error) {
	payload := struct {
		Code       string        `json:"code"`
		Message    string        `json:"message"`
		Category   ErrorCategory `json:"category"`
		HTTPStatus int           `json:"http_status"`
		Timestamp  time.Time     `json:"timestamp"`
		Cause      string        `json:"cause,omitempty"`
	}{
		Code:       e.Code(),
		Message:    e.ErrBuilder.Msg,
		Category:   e.Category,
		HTTPStatus: e.HTTPStatus,
		Timestamp:  e.Timestamp,
	}
	if cause := e.ErrBuilder.Unwrap(); cause != nil {
		payload.Cause = cause.Error()
	}
	return json.Marshal(payload)
}

// NewAppError builds an AppError from an errbuilder with category and status.
func NewAppError(builder *errbuilder.ErrBuilder, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
	}
}

// NewValidationError rejects a malformed request before any data fetch.
func NewValidationError(message string, details ...interface{}) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)

	if len(details) > 0 {
		errorMap := errbuilder.ErrorMap{}
		errorMap.Set("validation_details", errors.New(fmt.Sprintf("%v", details[0])))
		builder = builder.WithDetails(errbuilder.NewErrDetails(errorMap))
	}

	return NewAppError(builder, CategoryValidation, http.StatusBadRequest)
}

// NewUpstreamError marks a failure of the cross-chain query layer or the
// knowledge-graph store. Retryable by the caller; the engine itself performs
// no automatic retries beyond the adapter transport policy.
func NewUpstreamError(source string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("source", errors.New(source))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(fmt.Sprintf("%s source unavailable", source)).
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryUpstream, http.StatusBadGateway)
}

// NewTimeoutError marks an upstream call that exceeded its deadline.
func NewTimeoutError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeDeadlineExceeded).
		WithMsg(message)

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryTimeout, http.StatusGatewayTimeout)
}

// NewRateLimitError is returned when a client exceeds its request budget.
func NewRateLimitError(retryAfter string) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("retry_after", errors.New(retryAfter))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg("Rate limit exceeded").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	return NewAppError(builder, CategoryRateLimit, http.StatusTooManyRequests)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("internal_details", errors.New(message))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("Internal server error").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryInternal, http.StatusInternalServerError)
}

// NewConfigurationError marks an invalid configuration. Fatal at startup;
// never produced at request time.
func NewConfigurationError(message string, cause error) *AppError {
	errorMap := errbuilder.ErrorMap{}
	errorMap.Set("config_details", errors.New(message))

	builder := errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg("Configuration error").
		WithDetails(errbuilder.NewErrDetails(errorMap))

	if cause != nil {
		builder = builder.WithCause(cause)
	}

	return NewAppError(builder, CategoryConfiguration, http.StatusInternalServerError)
}

// ErrorHandler is a gin middleware providing centralized error handling.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			appErr := ToAppError(err)
			LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
		}
	}
}

// RecoveryHandler converts panics into structured internal errors.
func RecoveryHandler() gin.HandlerFunc {
	return gin.RecoveryWithWriter(nil, func(c *gin.Context, err interface{}) {
		appErr := NewInternalError(
			fmt.Sprintf("Panic recovered: %v", err),
			fmt.Errorf("%v", err),
		)
		LogError(c, appErr)
		c.JSON(appErr.HTTPStatus, appErr)
	})
}

// ToAppError converts any error to an AppError.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if ebErr, ok := err.(*errbuilder.ErrBuilder); ok {
		return NewAppError(ebErr, CategoryInternal, http.StatusInternalServerError)
	}

	if errors.Is(err, context.Canceled) {
		return NewTimeoutError("Request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("Request deadline exceeded", err)
	}

	errMsg := err.Error()
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") ||
		strings.Contains(errMsg, "network is unreachable") {
		return NewUpstreamError("network", err)
	}
	if strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded") {
		return NewTimeoutError("Request timeout", err)
	}

	return NewInternalError("An unexpected error occurred", err)
}

// LogError logs an error with level chosen by category.
func LogError(c *gin.Context, err *AppError) {
	logEntry := slog.With(
		"error_category", err.Category,
		"error_code", err.ErrBuilder.ErrCode(),
		"http_status", err.HTTPStatus,
		"ip", c.ClientIP(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	)

	msg := err.ErrBuilder.Msg
	switch err.Category {
	case CategoryValidation, CategoryRateLimit:
		logEntry.Warn(msg)
	case CategoryUpstream, CategoryTimeout:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			logEntry.Info(msg, "cause", cause)
		} else {
			logEntry.Info(msg)
		}
	default:
		if cause := err.ErrBuilder.Unwrap(); cause != nil {
			logEntry.Error(msg, "cause", cause)
		} else {
			logEntry.Error(msg)
		}
	}
}

// IsRetryableError reports whether a failure is worth retrying at the
// transport layer.
func IsRetryableError(err error) bool {
	switch ToAppError(err).Category {
	case CategoryUpstream, CategoryTimeout, CategoryRateLimit:
		return true
	default:
		return false
	}
}
