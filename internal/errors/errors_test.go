package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		category ErrorCategory
		status   int
	}{
		{"validation", NewValidationError("bad actor id"), CategoryValidation, http.StatusBadRequest},
		{"upstream", NewUpstreamError("xcm", errors.New("boom")), CategoryUpstream, http.StatusBadGateway},
		{"timeout", NewTimeoutError("deadline", nil), CategoryTimeout, http.StatusGatewayTimeout},
		{"rate limit", NewRateLimitError("60"), CategoryRateLimit, http.StatusTooManyRequests},
		{"internal", NewInternalError("oops", nil), CategoryInternal, http.StatusInternalServerError},
		{"configuration", NewConfigurationError("bad weights", nil), CategoryConfiguration, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Error())
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

// Every constructor must marshal cleanly whether or not a cause was
// attached; the error body is what clients see on a 4xx.
func TestAppErrorMarshalsWithoutCause(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code string
	}{
		{"validation", NewValidationError("actor must not be empty"), "INVALID_ARGUMENT"},
		{"rate limit", NewRateLimitError("60"), "RATE_LIMIT_EXCEEDED"},
		{"upstream no cause", NewUpstreamError("xcm", nil), "UPSTREAM_UNAVAILABLE"},
		{"timeout no cause", NewTimeoutError("deadline", nil), "TIMEOUT"},
		{"internal no cause", NewInternalError("oops", nil), "INTERNAL_ERROR"},
		{"configuration no cause", NewConfigurationError("bad weights", nil), "CONFIGURATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.err)
			require.NoError(t, err)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &body))
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, string(tt.err.Category), body["category"])
			assert.NotEmpty(t, body["message"])
			assert.NotContains(t, body, "cause")
		})
	}
}

func TestAppErrorMarshalsCause(t *testing.T) {
	data, err := json.Marshal(NewUpstreamError("dkg", errors.New("connection refused")))

	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "connection refused", body["cause"])
}

// The handler chain must deliver a validation failure as a 400 JSON body,
// not panic into the recovery middleware.
func TestErrorHandlerWritesValidationBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryHandler())
	router.Use(ErrorHandler())
	router.GET("/contributions", func(c *gin.Context) {
		c.Error(NewValidationError("weeks must be an integer between 1 and 52"))
		c.Abort()
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/contributions?weeks=0", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])
	assert.Equal(t, "validation", body["category"])
}

func TestToAppErrorPassThrough(t *testing.T) {
	original := NewValidationError("already structured")
	assert.Same(t, original, ToAppError(original))

	wrapped := fmt.Errorf("handler: %w", original)
	assert.Same(t, original, ToAppError(wrapped))
}

func TestToAppErrorNil(t *testing.T) {
	assert.Nil(t, ToAppError(nil))
}

func TestToAppErrorContextErrors(t *testing.T) {
	assert.Equal(t, CategoryTimeout, ToAppError(context.Canceled).Category)
	assert.Equal(t, CategoryTimeout, ToAppError(context.DeadlineExceeded).Category)
}

func TestToAppErrorNetworkHeuristics(t *testing.T) {
	tests := []struct {
		msg      string
		category ErrorCategory
	}{
		{"dial tcp 10.0.0.1:9933: connection refused", CategoryUpstream},
		{"lookup dkg.local: no such host", CategoryUpstream},
		{"read tcp: network is unreachable", CategoryUpstream},
		{"request timeout after 10s", CategoryTimeout},
		{"something else entirely", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			appErr := ToAppError(errors.New(tt.msg))
			require.NotNil(t, appErr)
			assert.Equal(t, tt.category, appErr.Category)
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(NewUpstreamError("dkg", nil)))
	assert.True(t, IsRetryableError(NewTimeoutError("slow", nil)))
	assert.True(t, IsRetryableError(NewRateLimitError("30")))

	assert.False(t, IsRetryableError(NewValidationError("bad input")))
	assert.False(t, IsRetryableError(NewInternalError("bug", nil)))
	assert.False(t, IsRetryableError(NewConfigurationError("bad config", nil)))
}
