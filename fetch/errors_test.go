package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPath             = "/users/[id]"
	testConnectionFailed = "connection refused"
)

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

var _ net.Error = timeoutNetError{}

func TestErrorTypeFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      ClientError
		expected string
	}{
		{
			name:     "transport error",
			err:      NewTransportError("GET", testPath, errors.New(testConnectionFailed)),
			expected: "failed to GET /users/[id]: connection refused",
		},
		{
			name:     "cancellation error",
			err:      NewCancellationError(testPath, context.Canceled),
			expected: "request to /users/[id] cancelled: context canceled",
		},
		{
			name:     "payload parse error",
			err:      NewPayloadParseError(testPath, 200, false, errors.New("invalid character '<'")),
			expected: "invalid JSON payload from /users/[id] (status: 200): invalid character '<'",
		},
		{
			name:     "http status error",
			err:      NewHTTPStatusError("/path", 404, nil, nil),
			expected: "HTTP Error [404] from /path",
		},
		{
			name:     "validation error with field",
			err:      NewValidationError("URL cannot be empty", "url"),
			expected: "validation error: URL cannot be empty (field: url)",
		},
		{
			name:     "validation error without field",
			err:      NewValidationError("invalid request", ""),
			expected: "validation error: invalid request",
		},
		{
			name:     "interceptor error",
			err:      NewInterceptorError("request interceptor failed", "request", errors.New("denied")),
			expected: "interceptor error: request interceptor failed (stage: request): denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorTypeIdentification(t *testing.T) {
	tests := []struct {
		name     string
		err      ClientError
		expected ErrorType
	}{
		{"transport", NewTransportError("GET", testPath, nil), TransportError},
		{"cancellation", NewCancellationError(testPath, nil), CancellationError},
		{"payload parse", NewPayloadParseError(testPath, 200, true, nil), PayloadParseError},
		{"http status", NewHTTPStatusError(testPath, 500, nil, nil), HTTPStatusError},
		{"validation", NewValidationError("x", ""), ValidationError},
		{"interceptor", NewInterceptorError("x", "response", nil), InterceptorError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Type())
			assert.True(t, IsErrorType(tt.err, tt.expected))
			assert.True(t, IsErrorType(fmt.Errorf("wrapped: %w", tt.err), tt.expected))
		})
	}
}

func TestIsErrorTypeNonClientError(t *testing.T) {
	assert.False(t, IsErrorType(nil, TransportError))
	assert.False(t, IsErrorType(errors.New("plain"), TransportError))
}

func TestErrorsUnwrapToCause(t *testing.T) {
	cause := errors.New("root cause")

	assert.ErrorIs(t, NewTransportError("GET", testPath, cause), cause)
	assert.ErrorIs(t, NewCancellationError(testPath, cause), cause)
	assert.ErrorIs(t, NewPayloadParseError(testPath, 200, true, cause), cause)
	assert.ErrorIs(t, NewHTTPStatusError(testPath, 502, nil, cause), cause)
	assert.ErrorIs(t, NewInterceptorError("x", "request", cause), cause)
}

func TestCancellationErrorDefaultsToContextCanceled(t *testing.T) {
	err := NewCancellationError(testPath, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsCancellation(err))
}

func TestIsHTTPStatusError(t *testing.T) {
	err := NewHTTPStatusError(testPath, 404, []byte(`{"error":"missing"}`), nil)

	assert.True(t, IsHTTPStatusError(err, 404))
	assert.False(t, IsHTTPStatusError(err, 500))
	assert.False(t, IsHTTPStatusError(errors.New("other"), 404))

	var statusErr *httpStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.StatusCode())
	assert.JSONEq(t, `{"error":"missing"}`, string(statusErr.Body()))
}

func TestTransportErrorTimeout(t *testing.T) {
	var te *transportError

	require.ErrorAs(t, NewTransportError("GET", testPath, timeoutNetError{}), &te)
	assert.True(t, te.Timeout())

	require.ErrorAs(t, NewTransportError("GET", testPath, context.DeadlineExceeded), &te)
	assert.True(t, te.Timeout())

	require.ErrorAs(t, NewTransportError("GET", testPath, errors.New(testConnectionFailed)), &te)
	assert.False(t, te.Timeout())
}

func TestWithDiagnostics(t *testing.T) {
	messages := []string{"first", "second"}
	err := withDiagnostics(NewTransportError("GET", testPath, nil), 2, messages)

	var clientErr ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, 2, clientErr.Retries())
	assert.Equal(t, messages, clientErr.ErrorMessages())
	assert.Equal(t, testPath, clientErr.Path())

	// the error keeps its own copy
	messages[0] = "mutated"
	assert.Equal(t, "first", clientErr.ErrorMessages()[0])

	plain := errors.New("plain")
	assert.Same(t, plain, withDiagnostics(plain, 1, nil))
}

func TestIsSuccessStatus(t *testing.T) {
	assert.True(t, IsSuccessStatus(200))
	assert.True(t, IsSuccessStatus(204))
	assert.True(t, IsSuccessStatus(299))
	assert.False(t, IsSuccessStatus(199))
	assert.False(t, IsSuccessStatus(300))
	assert.False(t, IsSuccessStatus(404))
	assert.False(t, IsSuccessStatus(0))
}
