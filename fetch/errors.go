package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ClientError represents the failure classes surfaced by the engine. Every
// ClientError carries the sanitized request path and the retry history.
type ClientError interface {
	error
	Type() ErrorType
	// Path returns the sanitized request path
	Path() string
	// Retries returns the number of retries performed before the error surfaced
	Retries() int
	// ErrorMessages returns one message per failed attempt, oldest first
	ErrorMessages() []string
}

// ErrorType defines the category of client error
type ErrorType string

const (
	TransportError    ErrorType = "transport"
	CancellationError ErrorType = "cancellation"
	PayloadParseError ErrorType = "payload_parse"
	HTTPStatusError   ErrorType = "http_status"
	ValidationError   ErrorType = "validation"
	InterceptorError  ErrorType = "interceptor"
)

// diagnostics is embedded by every error type
type diagnostics struct {
	path     string
	retries  int
	messages []string
}

func (d *diagnostics) Path() string {
	return d.path
}

func (d *diagnostics) Retries() int {
	return d.retries
}

func (d *diagnostics) ErrorMessages() []string {
	return d.messages
}

func (d *diagnostics) annotate(retries int, messages []string) {
	d.retries = retries
	d.messages = append([]string(nil), messages...)
}

type annotator interface {
	annotate(retries int, messages []string)
}

// transportError represents connectivity failures (DNS, refused, reset, client timeout)
type transportError struct {
	diagnostics
	method  string
	wrapped error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.method, e.path, e.wrapped)
}

func (e *transportError) Type() ErrorType {
	return TransportError
}

func (e *transportError) Unwrap() error {
	return e.wrapped
}

// Timeout reports whether the underlying failure was a client-side timeout
func (e *transportError) Timeout() bool {
	if errors.Is(e.wrapped, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.wrapped, &netErr) && netErr.Timeout()
}

// cancellationError represents a caller-initiated abort
type cancellationError struct {
	diagnostics
	wrapped error
}

func (e *cancellationError) Error() string {
	return fmt.Sprintf("request to %s cancelled: %v", e.path, e.wrapped)
}

func (e *cancellationError) Type() ErrorType {
	return CancellationError
}

func (e *cancellationError) Unwrap() error {
	return e.wrapped
}

// payloadParseError represents a body that could not be read or decoded as JSON
type payloadParseError struct {
	diagnostics
	statusCode int
	transient  bool
	wrapped    error
}

func (e *payloadParseError) Error() string {
	return fmt.Sprintf("invalid JSON payload from %s (status: %d): %v", e.path, e.statusCode, e.wrapped)
}

func (e *payloadParseError) Type() ErrorType {
	return PayloadParseError
}

func (e *payloadParseError) Unwrap() error {
	return e.wrapped
}

// StatusCode returns the status of the response whose body failed to parse
func (e *payloadParseError) StatusCode() int {
	return e.statusCode
}

// Transient reports whether the payload looked like garbled JSON rather than
// categorically non-JSON content
func (e *payloadParseError) Transient() bool {
	return e.transient
}

// httpStatusError represents a non-2xx final response
type httpStatusError struct {
	diagnostics
	statusCode int
	body       []byte
	wrapped    error
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP Error [%d] from %s", e.statusCode, e.path)
}

func (e *httpStatusError) Type() ErrorType {
	return HTTPStatusError
}

// Unwrap returns the body parse failure, if parsing of the error body was requested and failed
func (e *httpStatusError) Unwrap() error {
	return e.wrapped
}

func (e *httpStatusError) StatusCode() int {
	return e.statusCode
}

func (e *httpStatusError) Body() []byte {
	return e.body
}

// validationError represents request validation errors
type validationError struct {
	diagnostics
	message string
	field   string
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *validationError) Type() ErrorType {
	return ValidationError
}

// interceptorError represents interceptor-related errors
type interceptorError struct {
	diagnostics
	message string
	stage   string
	wrapped error
}

func (e *interceptorError) Error() string {
	return fmt.Sprintf("interceptor error: %s (stage: %s): %v", e.message, e.stage, e.wrapped)
}

func (e *interceptorError) Type() ErrorType {
	return InterceptorError
}

func (e *interceptorError) Unwrap() error {
	return e.wrapped
}

// NewTransportError creates a new transport error
func NewTransportError(method, path string, wrapped error) ClientError {
	return &transportError{
		diagnostics: diagnostics{path: path},
		method:      method,
		wrapped:     wrapped,
	}
}

// NewCancellationError creates a new cancellation error
func NewCancellationError(path string, wrapped error) ClientError {
	if wrapped == nil {
		wrapped = context.Canceled
	}
	return &cancellationError{
		diagnostics: diagnostics{path: path},
		wrapped:     wrapped,
	}
}

// NewPayloadParseError creates a new payload parse error
func NewPayloadParseError(path string, statusCode int, transient bool, wrapped error) ClientError {
	return &payloadParseError{
		diagnostics: diagnostics{path: path},
		statusCode:  statusCode,
		transient:   transient,
		wrapped:     wrapped,
	}
}

// NewHTTPStatusError creates a new HTTP status error. cause may be nil.
func NewHTTPStatusError(path string, statusCode int, body []byte, cause error) ClientError {
	return &httpStatusError{
		diagnostics: diagnostics{path: path},
		statusCode:  statusCode,
		body:        body,
		wrapped:     cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message, field string) ClientError {
	return &validationError{
		message: message,
		field:   field,
	}
}

// NewInterceptorError creates a new interceptor error
func NewInterceptorError(message, stage string, wrapped error) ClientError {
	return &interceptorError{
		message: message,
		stage:   stage,
		wrapped: wrapped,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsHTTPStatusError checks if an error is an HTTP status error with a specific status code
func IsHTTPStatusError(err error, statusCode int) bool {
	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode() == statusCode
	}
	return false
}

// IsCancellation reports whether err is a caller-initiated abort
func IsCancellation(err error) bool {
	return IsErrorType(err, CancellationError)
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// withDiagnostics stamps the retry history onto err and returns it
func withDiagnostics(err error, retries int, messages []string) error {
	if a, ok := err.(annotator); ok {
		a.annotate(retries, messages)
	}
	return err
}
