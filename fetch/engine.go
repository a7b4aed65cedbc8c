package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	nethttp "net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gaborage/go-fetch/internal/tracking"
	"github.com/gaborage/go-fetch/logger"
)

const (
	// DefaultTimeout is the default per-attempt timeout of the HTTP transport
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResponseBytes caps response bodies read by the engine
	DefaultMaxResponseBytes int64 = 10 << 20

	// DefaultMaxPayloadLogBytes caps logged body payloads
	DefaultMaxPayloadLogBytes = 4096
)

// backoffSchedule holds the delay before each retry; its length is the retry budget
var backoffSchedule = [...]time.Duration{
	50 * time.Millisecond,
	500 * time.Millisecond,
	1000 * time.Millisecond,
}

// MaxRetries is the number of retry slots
const MaxRetries = len(backoffSchedule)

// BackoffSchedule returns a copy of the fixed delays applied between attempts
func BackoffSchedule() []time.Duration {
	schedule := backoffSchedule
	return schedule[:]
}

// Sleeper waits for d or until ctx is done, returning the context's cause in the latter case
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}

// Engine executes logical requests against a Transport. It is safe for concurrent use.
type Engine struct {
	transport        Transport
	logger           logger.Logger
	sleep            Sleeper
	validate         *validator.Validate
	maxResponseBytes int64
	callCount        int64
}

// NewEngine creates an engine on top of transport. A nil transport selects the
// net/http transport with default configuration.
func NewEngine(log logger.Logger, transport Transport) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	if transport == nil {
		transport = NewHTTPTransport(log, nil, defaultConfig())
	}
	return &Engine{
		transport:        transport,
		logger:           log,
		sleep:            SleepContext,
		validate:         newRequestValidator(),
		maxResponseBytes: DefaultMaxResponseBytes,
	}
}

// Raw performs req and returns the undecoded JSON payload
func (e *Engine) Raw(ctx context.Context, req *Request) (*Result[json.RawMessage], error) {
	return JSON[json.RawMessage](ctx, e, req)
}

// CallCount returns the number of logical requests the engine has started
func (e *Engine) CallCount() int64 {
	return atomic.LoadInt64(&e.callCount)
}

// JSON performs req, retrying connectivity failures on the fixed backoff schedule,
// and decodes the response body into T.
//
// With ThrowOnErrorStatus (the default) any failure is returned as the error and the
// result is nil. Otherwise failures other than cancellation and validation are reported
// through Result.Err and the returned error is nil.
func JSON[T any](ctx context.Context, e *Engine, req *Request) (*Result[T], error) {
	spec, err := e.resolve(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	callCount := atomic.AddInt64(&e.callCount, 1)
	ctx, call := tracking.StartFetch(ctx, spec.Method, spec.path)
	log := e.logger.WithContext(ctx)

	var (
		out      attemptOutcome[T]
		attempts int
		messages = make([]string, 0, MaxRetries+1)
	)
	for {
		attempts++
		attemptStart := time.Now()
		out = attempt[T](ctx, e, spec)
		attemptElapsed := time.Since(attemptStart)

		logger.IncrementFetchCounter(ctx)
		logger.AddFetchElapsed(ctx, attemptElapsed.Nanoseconds())
		tracking.RecordAttempt(ctx, spec.Method, spec.path, out.statusCode, out.kind.String(), attemptElapsed)

		if out.kind != outcomeRetryable || !spec.retryable || len(messages) >= MaxRetries {
			break
		}

		delay := backoffSchedule[len(messages)]
		messages = append(messages, out.err.Error())
		log.Warn().
			Err(out.err).
			Str("method", spec.Method).
			Str("path", spec.path).
			Int("attempt", attempts).
			Dur("delay", delay).
			Msg("Fetch attempt failed, retrying")

		if err := e.sleep(ctx, delay); err != nil {
			out = attemptOutcome[T]{kind: outcomeAbort, err: NewCancellationError(spec.path, err)}
			break
		}
	}

	retries := len(messages)
	if out.kind == outcomeNonRetryable || (out.kind == outcomeRetryable && !spec.retryable) {
		// The failure that stopped the loop early is recorded without counting as a retry.
		// An exhausted schedule already recorded every failure that was retried.
		messages = append(messages, out.err.Error())
	}
	if retries > 0 && spec.diagnostic != nil {
		spec.diagnostic(fmt.Sprintf("%d retries for %s", retries, spec.path), map[string]string{
			"url_path":       spec.path,
			"error_messages": strings.Join(messages, ", "),
		})
	}

	res := &Result[T]{
		StatusCode:    out.statusCode,
		OK:            IsSuccessStatus(out.statusCode),
		Headers:       out.headers,
		Data:          out.data,
		Retries:       retries,
		ErrorMessages: messages,
		Stats: Stats{
			ElapsedTime: time.Since(start),
			Attempts:    attempts,
			CallCount:   callCount,
		},
	}

	finalErr := terminalError(spec, out)
	if finalErr != nil {
		finalErr = withDiagnostics(finalErr, retries, messages)
	}
	call.End(ctx, out.statusCode, attempts, retries, errorType(finalErr), finalErr)

	logEvent := log.Debug().
		Str("method", spec.Method).
		Str("path", spec.path).
		Int("status", out.statusCode).
		Int("attempts", attempts).
		Int("retries", retries).
		Dur("elapsed", res.Stats.ElapsedTime)
	if finalErr != nil {
		logEvent = logEvent.Err(finalErr)
	}
	logEvent.Msg("Fetch completed")

	if finalErr == nil {
		return res, nil
	}
	if out.kind == outcomeAbort || spec.throw {
		return nil, finalErr
	}
	res.Err = finalErr
	return res, nil
}

// terminalError converts the last outcome into the error surfaced to the caller
func terminalError[T any](spec *requestSpec, out attemptOutcome[T]) error {
	if out.kind != outcomeSuccess {
		return out.err
	}
	if IsSuccessStatus(out.statusCode) {
		return nil
	}
	return NewHTTPStatusError(spec.path, out.statusCode, out.body, out.err)
}

func errorType(err error) string {
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return string(clientErr.Type())
	}
	return ""
}

// requestSpec is the resolved, immutable form of a Request
type requestSpec struct {
	URL    string `validate:"required,http_url"`
	Method string `validate:"required,http_method"`

	headers          map[string]string
	body             []byte
	auth             *BasicAuth
	path             string
	retryable        bool
	throw            bool
	parseBodyOnError bool
	diagnostic       DiagnosticFunc
}

func (s *requestSpec) transportRequest() *TransportRequest {
	return &TransportRequest{
		URL:     s.URL,
		Method:  s.Method,
		Headers: maps.Clone(s.headers),
		Body:    s.body,
		Auth:    s.auth,
	}
}

// resolve applies defaults and validates req
func (e *Engine) resolve(req *Request) (*requestSpec, error) {
	if req == nil {
		return nil, NewValidationError("request cannot be nil", "request")
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = nethttp.MethodGet
	}

	spec := &requestSpec{
		URL:        req.URL,
		Method:     method,
		headers:    maps.Clone(req.Headers),
		body:       req.Body,
		auth:       req.Auth,
		path:       SanitizePath(req.URL),
		diagnostic: req.Diagnostic,
	}
	if err := e.validate.Struct(spec); err != nil {
		return nil, toValidationError(err)
	}

	spec.throw = boolOr(req.ThrowOnErrorStatus, true)
	spec.retryable = boolOr(req.Retryable, method == nethttp.MethodGet)
	spec.parseBodyOnError = boolOr(req.ParseBodyOnError, !spec.throw)
	return spec, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

// httpMethodToken matches an RFC 9110 method token
var httpMethodToken = regexp.MustCompile("^[!#$%&'*+.^_`|~0-9A-Z-]+$")

func newRequestValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("http_method", validateHTTPMethod); err != nil {
		panic(fmt.Sprintf("fetch: register http_method validation: %v", err))
	}
	return v
}

func validateHTTPMethod(fl validator.FieldLevel) bool {
	return httpMethodToken.MatchString(fl.Field().String())
}

func toValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return NewValidationError(validationMessage(fe), strings.ToLower(fe.Field()))
	}
	return NewValidationError(err.Error(), "")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s cannot be empty", fe.Field())
	case "http_url":
		return fmt.Sprintf("%s must be an absolute http(s) URL", fe.Field())
	case "http_method":
		return fmt.Sprintf("%s %q is not a valid HTTP method", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag())
	}
}
