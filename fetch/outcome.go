package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
)

// outcomeKind tags the result of a single attempt
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetryable
	outcomeNonRetryable
	outcomeAbort
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSuccess:
		return "success"
	case outcomeRetryable:
		return "retryable"
	case outcomeNonRetryable:
		return "non_retryable"
	case outcomeAbort:
		return "aborted"
	default:
		return "unknown"
	}
}

// attemptOutcome is consumed by the retry loop. For outcomeSuccess, err holds the
// parse failure of a non-2xx body, if any; for every other kind it is the failure.
type attemptOutcome[T any] struct {
	kind       outcomeKind
	statusCode int
	headers    nethttp.Header
	body       []byte
	data       *T
	err        error
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// errResponseTooLarge is returned when a body exceeds the configured limit
var errResponseTooLarge = errors.New("response body exceeds size limit")

// errNoResponse is reported when a Transport returns neither a response nor an error
var errNoResponse = errors.New("transport returned no response")

// attempt performs one physical exchange and classifies it
func attempt[T any](ctx context.Context, e *Engine, spec *requestSpec) attemptOutcome[T] {
	resp, err := e.transport.Send(ctx, spec.transportRequest())
	if err != nil {
		return classifySendError[T](ctx, spec, err)
	}
	if resp == nil {
		return attemptOutcome[T]{kind: outcomeNonRetryable, err: NewTransportError(spec.Method, spec.path, errNoResponse)}
	}
	out := attemptOutcome[T]{statusCode: resp.StatusCode, headers: resp.Headers}
	if resp.Body == nil {
		resp.Body = nethttp.NoBody
	}
	defer resp.Body.Close()

	ok := IsSuccessStatus(resp.StatusCode)
	if !ok && !spec.parseBodyOnError {
		// The body is kept for the status error only; read failures do not change the outcome.
		if body, err := readBody(resp.Body, e.maxResponseBytes); err == nil {
			out.body = body
		}
		out.kind = outcomeSuccess
		return out
	}

	body, err := readBody(resp.Body, e.maxResponseBytes)
	if err != nil {
		if cancelled(ctx, err) {
			out.kind = outcomeAbort
			out.err = NewCancellationError(spec.path, cancellationCause(ctx, err))
			return out
		}
		if !ok {
			out.kind = outcomeSuccess
			out.err = err
			return out
		}
		tooLarge := errors.Is(err, errResponseTooLarge)
		out.err = NewPayloadParseError(spec.path, resp.StatusCode, !tooLarge, err)
		out.kind = outcomeRetryable
		if tooLarge {
			out.kind = outcomeNonRetryable
		}
		return out
	}
	out.body = body

	payload := bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if len(payload) == 0 {
		if ok && !emptyBodyAllowed(spec.Method, resp.StatusCode) {
			out.kind = outcomeNonRetryable
			out.err = NewPayloadParseError(spec.path, resp.StatusCode, false, errors.New("empty response body"))
			return out
		}
		out.kind = outcomeSuccess
		return out
	}

	data, err := decodeJSON[T](payload)
	switch {
	case err == nil:
		out.kind = outcomeSuccess
		out.data = data
	case !ok:
		// The status error is authoritative; the parse failure becomes its cause.
		out.kind = outcomeSuccess
		out.err = err
	case isTransientParseFailure(payload, err):
		out.kind = outcomeRetryable
		out.err = NewPayloadParseError(spec.path, resp.StatusCode, true, err)
	default:
		out.kind = outcomeNonRetryable
		out.err = NewPayloadParseError(spec.path, resp.StatusCode, false, err)
	}
	return out
}

// classifySendError maps a transport failure onto an outcome
func classifySendError[T any](ctx context.Context, spec *requestSpec, err error) attemptOutcome[T] {
	if cancelled(ctx, err) {
		return attemptOutcome[T]{kind: outcomeAbort, err: NewCancellationError(spec.path, cancellationCause(ctx, err))}
	}

	var clientErr ClientError
	if errors.As(err, &clientErr) {
		// Interceptor and validation failures raised inside the transport are deterministic
		return attemptOutcome[T]{kind: outcomeNonRetryable, err: clientErr}
	}

	return attemptOutcome[T]{kind: outcomeRetryable, err: NewTransportError(spec.Method, spec.path, stripURL(err))}
}

// stripURL drops the *url.Error wrapper so the full URL does not leak into messages
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

func cancellationCause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return err
}

// readBody reads at most limit bytes; limit <= 0 means unbounded
func readBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", errResponseTooLarge, limit)
	}
	return body, nil
}

func emptyBodyAllowed(method string, statusCode int) bool {
	return method == nethttp.MethodHead ||
		statusCode == nethttp.StatusNoContent ||
		statusCode == nethttp.StatusResetContent
}

// decodeJSON returns nil data for a JSON null
func decodeJSON[T any](payload []byte) (*T, error) {
	var data *T
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// isTransientParseFailure reports whether a decode failure looks like a garbled or
// truncated JSON document rather than a payload that is categorically not JSON or
// that does not match the target type. A document cut short is transient. Text after a
// complete top-level value ("404 page not found", "nullish") is not JSON; neither is a
// payload that fails before the first value unless it opens an object or array.
func isTransientParseFailure(payload []byte, err error) bool {
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return false
	}

	var first json.RawMessage
	switch err := json.NewDecoder(bytes.NewReader(payload)).Decode(&first); {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case err != nil:
		return payload[0] == '{' || payload[0] == '['
	default:
		return false
	}
}
