package fixtures

import (
	"errors"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/gaborage/go-fetch/fetch"
	"github.com/gaborage/go-fetch/testing/mocks"
)

// Content type constants
const (
	ApplicationJSONContentType = "application/json"
	TextHTMLContentType        = "text/html"
)

// ErrConnectionRefused mimics a dial failure, which the engine treats as retryable
var ErrConnectionRefused = errors.New("dial tcp 127.0.0.1:443: connect: connection refused")

// JSONResponse creates a response carrying body with a JSON content type
func JSONResponse(status int, body string) *fetch.TransportResponse {
	return &fetch.TransportResponse{
		StatusCode: status,
		Headers:    nethttp.Header{"Content-Type": []string{ApplicationJSONContentType}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// HTMLResponse creates a response carrying an HTML body, as served by proxies and error pages
func HTMLResponse(status int, body string) *fetch.TransportResponse {
	return &fetch.TransportResponse{
		StatusCode: status,
		Headers:    nethttp.Header{"Content-Type": []string{TextHTMLContentType}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// Respond returns a ResponseFunc serving a fresh JSON response on every call
func Respond(status int, body string) mocks.ResponseFunc {
	return func(*fetch.TransportRequest) *fetch.TransportResponse {
		return JSONResponse(status, body)
	}
}

// NewStaticTransport creates a mock transport that answers every request with status and body.
// This is useful for testing happy path scenarios.
func NewStaticTransport(status int, body string) *mocks.MockTransport {
	m := &mocks.MockTransport{}
	m.ExpectAnySend().Return(Respond(status, body), nil)
	return m
}

// NewFailingTransport creates a mock transport whose every attempt fails with err
func NewFailingTransport(err error) *mocks.MockTransport {
	m := &mocks.MockTransport{}
	m.ExpectAnySend().Return(nil, err)
	return m
}

// NewFlakyTransport creates a mock transport that fails the first failures attempts with
// ErrConnectionRefused and then answers with status and body.
func NewFlakyTransport(failures int, status int, body string) *mocks.MockTransport {
	m := &mocks.MockTransport{}
	if failures > 0 {
		m.ExpectAnySend().Return(nil, ErrConnectionRefused).Times(failures)
	}
	m.ExpectAnySend().Return(Respond(status, body), nil)
	return m
}
