// Package restytransport provides a fetch.Transport backed by go-resty.
// Resty's own retry support stays disabled; the fetch engine owns the retry policy.
package restytransport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gaborage/go-fetch/fetch"
)

// DefaultTimeout is applied when New is given a zero timeout
const DefaultTimeout = 30 * time.Second

// Transport sends attempts through a resty client
type Transport struct {
	client *resty.Client
}

var _ fetch.Transport = (*Transport)(nil)

// New creates a transport with its own resty client
func New(timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewWithClient(resty.New().SetTimeout(timeout))
}

// NewWithClient wraps an existing client. Retries configured on it are disabled.
func NewWithClient(client *resty.Client) *Transport {
	return &Transport{client: client.SetRetryCount(0)}
}

// Send performs one attempt and hands back the unread body
func (t *Transport) Send(ctx context.Context, req *fetch.TransportRequest) (*fetch.TransportResponse, error) {
	r := t.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "application/json").
		SetHeaders(req.Headers)

	if req.Body != nil {
		if r.Header.Get("Content-Type") == "" {
			r.SetHeader("Content-Type", "application/json")
		}
		r.SetBody(req.Body)
	}
	if req.Auth != nil {
		r.SetBasicAuth(req.Auth.Username, req.Auth.Password)
	}

	resp, err := r.Execute(strings.ToUpper(req.Method), req.URL)
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			resp.RawBody().Close()
		}
		return nil, fmt.Errorf("resty %s: %w", req.Method, err)
	}

	return &fetch.TransportResponse{
		StatusCode: resp.StatusCode(),
		Headers:    resp.Header(),
		Body:       resp.RawBody(),
	}, nil
}
