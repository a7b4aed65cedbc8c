package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-fetch/fetch"
)

// ResponseFunc builds a fresh response per call. Return it from an expectation when
// the same response is served more than once, since a body can only be read once.
type ResponseFunc func(req *fetch.TransportRequest) *fetch.TransportResponse

// MockTransport provides a testify-based mock implementation of the fetch.Transport interface.
//
// Example usage:
//
//	mockTransport := &mocks.MockTransport{}
//	mockTransport.ExpectSend("GET", "https://api.example.com/users").
//		Return(fixtures.Respond(200, `[]`), nil)
//
//	engine := fetch.NewBuilder(log).WithTransport(mockTransport).Build()
type MockTransport struct {
	mock.Mock
}

var _ fetch.Transport = (*MockTransport)(nil)

// Send implements fetch.Transport
func (m *MockTransport) Send(ctx context.Context, req *fetch.TransportRequest) (*fetch.TransportResponse, error) {
	arguments := m.Called(ctx, req)

	var resp *fetch.TransportResponse
	switch r := arguments.Get(0).(type) {
	case *fetch.TransportResponse:
		resp = r
	case ResponseFunc:
		resp = r(req)
	case func(*fetch.TransportRequest) *fetch.TransportResponse:
		resp = r(req)
	}
	return resp, arguments.Error(1)
}

// ExpectSend sets up an expectation for a request with the given method and URL
func (m *MockTransport) ExpectSend(method, url string) *mock.Call {
	return m.On("Send", mock.Anything, RequestMatching(method, url))
}

// ExpectAnySend sets up an expectation matching every request
func (m *MockTransport) ExpectAnySend() *mock.Call {
	return m.On("Send", mock.Anything, mock.Anything)
}

// RequestMatching returns an argument matcher on the request method and URL.
// An empty method or URL matches anything.
func RequestMatching(method, url string) any {
	return mock.MatchedBy(func(req *fetch.TransportRequest) bool {
		if req == nil {
			return false
		}
		return (method == "" || req.Method == method) && (url == "" || req.URL == url)
	})
}
