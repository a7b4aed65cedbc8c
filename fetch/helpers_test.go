package fetch

import (
	"context"
	"io"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gaborage/go-fetch/logger"
)

// Test constants to avoid string duplication
const (
	testUsersURL    = testBaseURL + "/users"
	testUsersPath   = "/users"
	testUserJSON    = `{"id":1,"name":"Ada"}`
	testCustomTrace = "custom-trace-123"
	testJSONType    = "application/json"
)

type testUser struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// step produces the outcome of one physical attempt
type step func(ctx context.Context, req *TransportRequest) (*TransportResponse, error)

// scriptedTransport replays steps in order; the last step repeats once the script runs out
type scriptedTransport struct {
	mu       sync.Mutex
	steps    []step
	requests []*TransportRequest
}

func newScriptedTransport(steps ...step) *scriptedTransport {
	return &scriptedTransport{steps: steps}
}

func (s *scriptedTransport) Send(ctx context.Context, req *TransportRequest) (*TransportResponse, error) {
	s.mu.Lock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	next := s.steps[idx]
	s.mu.Unlock()

	return next(ctx, req)
}

func (s *scriptedTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func respond(status int, body string) step {
	return func(_ context.Context, _ *TransportRequest) (*TransportResponse, error) {
		return &TransportResponse{
			StatusCode: status,
			Headers:    nethttp.Header{"Content-Type": []string{testJSONType}},
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func failWith(err error) step {
	return func(_ context.Context, _ *TransportRequest) (*TransportResponse, error) {
		return nil, err
	}
}

// respondWithBrokenBody returns a response whose body fails with readErr after the first bytes
func respondWithBrokenBody(status int, readErr error) step {
	return func(_ context.Context, _ *TransportRequest) (*TransportResponse, error) {
		return &TransportResponse{
			StatusCode: status,
			Headers:    nethttp.Header{},
			Body:       io.NopCloser(io.MultiReader(strings.NewReader(`{"id":`), errReader{err: readErr})),
		}, nil
	}
}

type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}

// recordingSleeper records requested delays without waiting
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleeper) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestEngine(tr Transport) (*Engine, *recordingSleeper) {
	sleeper := &recordingSleeper{}
	engine := NewBuilder(logger.Nop()).
		WithTransport(tr).
		WithSleeper(sleeper.sleep).
		Build()
	return engine, sleeper
}

func newIPv4TestServer(t *testing.T, handler nethttp.Handler) *httptest.Server {
	t.Helper()
	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: unable to bind IPv4 listener: %v", err)
		return &httptest.Server{}
	}

	server := &httptest.Server{
		Listener: listener,
		Config:   &nethttp.Server{Handler: handler},
	}
	server.Start()
	return server
}

type roundTripperFunc func(*nethttp.Request) (*nethttp.Response, error)

func (f roundTripperFunc) RoundTrip(req *nethttp.Request) (*nethttp.Response, error) {
	return f(req)
}
