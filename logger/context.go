package logger

import (
	"context"
	"sync/atomic"
)

type contextKey string

const (
	// fetchCounterKey tracks the number of physical fetch attempts made while serving a request
	fetchCounterKey contextKey = "fetch_attempt_counter"
	// fetchElapsedKey tracks total time spent in fetch attempts, in nanoseconds
	fetchElapsedKey contextKey = "fetch_elapsed_nanos"
)

// WithFetchCounter returns a context carrying a fetch attempt counter and elapsed-time tracker.
// Handlers install it once per inbound request; the fetch engine updates it for every attempt.
func WithFetchCounter(ctx context.Context) context.Context {
	counter := int64(0)
	elapsed := int64(0)
	ctx = context.WithValue(ctx, fetchCounterKey, &counter)
	return context.WithValue(ctx, fetchElapsedKey, &elapsed)
}

// IncrementFetchCounter increments the attempt counter in ctx, if present
func IncrementFetchCounter(ctx context.Context) {
	if counter, ok := ctx.Value(fetchCounterKey).(*int64); ok && counter != nil {
		atomic.AddInt64(counter, 1)
	}
}

// GetFetchCounter returns the attempt count stored in ctx, or 0
func GetFetchCounter(ctx context.Context) int64 {
	if counter, ok := ctx.Value(fetchCounterKey).(*int64); ok && counter != nil {
		return atomic.LoadInt64(counter)
	}
	return 0
}

// AddFetchElapsed adds nanos to the elapsed tracker in ctx, if present
func AddFetchElapsed(ctx context.Context, nanos int64) {
	if elapsed, ok := ctx.Value(fetchElapsedKey).(*int64); ok && elapsed != nil {
		atomic.AddInt64(elapsed, nanos)
	}
}

// GetFetchElapsed returns the elapsed nanoseconds stored in ctx, or 0
func GetFetchElapsed(ctx context.Context) int64 {
	if elapsed, ok := ctx.Value(fetchElapsedKey).(*int64); ok && elapsed != nil {
		return atomic.LoadInt64(elapsed)
	}
	return 0
}
