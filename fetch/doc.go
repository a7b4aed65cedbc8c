// Package fetch performs JSON-over-HTTP requests with a small, fixed retry policy
// and returns a uniform result describing the payload, the error and the retry history.
//
// Retries
//   - Only connection-level failures are retried: transport errors (DNS, refused,
//     reset, client timeouts) and payload reads that fail or yield truncated JSON.
//   - A received response is never retried because of its status code. A non-2xx
//     response is authoritative and becomes an HTTPStatusError.
//   - Payloads that are categorically not JSON (an HTML error page, for example) or that
//     do not match the target type are surfaced immediately.
//   - Cancellation of the caller's context always wins: the attempt is abandoned and
//     no further retries are made, whatever the Retryable setting.
//   - Requests are retryable by default only for GET. Request.Retryable overrides it.
//
// Backoff Schedule
//   - Fixed delays of 50ms, 500ms and 1s between attempts, so at most 4 attempts and
//     1.55s of scheduled waiting per call. The wait is abandoned when ctx is done.
//
// Presentation
//   - ThrowOnErrorStatus (default true) returns failures as the error value and a nil Result.
//   - With ThrowOnErrorStatus false, failures are placed in Result.Err and the returned
//     error is nil. Cancellation and validation failures are always returned as errors.
//
// Diagnostics
//   - Result.ErrorMessages holds one message per failed attempt, oldest first. Retries
//     equals len(ErrorMessages) when the schedule is exhausted or a retry succeeds; when a
//     non-retryable failure, or a failure of a request that is not retryable, ends the
//     loop, its message is appended and len(ErrorMessages) is Retries+1.
//   - Errors and log lines refer to the sanitized path (see SanitizePath), never to the
//     full URL.
package fetch
