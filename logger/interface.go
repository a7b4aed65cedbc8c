// Package logger defines the structured logging contract used by the fetch engine
// and its transports, together with a zerolog-backed implementation.
package logger

import (
	"context"
	"time"
)

// Logger creates leveled events. WithContext prefers a logger carried by ctx so
// request-scoped fields set by the caller reach fetch log lines.
type Logger interface {
	Debug() LogEvent
	Info() LogEvent
	Warn() LogEvent
	Error() LogEvent
	WithContext(ctx context.Context) Logger
}

// LogEvent accumulates fields and is sent by Msg. String and arbitrary values pass
// through the sensitive-data filter.
type LogEvent interface {
	Msg(msg string)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Bool(key string, value bool) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Interface(key string, i any) LogEvent
	Bytes(key string, val []byte) LogEvent
}
