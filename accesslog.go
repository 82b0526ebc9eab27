package httpproxy

import (
	"context"
	"log/slog"
	"time"
)

// AccessLogger writes structured access log entries for each proxied
// request. It uses slog.LogAttrs to keep allocations down on the hot path.
type AccessLogger struct {
	logger *slog.Logger
}

// AccessEntry contains the fields of a single access log record.
type AccessEntry struct {
	// Timestamp when the request was received.
	Timestamp time.Time

	// Method is the HTTP method.
	Method string

	// Origin is the URL the client requested.
	Origin string

	// Target is the URL the request was forwarded to (or the local
	// path served).
	Target string

	// Rewrite is true when a rule rewrote the target.
	Rewrite bool

	// StatusCode is the response status. Zero on upstream failure.
	StatusCode int

	// Duration is the time to process the request.
	Duration time.Duration

	// BytesWritten is the response body size relayed to the client.
	BytesWritten int64

	// ClientAddr is the client's remote address.
	ClientAddr string

	// Error describes any failure that occurred.
	Error string

	// UserAgent is the client's User-Agent header.
	UserAgent string
}

// NewAccessLogger creates an AccessLogger writing to the given slog.Logger.
// Pass a logger with slog.NewJSONHandler for machine-readable output.
func NewAccessLogger(logger *slog.Logger) *AccessLogger {
	return &AccessLogger{logger: logger}
}

// Log writes one access log entry.
func (al *AccessLogger) Log(e AccessEntry) {
	attrs := make([]slog.Attr, 0, 10)

	attrs = append(attrs,
		slog.Time("timestamp", e.Timestamp),
		slog.String("method", e.Method),
		slog.String("origin", e.Origin),
		slog.String("target", e.Target),
		slog.Bool("rewrite", e.Rewrite),
		slog.String("client", e.ClientAddr),
		slog.Int("status", e.StatusCode),
		slog.Int64("bytes", e.BytesWritten),
		slog.Duration("duration", e.Duration),
	)

	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}
	if e.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", e.UserAgent))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "access", attrs...)
}
