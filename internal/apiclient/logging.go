package apiclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingTransport logs one line per round trip. Bodies and headers are never logged.
type LoggingTransport struct {
	next http.RoundTripper
	log  *zap.Logger
}

// NewLoggingTransport wraps next (http.DefaultTransport when nil).
func NewLoggingTransport(next http.RoundTripper, log *zap.Logger) *LoggingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingTransport{next: next, log: log}
}

// RoundTrip sends req through the wrapped transport and logs the outcome.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
		zap.Duration("dur", time.Since(start)),
	}
	if err != nil {
		t.log.Warn("http", append(fields, zap.Error(err))...)
		return nil, err
	}
	fields = append(fields, zap.Int("status", resp.StatusCode))
	if resp.StatusCode >= 500 {
		t.log.Warn("http", fields...)
	} else {
		t.log.Debug("http", fields...)
	}
	return resp, nil
}
