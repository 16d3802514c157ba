package logkafka

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

type LogEntry struct {
	Level     string            `json:"level"`
	Module    string            `json:"module"`
	Message   string            `json:"message"`
	TraceID   string            `json:"trace_id"`
	Env       string            `json:"env"`
	Timestamp string            `json:"timestamp"`
	Extra     map[string]string `json:"extra"`
}

func LogToKafka(level, module, message, traceID, env string, extra map[string]string) {
	entry := LogEntry{
		Level:     level,
		Module:    module,
		Message:   message,
		TraceID:   traceID,
		Env:       env,
		Timestamp: time.Now().Format(time.RFC3339),
		Extra:     extra,
	}
	b, _ := json.Marshal(entry)
	_ = WriteLogToKafka(context.Background(), b)
}

// ship is swapped out in tests.
var ship = LogToKafka

type callerKey struct{}

// callerHolder is installed by LoggingMiddleware before the handler chain
// runs. Context values added by inner middleware are invisible out here, so
// the auth layer reports the identity by writing through this pointer.
type callerHolder struct {
	id string
}

// WithCallerHolder prepares ctx so a later SetCaller call is visible to the
// request log entry.
func WithCallerHolder(ctx context.Context) context.Context {
	return context.WithValue(ctx, callerKey{}, &callerHolder{})
}

// SetCaller records the authenticated account id for the request log entry.
// No-op when the request did not pass through LoggingMiddleware.
func SetCaller(ctx context.Context, id string) {
	if h, ok := ctx.Value(callerKey{}).(*callerHolder); ok {
		h.id = id
	}
}

// CallerID returns the account id recorded by SetCaller, or an empty string.
func CallerID(ctx context.Context) string {
	if h, ok := ctx.Value(callerKey{}).(*callerHolder); ok {
		return h.id
	}
	return ""
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func levelForStatus(status int) string {
	switch {
	case status >= 500:
		return "error"
	case status >= 400:
		return "warn"
	default:
		return "info"
	}
}

// LoggingMiddleware ships one structured entry per request to Kafka, tagging
// it with a trace id, the caller identity, and the response outcome.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		ip := r.Header.Get("X-Forwarded-For")
		if ip == "" {
			ip, _, _ = net.SplitHostPort(r.RemoteAddr)
		} else {
			ips := strings.Split(ip, ",")
			ip = strings.TrimSpace(ips[0])
		}

		ctx := WithCallerHolder(r.Context())
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r.WithContext(ctx))
		duration := time.Since(start)

		userID := CallerID(ctx)
		if userID == "" {
			userID = "anonymous"
		}

		extra := map[string]string{
			"user_id":     userID,
			"ip":          ip,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      fmt.Sprintf("%d", rw.statusCode),
			"duration_ms": fmt.Sprintf("%d", duration.Milliseconds()),
			"user_agent":  r.UserAgent(),
		}

		ship(
			levelForStatus(rw.statusCode),
			"http",
			"request completed",
			traceID,
			os.Getenv("APP_ENV"),
			extra,
		)
	})
}
