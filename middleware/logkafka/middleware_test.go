package logkafka

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusOK, "info"},
		{http.StatusCreated, "info"},
		{http.StatusMovedPermanently, "info"},
		{http.StatusBadRequest, "warn"},
		{http.StatusNotFound, "warn"},
		{http.StatusInternalServerError, "error"},
		{http.StatusBadGateway, "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levelForStatus(tt.status), "status %d", tt.status)
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, rw.statusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestResponseWriterDefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.Write([]byte("hello"))

	assert.Equal(t, http.StatusOK, rw.statusCode)
}

// The logged identity must survive the handler chain even though inner
// middleware derives its own request context.
func TestLoggingMiddlewareRecordsCaller(t *testing.T) {
	var logged map[string]string
	orig := ship
	ship = func(level, module, message, traceID, env string, extra map[string]string) {
		logged = extra
	}
	defer func() { ship = orig }()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Mirrors the auth middleware: values go on a derived context,
		// the identity is reported through the holder.
		r = r.WithContext(context.WithValue(r.Context(), "userID", "64b000000000000000000001"))
		SetCaller(r.Context(), "64b000000000000000000001")
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	rec := httptest.NewRecorder()

	LoggingMiddleware(inner).ServeHTTP(rec, req)

	require.NotNil(t, logged)
	assert.Equal(t, "64b000000000000000000001", logged["user_id"])
	assert.Equal(t, "200", logged["status"])
}

func TestLoggingMiddlewareAnonymousWithoutAuth(t *testing.T) {
	var logged map[string]string
	orig := ship
	ship = func(level, module, message, traceID, env string, extra map[string]string) {
		logged = extra
	}
	defer func() { ship = orig }()

	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/restaurants", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.NotNil(t, logged)
	assert.Equal(t, "anonymous", logged["user_id"])
}

// The middleware must not fail a request when no Kafka writer was set up.
func TestLoggingMiddlewareWithoutWriter(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/restaurants", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}
