package main

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userapi/userapi/internal/config"
	"github.com/userapi/userapi/internal/handler"
	"github.com/userapi/userapi/internal/metrics"
	"github.com/userapi/userapi/internal/repository/memstore"
	"github.com/userapi/userapi/internal/service"
)

func TestRedactURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"postgres://user:secret@db:5432/app", "postgres://user@db:5432/app"},
		{"redis://:secret@cache:6379/0", "redis://redacted@cache:6379/0"},
		{"postgres://db/app?password=secret&sslmode=disable", "postgres://db/app?password=redacted&sslmode=disable"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, redactURL(tt.raw), tt.raw)
	}
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://user:secret@db:5432/app"
	err := errors.New("failed to connect to " + dsn + " (password=secret)")

	got := sanitizeError(err, dsn)
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "postgres://user@db:5432/app")
	assert.Empty(t, sanitizeError(nil))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("unknown"))
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := metrics.NewInMemory()
	svc := service.NewUserService(memstore.New(), recorder)

	cfg := &config.Config{
		AppEnv:             "development",
		RateLimitEnabled:   true,
		RateLimitRPS:       100,
		RateLimitBurst:     100,
		MaxRequestBodySize: 1 << 20,
	}

	return setupRouter(
		handler.New(),
		handler.NewHealthHandler(nil, nil),
		handler.NewMetricsHandler(recorder),
		handler.NewUserHandler(svc, logger),
		nil,
		cfg,
		logger,
	)
}

func TestRouter_UserLifecycle(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/users",
		strings.NewReader(`{"username":"john_doe","email":"john.doe@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "users_created_total 1")
}

func TestRouter_Fallbacks(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RejectsNonJSONBody(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader("username=john"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
