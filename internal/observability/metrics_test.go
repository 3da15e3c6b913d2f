package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/courier-portal/internal/domain"
	"github.com/spec-kit/courier-portal/internal/events"
)

func TestMetrics_SessionEvents(t *testing.T) {
	m := NewMetrics()
	d := events.NewInMemoryDispatcher()
	m.Subscribe(d)

	ctx := context.Background()
	require.NoError(t, d.Publish(ctx, events.Event{Type: events.EventSessionEstablished, UserType: domain.IdentityAdmin}))
	require.NoError(t, d.Publish(ctx, events.Event{Type: events.EventSessionEstablished, UserType: domain.IdentityAdmin}))
	require.NoError(t, d.Publish(ctx, events.Event{Type: events.EventRefreshFailed}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionEvents.WithLabelValues("session_established", "admin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionEvents.WithLabelValues("refresh_failed", "")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.SetLiveSessions(3)
		m.Subscribe(events.NewInMemoryDispatcher())
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/session/me", "GET", 200, 5*time.Millisecond)
	m.SetLiveSessions(4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, `portal_http_requests_total{method="GET",route="/session/me",status="200"} 1`)
	assert.Contains(t, body, "portal_live_sessions 4")
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), m))
	app.Get("/ok/:id", func(c *fiber.Ctx) error { return c.SendString("fine") })
	app.Get("/missing", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNotFound) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok/7", nil))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "/ok/7", entries[0].ContextMap()["path"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/ok/:id", "GET", "200")))
}
