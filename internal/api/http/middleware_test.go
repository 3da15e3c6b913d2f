package http

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/courier-portal/internal/observability"
	apperrors "github.com/spec-kit/courier-portal/pkg/util"
)

func newMiddlewareApp(t *testing.T) (*fiber.App, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	app := fiber.New()
	RegisterMiddlewares(app, zap.New(core), observability.NewMetrics(), time.Second)

	app.Get("/boom", func(c *fiber.Ctx) error { panic("nil manager") })
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return apperrors.NewConflict("Email already registered", map[string]any{"field": "email"})
	})
	app.Get("/deadline", func(c *fiber.Ctx) error {
		<-c.UserContext().Done()
		return c.UserContext().Err()
	})
	return app, logs
}

func decodeError(t *testing.T, resp *nethttp.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestErrorHandling_RecoversPanics(t *testing.T) {
	app, logs := newMiddlewareApp(t)

	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)

	assert.Equal(t, nethttp.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, resp)["code"])
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestErrorHandling_RendersDomainErrors(t *testing.T) {
	app, _ := newMiddlewareApp(t)

	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/conflict", nil), -1)
	require.NoError(t, err)

	assert.Equal(t, nethttp.StatusConflict, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "CONFLICT", body["code"])
	assert.Equal(t, map[string]any{"field": "email"}, body["details"])
}

func TestRequestTimeout(t *testing.T) {
	app, _ := newMiddlewareApp(t)

	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/deadline", nil), -1)
	require.NoError(t, err)

	assert.Equal(t, nethttp.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, "TIMEOUT", decodeError(t, resp)["code"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	app, logs := newMiddlewareApp(t)
	req := httptest.NewRequest(nethttp.MethodGet, "/conflict", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-42")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "req-42", resp.Header.Get(fiber.HeaderXRequestID))
	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
}
