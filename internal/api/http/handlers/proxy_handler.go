package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/courier-portal/internal/auth"
	apperrors "github.com/spec-kit/courier-portal/pkg/util"
)

const maxProxyBody = 8 << 20

// forwarded request headers; cookies and Authorization stay with the portal
var proxyRequestHeaders = []string{
	fiber.HeaderAccept,
	fiber.HeaderAcceptLanguage,
	fiber.HeaderContentType,
	fiber.HeaderIfNoneMatch,
	fiber.HeaderXRequestID,
}

var proxyResponseHeaders = []string{
	fiber.HeaderContentType,
	fiber.HeaderCacheControl,
	fiber.HeaderETag,
	fiber.HeaderLocation,
}

// ProxyHandler relays SPA calls under /api to the courier backend through
// the tab's intercepted client.
type ProxyHandler struct {
	baseURL string
	logger  *zap.Logger
}

// NewProxyHandler constructs handler.
func NewProxyHandler(baseURL string, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{baseURL: strings.TrimSuffix(baseURL, "/"), logger: logger}
}

// Forward handles ALL /api/*.
func (h *ProxyHandler) Forward(c *fiber.Ctx) error {
	m, err := auth.MustManager(c)
	if err != nil {
		return err
	}

	target := h.baseURL + "/" + strings.TrimPrefix(c.Params("*"), "/")
	if q := string(c.Request().URI().QueryString()); q != "" {
		target += "?" + q
	}

	var body io.Reader
	if raw := c.Body(); len(raw) > 0 {
		// bytes.Reader lets the interceptor replay the body after a refresh
		body = bytes.NewReader(append([]byte(nil), raw...))
	}
	req, err := http.NewRequestWithContext(c.UserContext(), c.Method(), target, body)
	if err != nil {
		return apperrors.NewValidationError("invalid proxy target", nil)
	}
	for _, name := range proxyRequestHeaders {
		if v := c.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	if req.Header.Get(fiber.HeaderXRequestID) == "" {
		// minted by the requestid middleware when the SPA sent none
		if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
			req.Header.Set(fiber.HeaderXRequestID, id)
		}
	}

	resp, err := m.HTTPClient().Do(req)
	if err != nil {
		h.logger.Warn("backend call failed", zap.String("target", target), zap.Error(err))
		return apperrors.NewBadGateway(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBody))
	if err != nil {
		return apperrors.NewBadGateway(err)
	}
	for _, name := range proxyResponseHeaders {
		if v := resp.Header.Get(name); v != "" {
			c.Set(name, v)
		}
	}
	return c.Status(resp.StatusCode).Send(payload)
}
