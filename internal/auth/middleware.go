// Package auth binds incoming browser requests to their tab session.
package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/courier-portal/internal/config"
	"github.com/spec-kit/courier-portal/internal/session"
	apperrors "github.com/spec-kit/courier-portal/pkg/util"
)

const (
	managerKey = "auth_session_manager"
	tabKey     = "auth_tab_id"

	deviceCookieLifetime = 365 * 24 * time.Hour
)

// SessionMiddleware resolves the tab and device cookies of a request and
// attaches the tab's session manager.
type SessionMiddleware struct {
	registry *session.Registry
	cfg      config.SessionConfig
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(registry *session.Registry, cfg config.SessionConfig) *SessionMiddleware {
	return &SessionMiddleware{registry: registry, cfg: cfg}
}

// Handle issues missing cookies and loads the manager for the tab. The tab
// cookie carries no expiry so the browser drops it with the tab session.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	sid := validID(c.Cookies(m.cfg.TabCookie))
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(m.cookie(m.cfg.TabCookie, sid, time.Time{}))
	}
	device := validID(c.Cookies(m.cfg.DeviceCookie))
	if device == "" {
		device = uuid.NewString()
		c.Cookie(m.cookie(m.cfg.DeviceCookie, device, time.Now().Add(deviceCookieLifetime)))
	}

	manager := m.registry.Get(c.UserContext(), sid, device)
	c.Locals(managerKey, manager)
	c.Locals(tabKey, sid)
	return c.Next()
}

func (m *SessionMiddleware) cookie(name, value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		Secure:   m.cfg.SecureCookies,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

// validID rejects cookie values that are not uuids so clients cannot pick
// arbitrary storage scopes.
func validID(v string) string {
	id, err := uuid.Parse(v)
	if err != nil {
		return ""
	}
	return id.String()
}

// ManagerFromContext retrieves the tab's session manager.
func ManagerFromContext(c *fiber.Ctx) (*session.Manager, bool) {
	manager, ok := c.Locals(managerKey).(*session.Manager)
	return manager, ok && manager != nil
}

// TabIDFromContext returns the tab session id of the request.
func TabIDFromContext(c *fiber.Ctx) string {
	sid, _ := c.Locals(tabKey).(string)
	return sid
}

// MustManager is ManagerFromContext for routes mounted behind Handle.
func MustManager(c *fiber.Ctx) (*session.Manager, error) {
	manager, ok := ManagerFromContext(c)
	if !ok {
		return nil, apperrors.NewInternalError(nil)
	}
	return manager, nil
}
