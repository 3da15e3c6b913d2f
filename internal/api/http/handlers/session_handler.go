package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/courier-portal/internal/api/dto"
	"github.com/spec-kit/courier-portal/internal/auth"
	"github.com/spec-kit/courier-portal/internal/gateway"
	"github.com/spec-kit/courier-portal/internal/service"
	"github.com/spec-kit/courier-portal/internal/session"
	"github.com/spec-kit/courier-portal/internal/token"
	apperrors "github.com/spec-kit/courier-portal/pkg/util"
)

// SessionHandler exposes the tab session to the SPA.
type SessionHandler struct {
	notifications *service.NotificationService
	codec         *token.Codec
}

// NewSessionHandler constructs handler.
func NewSessionHandler(notifications *service.NotificationService, codec *token.Codec) *SessionHandler {
	if codec == nil {
		codec = token.NewCodec(nil)
	}
	return &SessionHandler{notifications: notifications, codec: codec}
}

// Login handles POST /session/login/:variant.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	creds, err := parseCredentials(c)
	if err != nil {
		return err
	}
	m, err := auth.MustManager(c)
	if err != nil {
		return err
	}

	if _, err := m.LoginAs(c.UserContext(), creds); err != nil {
		return loginError(err)
	}
	return c.JSON(fiber.Map{"data": h.state(m)})
}

// Register handles POST /session/register.
func (h *SessionHandler) Register(c *fiber.Ctx) error {
	var req gateway.CustomerRegistration
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	m, err := auth.MustManager(c)
	if err != nil {
		return err
	}

	if _, err := m.Register(c.UserContext(), req); err != nil {
		return loginError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.state(m)})
}

// Refresh handles POST /session/refresh.
func (h *SessionHandler) Refresh(c *fiber.Ctx) error {
	m, err := auth.MustManager(c)
	if err != nil {
		return err
	}
	if !m.Refresh(c.UserContext()) {
		return apperrors.NewUnauthorized("session expired")
	}
	return c.JSON(fiber.Map{"data": h.state(m)})
}

// Logout handles POST /session/logout. ?silent=true suppresses the
// notification.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	m, err := auth.MustManager(c)
	if err != nil {
		return err
	}

	var redirect string
	nav := func(dest string) { redirect = dest }
	if c.QueryBool("silent") {
		m.LogoutSilently(c.UserContext(), nav)
	} else {
		m.LogoutWithNotification(c.UserContext(), nav)
	}
	return c.JSON(fiber.Map{"data": dto.LogoutResponse{Redirect: redirect}})
}

// Me handles GET /session/me.
func (h *SessionHandler) Me(c *fiber.Ctx) error {
	m, err := auth.MustManager(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.state(m)})
}

// UpdateProfile handles PATCH /session/profile.
func (h *SessionHandler) UpdateProfile(c *fiber.Ctx) error {
	var req dto.ProfileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	m, err := auth.MustManager(c)
	if err != nil {
		return err
	}

	if _, err := m.UpdateProfile(c.UserContext(), req.Patch()); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			return apperrors.NewUnauthorized("login required")
		}
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": h.state(m)})
}

// Notifications handles GET /session/notifications.
func (h *SessionHandler) Notifications(c *fiber.Ctx) error {
	notes := h.notifications.Drain(auth.TabIDFromContext(c))
	if notes == nil {
		notes = []session.Notification{}
	}
	return c.JSON(fiber.Map{"data": dto.NotificationsResponse{Notifications: notes}})
}

func (h *SessionHandler) state(m *session.Manager) dto.SessionResponse {
	state := m.State()
	if !state.Authenticated() {
		return dto.NewSessionResponse(state, time.Time{})
	}
	exp, _ := h.codec.ExpiresAt(m.Bearer())
	return dto.NewSessionResponse(state, exp)
}

func parseCredentials(c *fiber.Ctx) (gateway.Credentials, error) {
	var creds gateway.Credentials
	var err error
	switch c.Params("variant") {
	case "admin":
		var v gateway.AdminCredentials
		err = c.BodyParser(&v)
		creds = v
	case "customer":
		var v gateway.CustomerCredentials
		err = c.BodyParser(&v)
		creds = v
	case "delivery-agent":
		var v gateway.DeliveryAgentCredentials
		err = c.BodyParser(&v)
		creds = v
	case "staff":
		var v gateway.StaffCredentials
		err = c.BodyParser(&v)
		creds = v
	default:
		return nil, apperrors.NewNotFound("login variant", map[string]any{"variant": c.Params("variant")})
	}
	if err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func loginError(err error) error {
	var le *gateway.LoginError
	if errors.As(err, &le) {
		return apperrors.NewLoginFailed(le.Message, le.Status, le)
	}
	return apperrors.NewLoginFailed("Login failed", 0, err)
}
