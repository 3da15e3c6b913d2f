package backendstub

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/courier-portal/internal/domain"
)

const subjectKey = "stub_subject"

func (s *Server) routes() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Post("/auth/admin/login", s.login(domain.IdentityAdmin))
	app.Post("/auth/staff/login", s.login(domain.IdentityStaff))
	app.Post("/auth/login", s.login(domain.IdentityCustomer))
	app.Post("/delivery-agent/login", s.login(domain.IdentityDeliveryAgent))
	app.Post("/auth/register", s.register)
	app.Post("/auth/refresh", s.refresh)

	protected := app.Group("", s.requireBearer)
	protected.Get("/shipments", s.listShipments)
	protected.Post("/shipments", s.createShipment)
	protected.Get("/me", s.me)

	return app
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}

func (s *Server) login(userType domain.IdentityType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := c.BodyParser(&req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid payload")
		}
		login := req.Email
		if userType == domain.IdentityAdmin {
			login = req.Username
		}

		acc, ok := s.lookup(userType, login)
		if !ok || comparePassword(acc.PasswordHash, req.Password) != nil {
			return fail(c, http.StatusUnauthorized, "Invalid credentials")
		}

		access, err := s.tokens.Issue(acc.ID, acc.UserType, KindAccess, s.accessTTL)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "token issue failed")
		}

		body := fiber.Map{"success": true}
		switch userType {
		case domain.IdentityAdmin, domain.IdentityStaff:
			// older route family: legacy "token" field
			body["token"] = access
		default:
			body["accessToken"] = access
		}
		if userType != domain.IdentityStaff {
			refresh, err := s.tokens.Issue(acc.ID, acc.UserType, KindRefresh, s.refreshTTL)
			if err != nil {
				return fail(c, http.StatusInternalServerError, "token issue failed")
			}
			body["refreshToken"] = refresh
		}
		if userType == domain.IdentityDeliveryAgent {
			body["agent"] = acc.record()
		} else {
			body["user"] = acc.record()
		}
		return c.JSON(body)
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return fail(c, http.StatusBadRequest, "name, email, password required")
	}
	if _, exists := s.lookup(domain.IdentityCustomer, req.Email); exists {
		return fail(c, http.StatusConflict, "Email already registered")
	}

	acc, err := s.AddAccount(domain.IdentityCustomer, req.Email, req.Password, req.Name)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "registration failed")
	}
	access, err := s.tokens.Issue(acc.ID, acc.UserType, KindAccess, s.accessTTL)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "token issue failed")
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "token": access, "user": acc.record()})
}

func (s *Server) refresh(c *fiber.Ctx) error {
	s.refreshCalls.Add(1)
	if s.failRefresh.Load() {
		return fail(c, http.StatusUnauthorized, "Refresh token revoked")
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid payload")
	}
	claims, err := s.tokens.Parse(req.RefreshToken, KindRefresh)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid refresh token")
	}
	acc, ok := s.byID(claims.Subject)
	if !ok {
		return fail(c, http.StatusUnauthorized, "Account not found")
	}
	access, err := s.tokens.Issue(acc.ID, acc.UserType, KindAccess, s.accessTTL)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "token issue failed")
	}
	return c.JSON(fiber.Map{"success": true, "accessToken": access, "user": acc.record()})
}

func (s *Server) requireBearer(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return fail(c, http.StatusUnauthorized, "missing authorization header")
	}
	claims, err := s.tokens.Parse(parts[1], KindAccess)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid token")
	}
	c.Locals(subjectKey, claims)
	return c.Next()
}

func (s *Server) listShipments(c *fiber.Ctx) error {
	s.protectedHits.Add(1)
	return c.JSON(fiber.Map{"success": true, "shipments": []fiber.Map{{"trackingId": "CR-1001", "status": "IN_TRANSIT"}}})
}

func (s *Server) createShipment(c *fiber.Ctx) error {
	s.protectedHits.Add(1)
	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid payload")
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "shipment": body})
}

func (s *Server) me(c *fiber.Ctx) error {
	s.protectedHits.Add(1)
	claims, _ := c.Locals(subjectKey).(*Claims)
	acc, ok := s.byID(claims.Subject)
	if !ok {
		return fail(c, http.StatusNotFound, "not found")
	}
	return c.JSON(fiber.Map{"success": true, "user": acc.record()})
}
