package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/courier-portal/internal/auth"
)

// PagesHandler answers navigations into the SPA's view sections. The SPA
// bundle itself is served elsewhere; these routes are where the guard
// decides whether a section may render.
type PagesHandler struct{}

// NewPagesHandler constructs handler.
func NewPagesHandler() *PagesHandler {
	return &PagesHandler{}
}

// Login renders the public login entry of section.
func (h *PagesHandler) Login(section string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": fiber.Map{
			"view":    "login",
			"section": section,
			"from":    c.Query("from"),
		}})
	}
}

// Section renders a protected view. Only reached once the guard authorized it.
func (h *PagesHandler) Section(section string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := auth.MustManager(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": fiber.Map{
			"view":    "section",
			"section": section,
			"path":    c.Path(),
			"user":    m.User(),
		}})
	}
}
