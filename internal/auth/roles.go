package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/courier-portal/internal/domain"
	apperrors "github.com/spec-kit/courier-portal/pkg/util"
)

// SessionState resolves the session state for guard.Protect.
func SessionState(c *fiber.Ctx) (domain.State, error) {
	manager, err := MustManager(c)
	if err != nil {
		return domain.State{}, err
	}
	return manager.State(), nil
}

// RequireAuthenticated rejects anonymous callers of JSON endpoints.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		manager, err := MustManager(c)
		if err != nil {
			return err
		}
		if !manager.IsAuthenticated() {
			return apperrors.NewUnauthorized("login required")
		}
		return c.Next()
	}
}
