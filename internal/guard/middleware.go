package guard

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/courier-portal/internal/domain"
)

// StateResolver yields the session state of the visitor behind c.
type StateResolver func(c *fiber.Ctx) (domain.State, error)

// Protect gates the routes behind it. With no roles any authenticated
// visitor passes.
func Protect(resolve StateResolver, roles ...domain.IdentityType) fiber.Handler {
	allowed := append([]domain.IdentityType(nil), roles...)

	return func(c *fiber.Ctx) error {
		state, err := resolve(c)
		if err != nil {
			return err
		}

		d := Decide(Input{
			Loading:      state.Loading,
			User:         state.User,
			AllowedRoles: allowed,
			Path:         c.Path(),
		})
		switch d.Outcome {
		case Checking:
			return c.Status(http.StatusAccepted).JSON(fiber.Map{"status": d.Outcome.String()})
		case Unauthenticated, WrongRole:
			return c.Redirect(d.RedirectTo, http.StatusFound)
		}
		return c.Next()
	}
}
