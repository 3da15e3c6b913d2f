package http

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/courier-portal/internal/observability"
	apperrors "github.com/spec-kit/courier-portal/pkg/util"
)

// RegisterMiddlewares attaches the global chain. Order matters: the request
// logger sits outside the error handler so it sees the rendered status, and
// recover sits inside it so panics render like any other error.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, r any) {
			logger.Error("panic recovered",
				zap.String("path", c.Path()),
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"))
		},
	}))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		domainErr := toDomainError(err)
		metrics.RecordError(routeLabel(c), c.Method(), domainErr.Code)
		if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
				zap.Error(domainErr))
		}
		return renderError(c, domainErr)
	}
}

func renderError(c *fiber.Ctx, e *apperrors.DomainError) error {
	body := fiber.Map{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return c.Status(e.HTTPStatus).JSON(fiber.Map{"error": body})
}

// routeLabel keeps metric cardinality bounded: the matched route template
// rather than the raw path.
func routeLabel(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return "unmatched"
}

// toDomainError also understands fiber's own errors, such as the 404 for an
// unmatched route.
func toDomainError(err error) *apperrors.DomainError {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return apperrors.NewDomainError(codeForStatus(fe.Code), fe.Message, fe.Code, nil)
	}
	return apperrors.ToDomainError(err)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	}
	return "HTTP_" + strconv.Itoa(status)
}
