package http

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/auth"
	"github.com/integrityos/pipeline-hub/internal/domain"
)

const (
	SessionCookie = "integrityos_session"
	userKey       = "user"
)

// NewApp returns a fiber app with JSON errors, panic recovery, CORS and
// request logging installed.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "integrityos-api",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code, msg := fiber.StatusInternalServerError, "internal server error"
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
				if code < fiber.StatusInternalServerError {
					msg = fe.Message
				}
			}
			return c.Status(code).JSON(fiber.Map{"error": msg})
		},
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowHeaders: "Origin, Content-Type, Accept, Authorization"}))
	app.Use(requestLogger)
	return app
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}
	ev := log.Info()
	if status >= fiber.StatusInternalServerError {
		ev = log.Error().Err(err)
	}
	ev.Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Msg("request")
	return err
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownPipeline):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrCloudDisabled):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	msg := err.Error()
	if code == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		msg = "internal server error"
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func token(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	return c.Cookies(SessionCookie)
}

func authenticate(a *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := a.Authenticate(c.UserContext(), token(c))
		if err != nil {
			return fail(c, err)
		}
		c.Locals(userKey, u)
		return c.Next()
	}
}

func requireManager(c *fiber.Ctx) error {
	if err := auth.RequireManager(currentUser(c)); err != nil {
		return fail(c, err)
	}
	return c.Next()
}

func currentUser(c *fiber.Ctx) domain.User {
	u, _ := c.Locals(userKey).(domain.User)
	return u
}
