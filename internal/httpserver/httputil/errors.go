package httputil

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// WriteError writes the {"error": msg} envelope shared by every analytics route.
func WriteError(c *fiber.Ctx, status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
		if msg == "" {
			msg = "unknown error"
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

// ErrorHandler renders errors escaping handlers (unknown routes, panics
// recovered by middleware) in the same envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	return WriteError(c, status, err.Error())
}
