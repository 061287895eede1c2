package admin

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/app"
)

// Register wires up the protected /admin/analytics routes.
func Register(app *fiber.App, container *app.Container) {
	protected := app.Group("/admin", adminAuthMiddleware(container), adminRateLimitMiddleware(container))
	registerAdminAnalyticsRoutes(protected, container)
}
