package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ZilatAIOBC/NOMLT-sub002/internal/app"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/httpserver/httputil"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/pricing"
	"github.com/ZilatAIOBC/NOMLT-sub002/internal/services/analytics"
)

type analyticsHandler struct {
	service *analytics.Service
}

func registerAdminAnalyticsRoutes(router fiber.Router, container *app.Container) {
	handler := &analyticsHandler{service: container.Analytics}

	group := router.Group("/analytics")
	group.Get("/dashboard", handler.dashboard)
	group.Get("/summary", handler.summary)
	group.Get("/features", handler.features)
	group.Get("/users/top", handler.topUsers)
	group.Get("/costs/features", handler.featureCosts)
	group.Get("/costs/estimate", handler.estimate)
	group.Get("/trends/monthly", handler.monthlyTrends)
	group.Get("/trends/daily", handler.dailyTrend)
}

func (h *analyticsHandler) dashboard(c *fiber.Ctx) error {
	if h.service == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "analytics service unavailable")
	}
	return c.JSON(h.service.Dashboard(userContext(c)))
}

func (h *analyticsHandler) summary(c *fiber.Ctx) error {
	if h.service == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "analytics service unavailable")
	}
	return c.JSON(h.service.Summary(userContext(c)))
}

func (h *analyticsHandler) features(c *fiber.Ctx) error {
	if h.service == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "analytics service unavailable")
	}
	limit, err := parseIntParam(c.Query("limit"), 0)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid limit")
	}
	view, err := h.service.FeatureUsage(userContext(c), limit)
	if err != nil {
		return writeParamError(c, err)
	}
	return c.JSON(view)
}

func (h *analyticsHandler) topUsers(c *fiber.Ctx) error {
	if h.service == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "analytics service unavailable")
	}
	limit, err := parseIntParam(c.Query("limit"), 0)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid limit")
	}
	view, err := h.service.TopUsers(userContext(c), c.Query("sort"), limit)
	if err != nil {
		return writeParamError(c, err)
	}
	return c.JSON(view)
}

func (h *analyticsHandler) featureCosts(c *fiber.Ctx) error {
	if h.service == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "analytics service unavailable")
	}
	return c.JSON(h.service.FeatureCosts(userContext(c)))
}

func (h *analyticsHandler) monthlyTrends(c *fiber.Ctx) error {
	if h.service == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "analytics service unavailable")
	}
	return c.JSON(h.service.MonthlyTrends(userContext(c)))
}

func (h *analyticsHandler) dailyTrend(c *fiber.Ctx) error {
	if h.service == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "analytics service unavailable")
	}
	days, err := parseIntParam(c.Query("days"), 0)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid days")
	}
	view, err := h.service.DailyTrend(userContext(c), analytics.DailyParams{
		Month: strings.TrimSpace(c.Query("month")),
		Days:  days,
	})
	if err != nil {
		return writeParamError(c, err)
	}
	return c.JSON(view)
}

func (h *analyticsHandler) estimate(c *fiber.Ctx) error {
	if h.service == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "analytics service unavailable")
	}
	raw := strings.TrimSpace(c.Query("credits"))
	if raw == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "credits is required")
	}
	credits, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid credits")
	}
	view, err := h.service.Estimate(credits)
	if err != nil {
		return writeParamError(c, err)
	}
	return c.JSON(view)
}

// parseIntParam returns fallback for an empty value. Negative numbers are
// passed through so the service can reject them with its own message.
func parseIntParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeParamError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, analytics.ErrInvalidLimit),
		errors.Is(err, analytics.ErrInvalidWindow),
		errors.Is(err, analytics.ErrInvalidMonth),
		errors.Is(err, analytics.ErrUnsupportedSortKey),
		errors.Is(err, pricing.ErrInvalidInput):
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}
	return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
}
