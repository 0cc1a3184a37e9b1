package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kerno/internal/health"
	"kerno/internal/http/web"
	"kerno/internal/model"
	"kerno/internal/state"
)

// HealthCheck pings the database and Redis now.
// @Summary Check the backing services
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /health [get]
func HealthCheck(checker *health.Checker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		st := checker.Check(ctx)
		if !st.Healthy {
			m := state.NewMalbona(fiber.StatusServiceUnavailable,
				state.Title("Service unavailable"),
				state.Plain("A dependency is unavailable."))
			m.SetDebug("checks", st.Checks)
			return m
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy", "checks": st.Checks})
	}
}

// LivenessProbe answers 200 while the process runs.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Metrics exposes g in the Prometheus text format.
func Metrics(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// Flash pops the flash messages of the session into an envelope.
// @Summary Pop the flash messages of the session
// @Success 200 {object} map[string]any
// @Router /flash [get]
func Flash() fiber.Handler {
	return web.View(func(c *fiber.Ctx) (*state.Rezulto, error) {
		msgs, err := web.FlashMessages(c)
		if err != nil && !errors.Is(err, web.ErrNoSessions) {
			return nil, err
		}
		rez := state.NewRezulto()
		rez.Messages = append(rez.Messages, msgs...)
		return rez, nil
	})
}

// Identify trusts the user email a reverse proxy puts in header.
func Identify(header string) func(c *fiber.Ctx) (any, error) {
	return func(c *fiber.Ctx) (any, error) {
		email := strings.TrimSpace(c.Get(header))
		if email == "" {
			return nil, nil
		}
		return &model.User{Email: email}, nil
	}
}
