package middleware

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	kernolog "kerno/internal/log"
)

// Logger logs each HTTP request as one JSON line on stdout.
func Logger() fiber.Handler {
	return LoggerWithWriter(os.Stdout, time.Local)
}

// LoggerWithWriter logs each HTTP request to w, timestamps in loc.
// Fields:
// - request_id (taken from context locals set by RequestID middleware)
// - method
// - path
// - status
// - latency (in milliseconds, as float)
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	log := slog.New(kernolog.NewHandlerIn(w, slog.LevelInfo, loc)).With("component", "http")

	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Render errors now so the logged status is the one sent.
		handleError(c, c.Next())

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		log.Info("request",
			"request_id", rid,
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", float64(time.Since(start).Microseconds())/1000,
		)
		return nil
	}
}

// handleError passes err to the app error handler, which writes the response.
func handleError(c *fiber.Ctx, err error) {
	if err == nil {
		return
	}
	if herr := c.App().ErrorHandler(c, err); herr != nil {
		_ = c.SendStatus(fiber.StatusInternalServerError)
	}
}
