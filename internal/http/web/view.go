package web

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"kerno/internal/state"
	"kerno/internal/todict"
)

// ViewFunc handles a request by returning an envelope. Failures are
// returned as errors, usually a *state.MalbonaRezulto.
type ViewFunc func(c *fiber.Ctx) (*state.Rezulto, error)

// View adapts fn to Fiber. The status of the response is the status of the
// envelope, whose dictionary form is the JSON body. Problems become
// failure envelopes; ErrorHandler renders every error.
func View(fn ViewFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rezulto, err := fn(c)
		if err != nil {
			var p *state.Problem
			if errors.As(err, &p) {
				return p.ToMalbona()
			}
			return err
		}
		if rezulto == nil {
			return fmt.Errorf("view for %s %s returned no rezulto", c.Method(), c.Route().Path)
		}
		return c.Status(rezulto.StatusInt).JSON(todict.ToDict(rezulto, ""))
	}
}
