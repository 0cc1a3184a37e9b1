// Package web binds kerno to Fiber: request contexts built from a Fiber
// request, views returning envelopes, the global error handler, flash
// messages and download helpers.
package web

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/gofiber/fiber/v2"

	"kerno/internal/kerno"
)

const (
	kernoLocalKey = "kerno"
	repoLocalKey  = "kerno_repo"
)

// ErrNotBound is returned when a handler needs the kerno but Bind did not run.
var ErrNotBound = errors.New("kerno is not bound to this app, use web.Bind")

// closer is implemented by repositories owning a session.
type closer interface {
	Close(err error) error
}

// Bind makes k available to the handlers that follow. The repository is
// built the first time a handler asks for it; when the request is done it is
// committed if the handler succeeded and rolled back otherwise.
func Bind(k *kerno.Kerno) fiber.Handler {
	log := slog.With("component", "web")
	return func(c *fiber.Ctx) error {
		c.Locals(kernoLocalKey, k)
		err := c.Next()

		repo, ok := c.Locals(repoLocalKey).(closer)
		if !ok {
			return err
		}
		if closeErr := repo.Close(err); closeErr != nil {
			log.Error("closing the repository", "path", c.Path(), "error", closeErr)
			if err == nil {
				return fmt.Errorf("closing the repository: %w", closeErr)
			}
		}
		return err
	}
}

// Kerno returns the kerno bound to the app.
func Kerno(c *fiber.Ctx) (*kerno.Kerno, error) {
	k, ok := c.Locals(kernoLocalKey).(*kerno.Kerno)
	if !ok {
		return nil, ErrNotBound
	}
	return k, nil
}

// Repo returns the repository of the request, building it once.
func Repo[R any](c *fiber.Ctx) (R, error) {
	var zero R
	if obj := c.Locals(repoLocalKey); obj != nil {
		repo, ok := obj.(R)
		if !ok {
			return zero, fmt.Errorf("request repository is a %T, not %s", obj, reflect.TypeFor[R]())
		}
		return repo, nil
	}
	k, err := Kerno(c)
	if err != nil {
		return zero, err
	}
	repo, err := kerno.Repo[R](c.UserContext(), k)
	if err != nil {
		return zero, err
	}
	c.Locals(repoLocalKey, repo)
	return repo, nil
}
