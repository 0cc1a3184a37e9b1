package web

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"kerno/internal/peto"
	"kerno/internal/state"
)

// IdentityLocalKey holds the authenticated user, set by Authenticate.
const IdentityLocalKey = "identity"

// Authenticate stores what identify returns as the identity of the request.
// A nil identity leaves the request anonymous.
func Authenticate(identify func(c *fiber.Ctx) (any, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := identify(c)
		if err != nil {
			return err
		}
		if user != nil {
			c.Locals(IdentityLocalKey, user)
		}
		return c.Next()
	}
}

// UserlessFromFiber builds the context of an anonymous operation. With
// withJSON the request body is decoded into Raw; it must be a JSON object.
func UserlessFromFiber[R any](c *fiber.Ctx, withJSON bool) (*peto.Userless[R], error) {
	k, err := Kerno(c)
	if err != nil {
		return nil, err
	}
	repo, err := Repo[R](c)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if withJSON {
		if raw, err = JSONBody(c); err != nil {
			return nil, err
		}
	}
	return peto.NewUserless(k, repo, raw), nil
}

// PetoFromFiber builds the context of an operation done by the logged user.
// Without an identity of type U the request fails as not authenticated.
func PetoFromFiber[R, U any](c *fiber.Ctx, withJSON bool) (*peto.Peto[R, U], error) {
	user, ok := c.Locals(IdentityLocalKey).(U)
	if !ok {
		return nil, NotAuthenticated()
	}
	up, err := UserlessFromFiber[R](c, withJSON)
	if err != nil {
		return nil, err
	}
	return peto.FromUserless(up, user), nil
}

// JSONBody decodes the request body, which must be a JSON object.
func JSONBody(c *fiber.Ctx) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(c.Body(), &raw); err != nil || raw == nil {
		m := state.NewMalbona(fiber.StatusBadRequest,
			state.Title("Malformed request!"),
			state.Plain("The server could not decode the request as JSON!"))
		if err != nil {
			m.SetDebug("error_debug", err.Error())
		} else {
			m.SetDebug("error_debug", "the body is not a JSON object")
		}
		return nil, m
	}
	return raw, nil
}
