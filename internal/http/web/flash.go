package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"kerno/internal/session"
	"kerno/internal/state"
)

const (
	// SessionCookie names the cookie holding the session id.
	SessionCookie = "kerno_session"

	sessionLocalKey = "kerno_session"
	flashLocalKey   = "kerno_flash"
)

// ErrNoSessions is returned by the flash helpers when Sessions did not run.
var ErrNoSessions = errors.New("no session store, use web.Sessions")

// Sessions gives every browser a session id cookie and makes store
// available to AddFlash and FlashMessages.
func Sessions(store session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(SessionCookie)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		c.Locals(sessionLocalKey, id)
		c.Locals(flashLocalKey, store)
		return c.Next()
	}
}

func sessionFrom(c *fiber.Ctx) (session.Store, string, error) {
	store, ok := c.Locals(flashLocalKey).(session.Store)
	if !ok {
		return nil, "", ErrNoSessions
	}
	id, _ := c.Locals(sessionLocalKey).(string)
	return store, id, nil
}

// AddFlash stores a message to show on a later request of the same session.
func AddFlash(c *fiber.Ctx, allowDuplicate bool, opts ...state.MessageOption) (state.UIMessage, error) {
	msg, err := state.NewUIMessage(opts...)
	if err != nil {
		return msg, err
	}
	store, id, err := sessionFrom(c)
	if err != nil {
		return msg, err
	}
	return msg, store.Push(c.UserContext(), id, msg, allowDuplicate)
}

// FlashMessages returns the stored messages of the session and forgets them.
func FlashMessages(c *fiber.Ctx) ([]state.UIMessage, error) {
	store, id, err := sessionFrom(c)
	if err != nil {
		return nil, err
	}
	return store.Pop(c.UserContext(), id)
}
