package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"kerno/internal/state"
)

// invalidParam is the failure of requests with a malformed parameter.
func invalidParam(title, plain string) *state.MalbonaRezulto {
	return state.NewMalbona(fiber.StatusBadRequest, state.Title(title), state.Plain(plain))
}

// documentID returns the :id parameter, which must be a UUID.
func documentID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", invalidParam("Invalid id", "The document id must be a UUID.")
	}
	return id, nil
}

// queryInt reads an integer query parameter, def when absent.
func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam("Invalid "+key, "The parameter "+key+" must be an integer.")
	}
	return n, nil
}
