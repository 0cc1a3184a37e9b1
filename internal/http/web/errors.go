package web

import (
	"errors"
	"html/template"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"kerno/internal/http/middleware"
	"kerno/internal/state"
	"kerno/internal/todict"
)

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if s, ok := c.Locals(middleware.RequestIDLocalKey).(string); ok {
		return s
	}
	return ""
}

// NotAuthenticated is the failure of requests that need a logged user.
//
// 401 comes with expectations about HTTP Basic Authentication, so the
// status is 418, which is never used otherwise. The envelope carries a
// message and the command "allowLogin" so the UI shows the login form.
func NotAuthenticated() *state.MalbonaRezulto {
	opts := []state.MessageOption{
		state.Title("Not authenticated"),
		state.Plain("The resource requires that you be logged in."),
	}
	m := state.NewMalbona(fiber.StatusTeapot, opts...)
	m.AddCommand("allowLogin", nil)
	_, _ = m.AddMessage(append(opts, state.Level("danger"))...)
	return m
}

// RaiseIfNotAuthenticated returns NotAuthenticated() for anonymous requests.
func RaiseIfNotAuthenticated(c *fiber.Ctx) error {
	if c.Locals(IdentityLocalKey) == nil {
		return NotAuthenticated()
	}
	return nil
}

// RequireIdentity is RaiseIfNotAuthenticated as a middleware.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := RaiseIfNotAuthenticated(c); err != nil {
			return err
		}
		return c.Next()
	}
}

// ToMalbona converts any error into a failure envelope. Envelopes pass
// through, problems and Fiber errors keep their status and anything else
// is a 500 that does not leak internal details.
func ToMalbona(err error) *state.MalbonaRezulto {
	var m *state.MalbonaRezulto
	if errors.As(err, &m) {
		return m
	}
	var p *state.Problem
	if errors.As(err, &p) {
		return p.ToMalbona()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return state.NewMalbona(fe.Code, state.Title(utils.StatusMessage(fe.Code)), state.Plain(fe.Message))
	}
	return state.NewMalbona(fiber.StatusInternalServerError,
		state.Title("Server error"),
		state.Plain("Sorry, something went wrong on our side."))
}

// ErrorHandler returns a Fiber global error handler rendering every error
// as a MalbonaRezulto: JSON, or an HTML page for browsers.
func ErrorHandler() fiber.ErrorHandler {
	log := slog.With("component", "web")
	return func(c *fiber.Ctx, err error) error {
		m := ToMalbona(err)
		if m.StatusInt >= fiber.StatusInternalServerError {
			log.Error("request failed",
				"request_id", requestIDFromCtx(c),
				"method", c.Method(),
				"path", c.Path(),
				"error", err)
		}
		return RenderMalbona(c, m)
	}
}

// RenderMalbona writes m with its status code.
func RenderMalbona(c *fiber.Ctx, m *state.MalbonaRezulto) error {
	c.Status(m.StatusInt)
	if !c.XHR() && c.Accepts(fiber.MIMEApplicationJSON, fiber.MIMETextHTML) == fiber.MIMETextHTML {
		c.Type("html", "utf-8")
		return malbonaPage.Execute(c.Response().BodyWriter(), malbonaPageData(m))
	}
	d := todict.ToDict(m, "")
	d["request_id"] = requestIDFromCtx(c)
	return c.JSON(d)
}

var malbonaPage = template.Must(template.New("malbona").Funcs(template.FuncMap{
	"alert": func(msg state.UIMessage) (template.HTML, error) {
		return MsgToHTML("bootstrap3", msg, false)
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{range .Messages}}{{alert .}}{{end}}
</body>
</html>
`))

type malbonaView struct {
	Title    string
	Messages []state.UIMessage
}

func malbonaPageData(m *state.MalbonaRezulto) malbonaView {
	v := malbonaView{Title: utils.StatusMessage(m.StatusInt)}
	v.Messages = append(v.Messages, m.Messages...)
	v.Messages = append(v.Messages, m.Toasts...)
	if len(v.Messages) > 0 && v.Messages[0].Title != "" {
		v.Title = v.Messages[0].Title
	}
	return v
}
