package state

import (
	"fmt"
	"log/slog"
	"reflect"

	"kerno/internal/todict"
)

// Returnable is the common part of Rezulto and MalbonaRezulto, the values
// actions hand back to controllers:
//
//   - Messages are grave UI messages.
//   - Toasts disappear automatically after a while.
//   - Commands ask the UI to do something, e.g. add an entity to its models.
//   - Debug holds information never displayed to the end user.
//   - Redirect is a URL or screen to go to.
type Returnable struct {
	Level     string         `json:"level"`
	StatusInt int            `json:"status_int"`
	Messages  []UIMessage    `json:"messages"`
	Toasts    []UIMessage    `json:"toasts"`
	Commands  []UICommand    `json:"commands"`
	Debug     map[string]any `json:"debug"`
	Redirect  string         `json:"redirect"`
}

// Envelope is implemented by every type embedding Returnable.
type Envelope interface {
	Envelope() *Returnable
}

func (r *Returnable) Envelope() *Returnable { return r }

func newReturnable(level string, status int) Returnable {
	return Returnable{
		Level:     level,
		StatusInt: status,
		Messages:  []UIMessage{},
		Toasts:    []UIMessage{},
		Commands:  []UICommand{},
		Debug:     map[string]any{},
	}
}

// AddMessage appends a grave message; its level defaults to the envelope's.
func (r *Returnable) AddMessage(opts ...MessageOption) (UIMessage, error) {
	m, err := r.message(opts)
	if err != nil {
		return m, err
	}
	r.Messages = append(r.Messages, m)
	return m, nil
}

// AddToast appends a transient message; its level defaults to the envelope's.
func (r *Returnable) AddToast(opts ...MessageOption) (UIMessage, error) {
	m, err := r.message(opts)
	if err != nil {
		return m, err
	}
	r.Toasts = append(r.Toasts, m)
	return m, nil
}

func (r *Returnable) message(opts []MessageOption) (UIMessage, error) {
	return NewUIMessage(append([]MessageOption{Level(r.Level)}, opts...)...)
}

// AddCommand appends a command for the UI to perform.
func (r *Returnable) AddCommand(name string, payload any) UICommand {
	cmd := UICommand{Name: name, Payload: payload}
	r.Commands = append(r.Commands, cmd)
	return cmd
}

// SetDebug records one debug entry.
func (r *Returnable) SetDebug(key string, val any) {
	if r.Debug == nil {
		r.Debug = map[string]any{}
	}
	r.Debug[key] = val
}

// Rezulto is the well-organized response of an action that succeeded.
// Failing actions return a *MalbonaRezulto as their error instead.
type Rezulto struct {
	Returnable
}

// NewRezulto returns a success envelope: level "success", status 200.
func NewRezulto(commands ...UICommand) *Rezulto {
	r := &Rezulto{Returnable: newReturnable("success", 200)}
	r.Commands = append(r.Commands, commands...)
	return r
}

func (r *Rezulto) String() string {
	return fmt.Sprintf("<Rezulto status: %d>", r.StatusInt)
}

// MalbonaRezulto is the failure envelope. It is an error, so actions return
// it and the web layer renders it with its status code.
type MalbonaRezulto struct {
	Returnable
	Invalid map[string]any `json:"invalid"`
}

// NewMalbona returns a failure envelope with the given status (400 when
// zero). When any of title, plain or html is given a toast is added; its
// level defaults to "danger". Invalid toast options are a bug in the caller:
// they are logged and recorded as "toast_error" in the debug map.
func NewMalbona(status int, opts ...MessageOption) *MalbonaRezulto {
	if status == 0 {
		status = 400
	}
	m := &MalbonaRezulto{Returnable: newReturnable("danger", status), Invalid: map[string]any{}}
	probe := UIMessage{}
	for _, fn := range opts {
		fn(&probe)
	}
	if probe.Title != "" || probe.Plain != "" || probe.HTML != "" {
		if _, err := m.AddToast(opts...); err != nil {
			slog.Error("invalid toast on a failure envelope",
				"status", status, "title", probe.Title, "error", err)
			m.SetDebug("toast_error", err.Error())
		}
	}
	return m
}

func (m *MalbonaRezulto) Error() string {
	if len(m.Toasts) > 0 {
		t := m.Toasts[0]
		if t.Plain != "" {
			return fmt.Sprintf("%s: %s", t.Title, t.Plain)
		}
		return t.Title
	}
	return m.String()
}

func (m *MalbonaRezulto) String() string {
	return fmt.Sprintf("<MalbonaRezulto status: %d>", m.StatusInt)
}

// Problem is a failure raised below the action layer: a status code, a title
// and message fit for end users, and debug detail that is not.
type Problem struct {
	StatusInt  int
	ErrorTitle string
	ErrorMsg   string
	ErrorDebug string
}

func (p *Problem) Error() string {
	return fmt.Sprintf("%d %s: %s", p.StatusInt, p.ErrorTitle, p.ErrorMsg)
}

// Map is the dictionary form of the problem.
func (p *Problem) Map() map[string]any {
	return map[string]any{
		"status_int":  p.StatusInt,
		"error_title": p.ErrorTitle,
		"error_msg":   p.ErrorMsg,
		"error_debug": p.ErrorDebug,
	}
}

// ToMalbona converts the problem into a failure envelope.
func (p *Problem) ToMalbona() *MalbonaRezulto {
	title := p.ErrorTitle
	if title == "" {
		title = "Server error"
	}
	opts := []MessageOption{Title(title)}
	if p.ErrorMsg != "" {
		opts = append(opts, Plain(p.ErrorMsg))
	} else {
		opts = append(opts, Plain(title))
	}
	m := NewMalbona(p.StatusInt, opts...)
	m.Invalid = p.Map()
	if p.ErrorDebug != "" {
		m.SetDebug("error_debug", p.ErrorDebug)
	}
	return m
}

func returnableToDict(obj any, _ string, o todict.Options) todict.Dict {
	r := obj.(Envelope).Envelope()
	keys := o.Keys
	if len(keys) == 0 {
		keys = []string{"level", "status_int", "debug", "redirect"}
	}
	d := todict.ReuseDict(r, todict.Options{Keys: keys, ForJSON: o.ForJSON})
	msgs := make([]todict.Dict, 0, len(r.Messages))
	for _, m := range r.Messages {
		msgs = append(msgs, todict.ReuseDict(m, todict.NewOptions()))
	}
	toasts := make([]todict.Dict, 0, len(r.Toasts))
	for _, m := range r.Toasts {
		toasts = append(toasts, todict.ReuseDict(m, todict.NewOptions()))
	}
	cmds := make([]todict.Dict, 0, len(r.Commands))
	for _, c := range r.Commands {
		cmds = append(cmds, todict.ToDict(c, ""))
	}
	d["messages"] = msgs
	d["toasts"] = toasts
	d["commands"] = cmds
	return d
}

func init() {
	todict.RegisterFor(todict.Default, "", func(c UICommand, _ string, _ todict.Options) todict.Dict {
		return todict.Dict{"name": c.Name, "payload": c.Payload}
	})
	todict.Register(reflect.TypeFor[Envelope](), "", returnableToDict)
	todict.RegisterFor(todict.Default, "", func(m *MalbonaRezulto, flavor string, o todict.Options) todict.Dict {
		d := returnableToDict(m, flavor, o)
		d["invalid"] = m.Invalid
		return d
	})
}
