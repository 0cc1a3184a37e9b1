package state

import (
	"errors"
	"fmt"
	"slices"
)

// Levels are the known UI message levels, from most to least severe.
var Levels = []string{"danger", "warning", "info", "success"}

var (
	ErrMessageBody  = errors.New("exactly one of plain or html must be set")
	ErrMessageLevel = errors.New("unknown message level")
)

// UIMessage represents a message to be displayed to the user in the UI.
type UIMessage struct {
	Level string `json:"level"`
	Title string `json:"title"`
	Plain string `json:"plain"`
	HTML  string `json:"html"`
}

// MessageOption sets one field of a UIMessage.
type MessageOption func(*UIMessage)

func Level(level string) MessageOption { return func(m *UIMessage) { m.Level = level } }
func Title(title string) MessageOption { return func(m *UIMessage) { m.Title = title } }
func Plain(plain string) MessageOption { return func(m *UIMessage) { m.Plain = plain } }
func HTML(html string) MessageOption { return func(m *UIMessage) { m.HTML = html } }

// NewUIMessage builds a validated message. The level defaults to "danger";
// "error" is accepted as an alias of "danger".
func NewUIMessage(opts ...MessageOption) (UIMessage, error) {
	m := UIMessage{Level: "danger"}
	for _, fn := range opts {
		fn(&m)
	}
	return m, m.normalize()
}

func (m *UIMessage) normalize() error {
	if (m.Plain == "") == (m.HTML == "") {
		return ErrMessageBody
	}
	if m.Level == "error" {
		m.Level = "danger"
	}
	if !slices.Contains(Levels, m.Level) {
		return fmt.Errorf("%w: %q, possible levels are %v", ErrMessageLevel, m.Level, Levels)
	}
	return nil
}

func (m UIMessage) String() string {
	return fmt.Sprintf("<UIMessage %q>", m.Title)
}

// UICommand tells the UI to do something: Name is the command to perform and
// Payload is the data to run it with.
type UICommand struct {
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

func (c UICommand) String() string {
	return fmt.Sprintf("<UICommand %q>", c.Name)
}
