package web

import (
	"errors"
	"fmt"
	"html/template"
	"sync"

	"kerno/internal/state"
)

// ErrUnknownFlavor is returned by MsgToHTML for unregistered flavors.
var ErrUnknownFlavor = errors.New("no HTML flavor registered under this name")

// MsgRenderer renders a UI message as HTML. closable adds a button dismissing it.
type MsgRenderer func(msg state.UIMessage, closable bool) template.HTML

var (
	flavorsMu sync.RWMutex
	flavors   = map[string]MsgRenderer{"bootstrap3": bootstrap3}
)

// RegisterMsgFlavor adds or replaces the renderer for flavor.
func RegisterMsgFlavor(flavor string, fn MsgRenderer) {
	flavorsMu.Lock()
	defer flavorsMu.Unlock()
	flavors[flavor] = fn
}

// MsgToHTML renders msg with the renderer registered for flavor. Templates
// use it to show flash messages.
func MsgToHTML(flavor string, msg state.UIMessage, closable bool) (template.HTML, error) {
	flavorsMu.RLock()
	fn, ok := flavors[flavor]
	flavorsMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFlavor, flavor)
	}
	return fn(msg, closable), nil
}

const bootstrap3Close = `<button type="button" class="close" data-dismiss="alert" ` +
	`aria-label="Close"><span aria-hidden="true">×</span></button>`

// bootstrap3 renders msg as a Bootstrap 3 alert. HTML bodies are trusted;
// plain bodies are escaped.
func bootstrap3(msg state.UIMessage, closable bool) template.HTML {
	cls := ""
	if msg.HTML != "" {
		cls = " alert-block"
	}
	button := ""
	if closable {
		button = bootstrap3Close
	}
	body := msg.HTML
	if body == "" {
		body = template.HTMLEscapeString(msg.Plain)
	}
	return template.HTML(fmt.Sprintf(`<div class="alert alert-%s%s fade in">%s%s</div>`+"\n",
		template.HTMLEscapeString(msg.Level), cls, button, body))
}
