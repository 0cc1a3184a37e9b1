// Package mandato builds the commands sent to the user interface.
package mandato

import (
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"

	"kerno/internal/jsonright"
	"kerno/internal/state"
)

// Mandato is a command for the user interface carrying Payload, which is
// serialized with jsonright in the context of Peto.
//
// Its name is the UI function handling it. By default it is the type name
// of the payload starting in lowercase: a SetCurrentUser payload is
// handled by setCurrentUser.
type Mandato[P any] struct {
	Payload  any
	Peto     P
	Features []string

	name string
}

func New[P any](payload any, p P, features ...string) *Mandato[P] {
	return &Mandato[P]{Payload: payload, Peto: p, Features: features}
}

// Named overrides the name of the command.
func (m *Mandato[P]) Named(name string) *Mandato[P] {
	m.name = name
	return m
}

func (m *Mandato[P]) Name() string {
	if m.name != "" {
		return m.name
	}
	t := reflect.TypeOf(m.Payload)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return ""
	}
	name := t.Name()
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

func (m *Mandato[P]) String() string {
	return fmt.Sprintf("<Mandato %q>", m.Name())
}

// AsCommand serializes the payload and returns the command.
func (m *Mandato[P]) AsCommand(r *jsonright.Registry[P]) (state.UICommand, error) {
	name := m.Name()
	if name == "" {
		return state.UICommand{}, fmt.Errorf("mandato: cannot name a command for a %T payload", m.Payload)
	}
	payload, err := r.Encode(m.Payload, m.Peto, m.Features...)
	if err != nil {
		return state.UICommand{}, fmt.Errorf("mandato %s: %w", name, err)
	}
	return state.UICommand{Name: name, Payload: payload}, nil
}

// AddTo serializes the command and appends it to env.
func (m *Mandato[P]) AddTo(env state.Envelope, r *jsonright.Registry[P]) error {
	cmd, err := m.AsCommand(r)
	if err != nil {
		return err
	}
	env.Envelope().AddCommand(cmd.Name, cmd.Payload)
	return nil
}
