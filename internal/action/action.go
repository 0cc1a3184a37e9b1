// Package action holds the business layer building blocks: actions, the
// operations that run them in order and a registry of named actions.
//
// An action receives the request context (a peto) and either fills the
// envelope the context accumulates or fails. Failures meant for the end
// user are *state.MalbonaRezulto errors.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"kerno/internal/state"
)

// Context is what operations need from a request context.
type Context interface {
	Rezulto() *state.Rezulto
}

// Action is one step of a business operation.
type Action[P any] interface {
	Run(ctx context.Context, p P) error
}

// ActionFunc adapts a function to Action.
type ActionFunc[P any] func(ctx context.Context, p P) error

func (f ActionFunc[P]) Run(ctx context.Context, p P) error { return f(ctx, p) }

type named[P any] struct {
	name string
	Action[P]
}

func (n named[P]) Name() string { return n.name }

// Named gives fn a name, used in traces, metrics and logs.
func Named[P any](name string, fn func(ctx context.Context, p P) error) Action[P] {
	return named[P]{name: name, Action: ActionFunc[P](fn)}
}

func nameOf(a any) string {
	if n, ok := a.(interface{ Name() string }); ok {
		return n.Name()
	}
	name, _, _ := strings.Cut(strings.TrimPrefix(fmt.Sprintf("%T", a), "*"), "[")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

var (
	ErrActionExists  = errors.New("an action with this name is already registered")
	ErrActionUnknown = errors.New("no action registered with this name")
)

// Registry stores the business operations of an application by name.
type Registry[P Context] struct {
	mu      sync.RWMutex
	actions map[string]Action[P]
}

func NewRegistry[P Context]() *Registry[P] {
	return &Registry[P]{actions: map[string]Action[P]{}}
}

// Add registers a under name at startup for later use.
func (r *Registry[P]) Add(name string, a Action[P]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[name]; ok {
		return fmt.Errorf("%w: %s", ErrActionExists, name)
	}
	r.actions[name] = a
	return nil
}

// Remove deletes the action called name.
func (r *Registry[P]) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[name]; !ok {
		return fmt.Errorf("%w: %s", ErrActionUnknown, name)
	}
	delete(r.actions, name)
	return nil
}

// Run executes the action stored under name and returns the envelope of p.
func (r *Registry[P]) Run(ctx context.Context, name string, p P) (*state.Rezulto, error) {
	r.mu.RLock()
	a, ok := r.actions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionUnknown, name)
	}
	if err := a.Run(ctx, p); err != nil {
		return nil, err
	}
	return p.Rezulto(), nil
}
