// Package event is a tiny event hub.
//
// A library declares an event type holding the event data, user code
// subscribes handlers to that type, and the library fires it with
// Broadcast. Matching is on the exact dynamic type of the event: a handler
// for T does not see *T, nor types embedding T.
package event

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Handler is the untyped form of a subscribed function.
type Handler func(ctx context.Context, event any) error

type subscription struct {
	name string
	fn   Handler
}

// Hub keeps the subscribers of each event type. It is safe for concurrent use.
type Hub struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]subscription
}

func NewHub() *Hub {
	return &Hub{handlers: map[reflect.Type][]subscription{}}
}

// Subscribe adds fn as the handler called name for events of type E.
// Handler names are unique per event type, so they can be unsubscribed.
func Subscribe[E any](h *Hub, name string, fn func(ctx context.Context, event E) error) error {
	return h.subscribe(reflect.TypeFor[E](), name, func(ctx context.Context, event any) error {
		return fn(ctx, event.(E))
	})
}

func (h *Hub) subscribe(t reflect.Type, name string, fn Handler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.handlers[t] {
		if s.name == name {
			return fmt.Errorf("handler %q is already subscribed to %s", name, t)
		}
	}
	h.handlers[t] = append(h.handlers[t], subscription{name: name, fn: fn})
	return nil
}

// Unsubscribe removes the handler called name for events of type E and
// reports whether it was subscribed.
func Unsubscribe[E any](h *Hub, name string) bool {
	t := reflect.TypeFor[E]()
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.handlers[t]
	for i, s := range subs {
		if s.name == name {
			h.handlers[t] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// Broadcast calls the handlers of the type of event in subscription order.
// The first handler error stops the broadcast and is returned.
func (h *Hub) Broadcast(ctx context.Context, event any) error {
	if event == nil {
		return nil
	}
	h.mu.RLock()
	subs := h.handlers[reflect.TypeOf(event)]
	h.mu.RUnlock()

	for _, s := range subs {
		if err := s.fn(ctx, event); err != nil {
			return fmt.Errorf("event handler %q: %w", s.name, err)
		}
	}
	return nil
}

// Handlers returns the names of the handlers subscribed to events of type E.
func Handlers[E any](h *Hub) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := h.handlers[reflect.TypeFor[E]()]
	names := make([]string, 0, len(subs))
	for _, s := range subs {
		names = append(names, s.name)
	}
	return names
}
