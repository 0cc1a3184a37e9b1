// Package kerno is the core of an application: the settings, the utilities
// registered at startup and the event hub, shared by every request.
//
// The Kerno is built at startup by an Eko, which reads the settings,
// registers utilities and includes extensions. Afterwards the utilities
// cannot change.
package kerno

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"kerno/internal/event"
)

// Utilities is a read-only view of the utilities registered at startup.
type Utilities struct {
	m map[string]any
}

// Get returns the utility registered as name.
func (u Utilities) Get(name string) (any, bool) {
	obj, ok := u.m[name]
	return obj, ok
}

// Names returns the registered names, sorted.
func (u Utilities) Names() []string {
	names := make([]string, 0, len(u.m))
	for name := range u.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RepositoryFactory builds the repository serving one request.
type RepositoryFactory func(ctx context.Context, k *Kerno) (any, error)

// Kerno is the core of an application, integrating decoupled resources.
type Kerno struct {
	Settings  Settings
	Utilities Utilities
	Events    *event.Hub

	newRepo RepositoryFactory
	log     *slog.Logger
}

func newKerno(settings Settings) *Kerno {
	if settings == nil {
		settings = Settings{}
	}
	return &Kerno{
		Settings:  settings,
		Utilities: Utilities{m: map[string]any{}},
		Events:    event.NewHub(),
		log:       slog.With("component", "kerno"),
	}
}

// NewRepo instantiates the repository for one request.
func (k *Kerno) NewRepo(ctx context.Context) (any, error) {
	if k.newRepo == nil {
		return nil, &ConfigurationError{Msg: "no repository factory has been set"}
	}
	return k.newRepo(ctx, k)
}

// Utility returns the utility registered as name, typed.
func Utility[T any](k *Kerno, name string) (T, error) {
	var zero T
	obj, ok := k.Utilities.Get(name)
	if !ok {
		return zero, fmt.Errorf("utility %q has not been registered", name)
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("utility %q is a %T, not a %s", name, obj, reflect.TypeFor[T]())
	}
	return typed, nil
}

// Repo instantiates the request repository and asserts its type.
func Repo[R any](ctx context.Context, k *Kerno) (R, error) {
	var zero R
	obj, err := k.NewRepo(ctx)
	if err != nil {
		return zero, err
	}
	repo, ok := obj.(R)
	if !ok {
		return zero, fmt.Errorf("repository factory returned %T, not %s", obj, reflect.TypeFor[R]())
	}
	return repo, nil
}
