// Package peto holds the request context passed around to actions, event
// handlers and helpers, in place of global variables.
//
// Userless serves operations nobody needs to be logged in for; Peto adds
// the current user, which is never empty. Applications instantiate them
// with their concrete repository and user types:
//
//	type UserlessPeto = peto.Userless[*repository.Repo]
//	type Peto = peto.Peto[*repository.Repo, *User]
package peto

import (
	"fmt"
	"time"

	"kerno/internal/kerno"
	"kerno/internal/state"
)

// Userless is the context of an operation not done by a logged user.
type Userless[R any] struct {
	Kerno *kerno.Kerno   // the global application object
	Repo  R              // data access for this request
	Raw   map[string]any // operation-specific data
	When  time.Time

	rezulto *state.Rezulto
}

func NewUserless[R any](k *kerno.Kerno, repo R, raw map[string]any) *Userless[R] {
	if raw == nil {
		raw = map[string]any{}
	}
	return &Userless[R]{Kerno: k, Repo: repo, Raw: raw, When: time.Now().UTC()}
}

// Core returns the Kerno.
func (u *Userless[R]) Core() *kerno.Kerno { return u.Kerno }

// Payload returns the operation-specific data.
func (u *Userless[R]) Payload() map[string]any { return u.Raw }

// StartedAt is when the request context was created.
func (u *Userless[R]) StartedAt() time.Time { return u.When }

// Rezulto returns the success envelope that the steps of an operation fill.
func (u *Userless[R]) Rezulto() *state.Rezulto {
	if u.rezulto == nil {
		u.rezulto = state.NewRezulto()
	}
	return u.rezulto
}

// UserID is empty: nobody is logged in.
func (u *Userless[R]) UserID() string { return "" }

// Identifier is implemented by users that know their id.
type Identifier interface {
	ID() string
}

// Peto is the context of an operation done by a logged user.
type Peto[R, U any] struct {
	Userless[R]
	User U
}

func New[R, U any](k *kerno.Kerno, repo R, user U, raw map[string]any) *Peto[R, U] {
	return FromUserless(NewUserless(k, repo, raw), user)
}

// FromUserless adds user to a userless context. Both share the envelope.
func FromUserless[R, U any](up *Userless[R], user U) *Peto[R, U] {
	up.Rezulto()
	return &Peto[R, U]{Userless: *up, User: user}
}

// UserID identifies the user for audit purposes.
func (p *Peto[R, U]) UserID() string {
	if id, ok := any(p.User).(Identifier); ok {
		return id.ID()
	}
	return fmt.Sprint(p.User)
}
