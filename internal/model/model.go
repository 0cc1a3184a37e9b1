// Package model contains domain models/data structures.
// Keep it minimal; no business logic here.
package model

// User is whoever the identity middleware recognized.
type User struct {
	Email string `json:"email"`
}

// ID identifies the user in audit entries.
func (u *User) ID() string { return u.Email }
