// Package email builds email messages from templates and delivers them.
//
// A Message knows its envelope, subject and HTML body; the plain text
// version is extracted from the HTML. Its Args are what any backend needs
// to send it: SMTPSender delivers them right away, QueueSender publishes
// them to RabbitMQ for a Worker to deliver later.
package email

import (
	"errors"
	"fmt"

	"kerno/internal/todict"
	"kerno/internal/validation"
)

var (
	ErrInvalidAddress = errors.New("invalid email address")
	ErrNoRecipients   = errors.New("an envelope needs at least one recipient")
)

// Address is an email address, optionally with the person's name.
type Address struct {
	Email string
	Name  string
}

// NewAddress validates email.
func NewAddress(email, name string) (Address, error) {
	if err := validation.Validator().Var(email, "required,email"); err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, email)
	}
	return Address{Email: email, Name: name}, nil
}

// MustAddress is NewAddress for addresses known at compile time.
func MustAddress(email, name string) Address {
	a, err := NewAddress(email, name)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%q <%s>", a.Name, a.Email)
}

func addressStrings(addrs []Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

// Envelope says who a message goes to and comes from.
type Envelope struct {
	Recipients []Address
	CC         []Address
	BCC        []Address
	ReplyTo    *Address
	Sender     *Address
}

// NewEnvelope returns an envelope for recipients, of which there must be one at least.
func NewEnvelope(recipients ...Address) (Envelope, error) {
	if len(recipients) == 0 {
		return Envelope{}, ErrNoRecipients
	}
	return Envelope{Recipients: recipients}, nil
}

// ToDict returns the envelope with the addresses as strings. Unset
// addresses are nil.
func (e Envelope) ToDict() todict.Dict {
	d := todict.Dict{
		"recipients": addressStrings(e.Recipients),
		"cc":         addressStrings(e.CC),
		"bcc":        addressStrings(e.BCC),
		"reply_to":   nil,
		"sender":     nil,
	}
	if e.ReplyTo != nil {
		d["reply_to"] = e.ReplyTo.String()
	}
	if e.Sender != nil {
		d["sender"] = e.Sender.String()
	}
	return d
}
