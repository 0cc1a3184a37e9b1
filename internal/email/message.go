package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"
	ttemplate "text/template"

	"github.com/vanng822/go-premailer/premailer"
	"golang.org/x/net/html"

	"kerno/internal/todict"
)

var (
	ErrNoSubject = errors.New("the message has no subject")
	ErrNoBody    = errors.New("the message has no body")
)

// Renderer renders the named template with data.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// TemplateRenderer renders html/template templates.
type TemplateRenderer struct {
	*template.Template
}

// ParseTemplates parses the template files matched by pattern.
func ParseTemplates(pattern string) (*TemplateRenderer, error) {
	t, err := template.ParseGlob(pattern)
	if err != nil {
		return nil, err
	}
	return &TemplateRenderer{Template: t}, nil
}

func (r *TemplateRenderer) Render(w io.Writer, name string, data any) error {
	return r.ExecuteTemplate(w, name, data)
}

// Message is an email message built from templates. Subject is a
// text/template executed with Data, as is the HTML template named
// Template. The parts are computed once.
type Message struct {
	Envelope Envelope
	Subject  string
	Template string
	Data     map[string]any

	renderer Renderer

	once    sync.Once
	subject string
	html    string
	plain   string
	err     error
}

func NewMessage(r Renderer, env Envelope, subject, templateName string, data map[string]any) *Message {
	return &Message{
		Envelope: env,
		Subject:  subject,
		Template: templateName,
		Data:     data,
		renderer: r,
	}
}

func (m *Message) compute() error {
	m.once.Do(func() {
		if m.subject, m.err = m.formatSubject(); m.err != nil {
			return
		}
		if m.html, m.err = m.renderHTML(); m.err != nil {
			return
		}
		m.plain, m.err = PlainText(m.html)
	})
	return m.err
}

func (m *Message) formatSubject() (string, error) {
	t, err := ttemplate.New("subject").Option("missingkey=error").Parse(m.Subject)
	if err != nil {
		return "", fmt.Errorf("parsing the subject: %w", err)
	}
	var b strings.Builder
	if err := t.Execute(&b, m.Data); err != nil {
		return "", fmt.Errorf("formatting the subject: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

func (m *Message) renderHTML() (string, error) {
	if m.Template == "" || m.renderer == nil {
		return "", nil
	}
	var b bytes.Buffer
	if err := m.renderer.Render(&b, m.Template, m.Data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", m.Template, err)
	}
	return InlineCSS(b.String())
}

// SubjectLine is the subject formatted with Data.
func (m *Message) SubjectLine() (string, error) {
	err := m.compute()
	return m.subject, err
}

// HTML is the rendered template with its CSS inlined.
func (m *Message) HTML() (string, error) {
	err := m.compute()
	return m.html, err
}

// Plain is the text of HTML.
func (m *Message) Plain() (string, error) {
	err := m.compute()
	return m.plain, err
}

// ToDict returns the computed parts of the message. It fails without a
// subject or a body.
func (m *Message) ToDict() (todict.Dict, error) {
	if err := m.compute(); err != nil {
		return nil, err
	}
	if m.subject == "" {
		return nil, ErrNoSubject
	}
	if m.html == "" && m.plain == "" {
		return nil, ErrNoBody
	}
	return todict.Dict{
		"envelope": m.Envelope.ToDict(),
		"subject":  m.subject,
		"html":     m.html,
		"plain":    m.plain,
	}, nil
}

// Args returns what a backend needs to send the message. defaultSender is
// used when the envelope has no sender.
func (m *Message) Args(defaultSender string) (Args, error) {
	if _, err := m.ToDict(); err != nil {
		return Args{}, err
	}
	if len(m.Envelope.Recipients) == 0 {
		return Args{}, ErrNoRecipients
	}
	a := Args{
		Subject:    m.subject,
		HTML:       m.html,
		Body:       m.plain,
		Recipients: addressStrings(m.Envelope.Recipients),
		Sender:     defaultSender,
		CC:         addressStrings(m.Envelope.CC),
		BCC:        addressStrings(m.Envelope.BCC),
	}
	if m.Envelope.Sender != nil {
		a.Sender = m.Envelope.Sender.String()
	}
	if m.Envelope.ReplyTo != nil {
		a.ReplyTo = m.Envelope.ReplyTo.String()
	}
	return a, nil
}

// InlineCSS moves the rules of the style elements of doc into style attributes.
func InlineCSS(doc string) (string, error) {
	p, err := premailer.NewPremailerFromString(doc, premailer.NewOptions())
	if err != nil {
		return "", fmt.Errorf("inlining css: %w", err)
	}
	out, err := p.Transform()
	if err != nil {
		return "", fmt.Errorf("inlining css: %w", err)
	}
	return out, nil
}

// PlainText returns the text of an HTML document, without scripts and
// styles.
func PlainText(doc string) (string, error) {
	if doc == "" {
		return "", nil
	}
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.TrimSpace(b.String()), nil
}
