package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kerno/internal/queue/mocks"
)

func TestAddress(t *testing.T) {
	a, err := NewAddress("nando@example.com", "Nando")
	require.NoError(t, err)
	assert.Equal(t, `"Nando" <nando@example.com>`, a.String())

	a, err = NewAddress("nando@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "nando@example.com", a.String())

	_, err = NewAddress("not an address", "Nando")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = NewAddress("", "")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestEnvelope(t *testing.T) {
	_, err := NewEnvelope()
	assert.ErrorIs(t, err, ErrNoRecipients)

	env, err := NewEnvelope(MustAddress("a@example.com", "A"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"recipients": []string{`"A" <a@example.com>`},
		"cc":         []string{},
		"bcc":        []string{},
		"reply_to":   nil,
		"sender":     nil,
	}, env.ToDict())

	reply := MustAddress("help@example.com", "")
	env.ReplyTo = &reply
	env.BCC = []Address{MustAddress("audit@example.com", "")}
	d := env.ToDict()
	assert.Equal(t, "help@example.com", d["reply_to"])
	assert.Equal(t, []string{"audit@example.com"}, d["bcc"])
}

func welcomeRenderer() *TemplateRenderer {
	return &TemplateRenderer{Template: template.Must(template.New("welcome.html").Parse(
		`<html><head><style>p { color: red }</style></head>` +
			`<body><p>Hello, <b>{{.name}}</b>!</p><script>track()</script></body></html>`))}
}

func welcomeMessage(t *testing.T) *Message {
	t.Helper()
	env, err := NewEnvelope(MustAddress("nando@example.com", "Nando"))
	require.NoError(t, err)
	return NewMessage(welcomeRenderer(), env, "Welcome to {{.app_name}}", "welcome.html",
		map[string]any{"app_name": "Kerno", "name": "Nando <3"})
}

func TestMessage(t *testing.T) {
	m := welcomeMessage(t)

	subject, err := m.SubjectLine()
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Kerno", subject)

	html, err := m.HTML()
	require.NoError(t, err)
	assert.Regexp(t, `<p style="[^"]*color:\s*red`, html)
	assert.Contains(t, html, "Nando &lt;3")

	plain, err := m.Plain()
	require.NoError(t, err)
	assert.Equal(t, "Hello, Nando <3!", plain)

	d, err := m.ToDict()
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Kerno", d["subject"])
	assert.Equal(t, []string{`"Nando" <nando@example.com>`}, d["envelope"].(map[string]any)["recipients"])
}

func TestMessage_Failures(t *testing.T) {
	env, _ := NewEnvelope(MustAddress("nando@example.com", ""))

	_, err := NewMessage(welcomeRenderer(), env, "", "welcome.html", nil).ToDict()
	assert.ErrorIs(t, err, ErrNoSubject)

	_, err = NewMessage(nil, env, "Hi", "", nil).ToDict()
	assert.ErrorIs(t, err, ErrNoBody)

	_, err = NewMessage(welcomeRenderer(), env, "Hi {{.missing}}", "welcome.html", map[string]any{}).ToDict()
	assert.ErrorContains(t, err, "formatting the subject")

	_, err = NewMessage(welcomeRenderer(), env, "Hi", "absent.html", nil).ToDict()
	assert.ErrorContains(t, err, "rendering absent.html")
}

func TestMessage_Args(t *testing.T) {
	m := welcomeMessage(t)
	reply := MustAddress("help@example.com", "")
	m.Envelope.ReplyTo = &reply
	m.Envelope.CC = []Address{MustAddress("boss@example.com", "")}

	a, err := m.Args("noreply@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Kerno", a.Subject)
	assert.Equal(t, "noreply@example.com", a.Sender)
	assert.Equal(t, []string{`"Nando" <nando@example.com>`}, a.Recipients)
	assert.Equal(t, []string{"boss@example.com"}, a.CC)
	assert.Empty(t, a.BCC)
	assert.Equal(t, "help@example.com", a.ReplyTo)
	assert.Equal(t, "Hello, Nando <3!", a.Body)

	sender := MustAddress("team@example.com", "Team")
	m.Envelope.Sender = &sender
	a, err = m.Args("noreply@example.com")
	require.NoError(t, err)
	assert.Equal(t, `"Team" <team@example.com>`, a.Sender)
}

func TestSMTPSender(t *testing.T) {
	var (
		from string
		to   []string
		raw  bytes.Buffer
	)
	s := NewSenderFunc(func(f string, rcpt []string, msg io.WriterTo) error {
		from, to = f, rcpt
		_, err := msg.WriteTo(&raw)
		return err
	})

	a := Args{
		Subject:    "Report",
		HTML:       "<p>Done</p>",
		Body:       "Done",
		Recipients: []string{"a@example.com"},
		Sender:     "noreply@example.com",
		CC:         []string{"b@example.com"},
		BCC:        []string{"c@example.com"},
		ReplyTo:    "help@example.com",
	}
	require.NoError(t, s.Send(context.Background(), a))

	assert.Equal(t, "noreply@example.com", from)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, to)
	assert.Contains(t, raw.String(), "Subject: Report")
	assert.Contains(t, raw.String(), "Reply-To: help@example.com")
	assert.Contains(t, raw.String(), "text/html")
	assert.NotContains(t, raw.String(), "c@example.com")

	failing := NewSenderFunc(func(string, []string, io.WriterTo) error { return errors.New("relay denied") })
	assert.ErrorContains(t, failing.Send(context.Background(), a), "relay denied")
}

func TestQueueSender(t *testing.T) {
	pub := new(mocks.MockPublisher)
	a := Args{Subject: "Hi", Body: "Hi", Recipients: []string{"a@example.com"}, Sender: "x@example.com"}

	pub.On("Publish", mock.Anything, "emails", mock.MatchedBy(func(body []byte) bool {
		var got Args
		return json.Unmarshal(body, &got) == nil && got.Subject == "Hi" && got.Recipients[0] == "a@example.com"
	})).Return(nil).Once()

	require.NoError(t, NewQueueSender(pub, "emails").Send(context.Background(), a))
	pub.AssertExpectations(t)
}

type recordingSender struct {
	sent []Args
	err  error
}

func (r *recordingSender) Send(_ context.Context, a Args) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, a)
	return nil
}

func TestDeliver(t *testing.T) {
	ctx := context.Background()
	s := &recordingSender{}

	body, _ := json.Marshal(Args{Subject: "Hi", Recipients: []string{"a@example.com"}})
	require.NoError(t, Deliver(ctx, s, body))
	require.Len(t, s.sent, 1)
	assert.Equal(t, "Hi", s.sent[0].Subject)

	assert.ErrorIs(t, Deliver(ctx, s, []byte("{")), ErrMalformed)
	assert.ErrorIs(t, Deliver(ctx, s, []byte(`{"subject": "Hi"}`)), ErrMalformed)

	s.err = errors.New("smtp down")
	err := Deliver(ctx, s, body)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformed)
}
