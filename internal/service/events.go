package service

import (
	"context"
	"embed"
	"html/template"
	"time"

	"kerno/internal/email"
	"kerno/internal/event"
)

// DocumentUploaded is broadcast when a document has been stored.
type DocumentUploaded struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

//go:embed templates/*.html
var templates embed.FS

// Templates renders the email templates of the documents application.
func Templates() *email.TemplateRenderer {
	return &email.TemplateRenderer{Template: template.Must(template.ParseFS(templates, "templates/*.html"))}
}

// NotifyUploads subscribes a handler emailing recipients about every upload.
func NotifyUploads(hub *event.Hub, s email.Sender, sender string, recipients []email.Address) error {
	if len(recipients) == 0 {
		return email.ErrNoRecipients
	}
	renderer := Templates()
	return event.Subscribe(hub, "email:uploads", func(ctx context.Context, e DocumentUploaded) error {
		env, err := email.NewEnvelope(recipients...)
		if err != nil {
			return err
		}
		msg := email.NewMessage(renderer, env, "New document: {{.filename}}", "document_uploaded.html",
			map[string]any{
				"filename":     e.Filename,
				"size":         e.Size,
				"content_type": e.ContentType,
				"uploaded_by":  e.UploadedBy,
			})
		args, err := msg.Args(sender)
		if err != nil {
			return err
		}
		return s.Send(ctx, args)
	})
}
