package handler

import (
	"bytes"
	"errors"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"

	"kerno/internal/entity"
	"kerno/internal/http/web"
	"kerno/internal/model"
	"kerno/internal/repository"
	"kerno/internal/service"
	"kerno/internal/state"
)

// ListDocuments godoc
// @Summary List documents
// @Param limit query int false "page size" default(10)
// @Param offset query int false "items to skip" default(0)
// @Success 200 {object} map[string]any
// @Router /documents [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return web.View(func(c *fiber.Ctx) (*state.Rezulto, error) {
		limit, err := queryInt(c, "limit", 10)
		if err != nil {
			return nil, err
		}
		offset, err := queryInt(c, "offset", 0)
		if err != nil {
			return nil, err
		}
		p, err := web.UserlessFromFiber[repository.DocumentRepository](c, false)
		if err != nil {
			return nil, err
		}
		return svc.List(c.UserContext(), p, limit, offset)
	})
}

// UploadDocument godoc
// @Summary Upload a document (multipart/form-data, field name: file)
// @Accept multipart/form-data
// @Param file formData file true "the document"
// @Success 201 {object} map[string]any
// @Router /documents [post]
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return web.View(func(c *fiber.Ctx) (*state.Rezulto, error) {
		p, err := web.PetoFromFiber[repository.DocumentRepository, *model.User](c, false)
		if err != nil {
			return nil, err
		}
		fh, err := c.FormFile("file")
		if err != nil {
			m := invalidParam("File required", "Send the document in the form field \"file\".")
			m.Invalid["file"] = "required"
			return nil, m
		}
		f, err := fh.Open()
		if err != nil {
			return nil, invalidParam("File unreadable", "The uploaded file could not be opened.")
		}
		defer f.Close()

		rez, err := svc.Upload(c.UserContext(), p, service.UploadInput{
			Reader:      f,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
		})
		if err != nil {
			return nil, err
		}
		// Form posts are usually followed by a redirect; the flash survives it.
		_, ferr := web.AddFlash(c, false, state.Level("success"), state.Title("Uploaded"), state.Plain(fh.Filename))
		if ferr != nil && !errors.Is(ferr, web.ErrNoSessions) {
			slog.Warn("could not store the flash message", "error", ferr)
		}
		return rez, nil
	})
}

// UploadDocumentJSON godoc
// @Summary Upload a document as base64 inside a JSON object
// @Accept json
// @Success 201 {object} map[string]any
// @Router /documents/json [post]
func UploadDocumentJSON(svc service.DocumentService) fiber.Handler {
	return web.View(func(c *fiber.Ctx) (*state.Rezulto, error) {
		p, err := web.PetoFromFiber[repository.DocumentRepository, *model.User](c, true)
		if err != nil {
			return nil, err
		}
		name, _ := p.Raw["filename"].(string)
		payload, _ := p.Raw["bytes"].(string)
		file, err := entity.NewUploadedFile(name, payload)
		if err != nil {
			m := invalidParam("Invalid upload", err.Error())
			if errors.Is(err, entity.ErrUploadedFilePayload) {
				m.Invalid["bytes"] = err.Error()
			} else {
				m.Invalid["filename"] = err.Error()
			}
			return nil, m
		}
		return svc.Upload(c.UserContext(), p, service.UploadInput{
			Reader:      bytes.NewReader(file.Bytes),
			Filename:    file.Filename.String(),
			ContentType: mimetype.Detect(file.Bytes).String(),
			Size:        int64(len(file.Bytes)),
		})
	})
}

// GetDocument godoc
// @Summary Get a document with its tags and a temporary download URL
// @Param id path string true "document id"
// @Success 200 {object} map[string]any
// @Router /documents/{id} [get]
func GetDocument(svc service.DocumentService) fiber.Handler {
	return web.View(func(c *fiber.Ctx) (*state.Rezulto, error) {
		id, err := documentID(c)
		if err != nil {
			return nil, err
		}
		p, err := web.UserlessFromFiber[repository.DocumentRepository](c, false)
		if err != nil {
			return nil, err
		}
		return svc.Get(c.UserContext(), p, id)
	})
}

// RenameDocument godoc
// @Summary Rename a document
// @Accept json
// @Param id path string true "document id"
// @Success 200 {object} map[string]any
// @Router /documents/{id} [patch]
func RenameDocument(svc service.DocumentService) fiber.Handler {
	return web.View(func(c *fiber.Ctx) (*state.Rezulto, error) {
		id, err := documentID(c)
		if err != nil {
			return nil, err
		}
		p, err := web.PetoFromFiber[repository.DocumentRepository, *model.User](c, true)
		if err != nil {
			return nil, err
		}
		return svc.Rename(c.UserContext(), p, id)
	})
}

// TagDocument godoc
// @Summary Replace the tags of a document
// @Accept json
// @Param id path string true "document id"
// @Success 200 {object} map[string]any
// @Router /documents/{id}/tags [put]
func TagDocument(svc service.DocumentService) fiber.Handler {
	return web.View(func(c *fiber.Ctx) (*state.Rezulto, error) {
		id, err := documentID(c)
		if err != nil {
			return nil, err
		}
		p, err := web.PetoFromFiber[repository.DocumentRepository, *model.User](c, true)
		if err != nil {
			return nil, err
		}
		return svc.SetTags(c.UserContext(), p, id)
	})
}

// DeleteDocument godoc
// @Summary Delete a document and its object
// @Param id path string true "document id"
// @Success 200 {object} map[string]any
// @Router /documents/{id} [delete]
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return web.View(func(c *fiber.Ctx) (*state.Rezulto, error) {
		id, err := documentID(c)
		if err != nil {
			return nil, err
		}
		p, err := web.PetoFromFiber[repository.DocumentRepository, *model.User](c, false)
		if err != nil {
			return nil, err
		}
		return svc.Delete(c.UserContext(), p, id)
	})
}

// DownloadDocument godoc
// @Summary Download the content of a document
// @Param id path string true "document id"
// @Success 200 {file} file
// @Router /documents/{id}/download [get]
func DownloadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := documentID(c)
		if err != nil {
			return err
		}
		p, err := web.UserlessFromFiber[repository.DocumentRepository](c, false)
		if err != nil {
			return err
		}
		dl, err := svc.Download(c.UserContext(), p, id)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, dl.Document.ContentType)
		c.Set(fiber.HeaderContentDisposition, web.ContentDispositionValue(dl.Document.Filename))
		// fasthttp closes the body once it has been written.
		return c.SendStream(dl.Body, int(dl.Document.Size))
	}
}
