package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kerno/internal/action"
	"kerno/internal/entity"
	"kerno/internal/jsonright"
	"kerno/internal/log"
	"kerno/internal/mandato"
	"kerno/internal/model"
	"kerno/internal/peto"
	"kerno/internal/repository"
	"kerno/internal/state"
	"kerno/internal/storage"
	"kerno/internal/validation"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrReaderNil  = errors.New("reader is nil")
)

// FileNameMax is the longest file name a document may have.
const FileNameMax = 255

// Userless is the request context of anonymous document operations.
type Userless = peto.Userless[repository.DocumentRepository]

// Peto is the request context of document operations done by a user.
type Peto = peto.Peto[repository.DocumentRepository, *model.User]

// UploadInput is a file received from a client.
type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// Download is an open document body.
type Download struct {
	Document *model.Document
	Body     io.ReadCloser
}

// DocumentService defines the use cases for handling documents. Every use
// case answers with the envelope of the request context.
type DocumentService interface {
	// Upload stores the content, saves its metadata, commits and announces
	// it with a DocumentUploaded event. The object is removed when a step
	// fails before the commit succeeds.
	Upload(ctx context.Context, p *Peto, in UploadInput) (*state.Rezulto, error)

	// List answers a page of documents, pivoted, in the command "documentPage".
	List(ctx context.Context, p *Userless, limit, offset int) (*state.Rezulto, error)

	// Get answers one document with its tags and a temporary download URL.
	Get(ctx context.Context, p *Userless, id string) (*state.Rezulto, error)

	// Rename changes the display name to p.Raw["filename"].
	Rename(ctx context.Context, p *Peto, id string) (*state.Rezulto, error)

	// SetTags makes the tags of a document those in p.Raw["tags"].
	SetTags(ctx context.Context, p *Peto, id string) (*state.Rezulto, error)

	// Delete removes a document from both storage and repository.
	Delete(ctx context.Context, p *Peto, id string) (*state.Rezulto, error)

	// Download opens the stored body of a document.
	Download(ctx context.Context, p *Userless, id string) (*Download, error)
}

type uploadCtx struct {
	*Peto
	in        UploadInput
	name      entity.FileName
	key       string
	doc       *model.Document
	committed bool
}

type renameCtx struct {
	*Peto
	id       string
	filename entity.FileName
	before   *model.Document
}

type tagsCtx struct {
	*Peto
	id      string
	desired []model.Tag
}

type deleteCtx struct {
	*Peto
	id  string
	doc *model.Document
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store         storage.Storage
	encoders      *jsonright.Registry[*Userless]
	presignExpiry time.Duration
	log           *slog.Logger

	upload  *action.Operation[*uploadCtx]
	rename  *action.Operation[*renameCtx]
	setTags *action.Operation[*tagsCtx]
	remove  *action.Operation[*deleteCtx]
}

// NewDocumentService constructs a new DocumentService. metrics may be nil.
func NewDocumentService(store storage.Storage, metrics *action.Metrics) (DocumentService, error) {
	s := &documentService{
		store:         store,
		encoders:      Encoders(),
		presignExpiry: 15 * time.Minute,
		log:           slog.With("component", "documents"),
	}

	var err error
	if s.upload, err = action.NewOperation("Upload document",
		action.Named("ValidateUpload", s.validateUpload),
		action.Named("StoreObject", s.storeObject),
		action.Named("SaveDocument", s.saveDocument),
		action.LogOperation[*uploadCtx](),
		action.Named("CommitUpload", s.commitUpload),
		action.Named("AnnounceUpload", s.announceUpload),
	); err != nil {
		return nil, err
	}
	if s.rename, err = action.NewOperation("Rename document",
		action.Named("ValidateRename", s.validateRename),
		action.Named("RenameDocument", s.renameDocument),
		action.LogOperation[*renameCtx](),
	); err != nil {
		return nil, err
	}
	if s.setTags, err = action.NewOperation("Tag document",
		action.Named("ValidateTags", s.validateTags),
		action.Named("ReconcileTags", s.reconcileTags),
		action.LogOperation[*tagsCtx](),
	); err != nil {
		return nil, err
	}
	if s.remove, err = action.NewOperation("Delete document",
		action.Named("FindDocument", s.findForDelete),
		action.Named("DeleteObject", s.deleteObject),
		action.Named("DeleteDocument", s.deleteDocument),
		action.LogOperation[*deleteCtx](),
	); err != nil {
		return nil, err
	}

	s.upload.Instrument(metrics)
	s.rename.Instrument(metrics)
	s.setTags.Instrument(metrics)
	s.remove.Instrument(metrics)
	return s, nil
}

// notFound is the failure of operations on unknown documents.
func notFound(id string) *state.MalbonaRezulto {
	return state.NewMalbona(404,
		state.Title("Document not found"),
		state.Plain(fmt.Sprintf("There is no document with the id %s.", id)))
}

func (s *documentService) find(ctx context.Context, repo repository.DocumentRepository, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(id)
	}
	return doc, err
}

func (s *documentService) Upload(ctx context.Context, p *Peto, in UploadInput) (*state.Rezulto, error) {
	c := &uploadCtx{Peto: p, in: in}
	rez, err := s.upload.Run(ctx, c)
	if err != nil && c.key != "" && !c.committed {
		// The transaction is rolled back, so the object must go too.
		log.From(ctx, s.log).Warn("removing the stored object", "key", c.key, "error", err)
		if delErr := s.store.Delete(context.WithoutCancel(ctx), c.key); delErr != nil {
			return nil, fmt.Errorf("%w; rollback delete failed: %v", err, delErr)
		}
	}
	return rez, err
}

func (s *documentService) validateUpload(_ context.Context, c *uploadCtx) error {
	if c.in.Reader == nil {
		return ErrReaderNil
	}
	name, err := entity.NewFileName(c.in.Filename, FileNameMax)
	if err != nil {
		m := state.NewMalbona(400, state.Title("Invalid file name"), state.Plain(err.Error()))
		m.Invalid["filename"] = err.Error()
		return m
	}
	c.name = name
	if c.in.ContentType == "" {
		c.in.ContentType = "application/octet-stream"
	}
	delete(c.Raw, "bytes")
	c.Raw["filename"] = name.String()
	c.Raw["size"] = c.in.Size
	c.Raw["content_type"] = c.in.ContentType
	return nil
}

func (s *documentService) storeObject(ctx context.Context, c *uploadCtx) error {
	key := "documents/" + uuid.NewString() + "." + c.name.Extension()
	info, err := s.store.Put(ctx, key, c.in.Reader, storage.PutObjectOptions{
		Size:        c.in.Size,
		ContentType: c.in.ContentType,
		Metadata: map[string]string{
			"original-filename": c.name.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("upload to storage: %w", err)
	}
	c.key = info.Key
	c.doc = &model.Document{
		ID:          uuid.NewString(),
		Filename:    c.name.String(),
		StoragePath: info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
		UploadedBy:  c.UserID(),
		CreatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s *documentService) saveDocument(ctx context.Context, c *uploadCtx) error {
	stored, err := c.Repo.Create(ctx, c.doc)
	if err != nil {
		return fmt.Errorf("db save failed: %w", err)
	}
	c.doc = stored
	c.Raw["id"] = stored.ID

	rez := c.Rezulto()
	rez.StatusInt = 201
	if _, err := rez.AddToast(state.Title("Uploaded"),
		state.Plain(fmt.Sprintf("%s was stored.", stored.Filename))); err != nil {
		return err
	}
	return mandato.New(stored, &c.Userless, "detail").AddTo(rez, s.encoders)
}

// commitUpload makes the document durable before anyone hears of it.
// Repositories that are not Committers are committed by the caller.
func (s *documentService) commitUpload(_ context.Context, c *uploadCtx) error {
	tx, ok := c.Repo.(repository.Committer)
	if !ok {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upload: %w", err)
	}
	c.committed = true
	return nil
}

// announceUpload runs after the commit, so a failing subscriber cannot undo
// the upload. The failure is logged instead.
func (s *documentService) announceUpload(ctx context.Context, c *uploadCtx) error {
	err := c.Kerno.Events.Broadcast(ctx, DocumentUploaded{
		ID:          c.doc.ID,
		Filename:    c.doc.Filename,
		Size:        c.doc.Size,
		ContentType: c.doc.ContentType,
		UploadedBy:  c.doc.UploadedBy,
		CreatedAt:   c.doc.CreatedAt,
	})
	if err != nil {
		log.From(ctx, s.log).Error("announcing the upload", "document_id", c.doc.ID, "error", err)
	}
	return nil
}

// List returns a page of documents.
func (s *documentService) List(ctx context.Context, p *Userless, limit, offset int) (*state.Rezulto, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := p.Repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	page := DocumentPage{Items: res.Items, Total: res.Total, Limit: limit, Offset: offset}
	rez := p.Rezulto()
	if err := mandato.New(page, p).AddTo(rez, s.encoders); err != nil {
		return nil, err
	}
	return rez, nil
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, p *Userless, id string) (*state.Rezulto, error) {
	doc, err := s.find(ctx, p.Repo, id)
	if err != nil {
		return nil, err
	}
	tags, err := p.Repo.Tags(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := s.store.PresignGet(ctx, doc.StoragePath, s.presignExpiry, doc.Filename)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", doc.StoragePath, err)
	}

	rez := p.Rezulto()
	detail := DocumentDetail{Document: doc, Tags: tags, URL: url}
	if err := mandato.New(detail, p, "detail").Named("document").AddTo(rez, s.encoders); err != nil {
		return nil, err
	}
	return rez, nil
}

type renameInput struct {
	Filename string `json:"filename" validate:"required,max=255"`
}

func (s *documentService) Rename(ctx context.Context, p *Peto, id string) (*state.Rezulto, error) {
	return s.rename.Run(ctx, &renameCtx{Peto: p, id: id})
}

func (s *documentService) validateRename(ctx context.Context, c *renameCtx) error {
	var in renameInput
	if err := validation.Decode(c.Raw, &in); err != nil {
		return err
	}
	name, err := entity.NewFileName(in.Filename, FileNameMax)
	if err != nil {
		m := state.NewMalbona(400, state.Title("Invalid file name"), state.Plain(err.Error()))
		m.Invalid["filename"] = err.Error()
		return m
	}
	c.filename = name
	c.before, err = s.find(ctx, c.Repo, c.id)
	return err
}

func (s *documentService) renameDocument(ctx context.Context, c *renameCtx) error {
	if err := c.Repo.Rename(ctx, c.id, c.filename.String()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c.id)
		}
		return err
	}
	after := *c.before
	after.Filename = c.filename.String()

	rez := c.Rezulto()
	cmp := action.Compare(*c.before, after)
	changes := cmp.String()
	if changes == "" {
		changes = "The name did not change."
	}
	rez.SetDebug("differences", cmp.String())
	if _, err := rez.AddToast(state.Title("Renamed"), state.Plain(changes)); err != nil {
		return err
	}
	return mandato.New(&after, &c.Userless, "detail").AddTo(rez, s.encoders)
}

type tagInput struct {
	Name  string `json:"name" validate:"required,max=40"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

type tagsInput struct {
	Tags []tagInput `json:"tags" validate:"dive"`
}

func (s *documentService) SetTags(ctx context.Context, p *Peto, id string) (*state.Rezulto, error) {
	return s.setTags.Run(ctx, &tagsCtx{Peto: p, id: id})
}

func (s *documentService) validateTags(ctx context.Context, c *tagsCtx) error {
	var in tagsInput
	if err := validation.Decode(c.Raw, &in); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, t := range in.Tags {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		c.desired = append(c.desired, model.Tag{Name: t.Name, Color: t.Color})
	}
	_, err := s.find(ctx, c.Repo, c.id)
	return err
}

func (s *documentService) reconcileTags(ctx context.Context, c *tagsCtx) error {
	existing, err := c.Repo.Tags(ctx, c.id)
	if err != nil {
		return err
	}
	org := action.OrganizeValueObjects(existing, c.desired, func(t model.Tag) string { return t.Name })

	var recolored []string
	for _, cmp := range org.ToKeep {
		if len(cmp.Differences("color")) == 0 {
			continue
		}
		if _, _, err := c.Repo.SaveTag(ctx, cmp.New); err != nil {
			return err
		}
		recolored = append(recolored, cmp.New.Name)
	}
	added := tagNames(org.ToAdd)
	for _, t := range org.ToAdd {
		if _, _, err := c.Repo.SaveTag(ctx, t); err != nil {
			return err
		}
	}
	if err := c.Repo.AddTags(ctx, c.id, added...); err != nil {
		return err
	}
	removed := tagNames(org.ToRemove)
	if err := c.Repo.RemoveTags(ctx, c.id, removed...); err != nil {
		return err
	}

	tags, err := c.Repo.Tags(ctx, c.id)
	if err != nil {
		return err
	}
	rez := c.Rezulto()
	rez.SetDebug("added", added)
	rez.SetDebug("removed", removed)
	rez.SetDebug("recolored", recolored)
	rez.AddCommand("documentTags", map[string]any{"id": c.id, "names": tagNames(tags)})
	return nil
}

func tagNames(tags []model.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

func (s *documentService) Delete(ctx context.Context, p *Peto, id string) (*state.Rezulto, error) {
	return s.remove.Run(ctx, &deleteCtx{Peto: p, id: id})
}

func (s *documentService) findForDelete(ctx context.Context, c *deleteCtx) error {
	doc, err := s.find(ctx, c.Repo, c.id)
	if err != nil {
		return err
	}
	c.doc = doc
	c.Raw["id"] = doc.ID
	c.Raw["filename"] = doc.Filename
	return nil
}

// deleteObject runs before the row goes away; if it fails the row is kept.
func (s *documentService) deleteObject(ctx context.Context, c *deleteCtx) error {
	if err := s.store.Delete(ctx, c.doc.StoragePath); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	return nil
}

func (s *documentService) deleteDocument(ctx context.Context, c *deleteCtx) error {
	if err := c.Repo.Delete(ctx, c.id); err != nil {
		return err
	}
	rez := c.Rezulto()
	if _, err := rez.AddToast(state.Title("Deleted"),
		state.Plain(fmt.Sprintf("%s was deleted.", c.doc.Filename))); err != nil {
		return err
	}
	rez.AddCommand("documentDeleted", c.id)
	return nil
}

func (s *documentService) Download(ctx context.Context, p *Userless, id string) (*Download, error) {
	doc, err := s.find(ctx, p.Repo, id)
	if err != nil {
		return nil, err
	}
	body, _, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("get storage: %w", err)
	}
	log.From(ctx, s.log).Debug("download", "id", id, "size", doc.Size)
	return &Download{Document: doc, Body: body}, nil
}
