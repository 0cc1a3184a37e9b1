package repository

import (
	"context"

	"kerno/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here, strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// List returns a page of documents and the total count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// Delete removes a document by ID. It returns nil if the row did not exist.
	Delete(ctx context.Context, id string) error

	// Rename changes the display filename, returning ErrNotFound for unknown ids.
	Rename(ctx context.Context, id, filename string) error

	// Tags lists the tags of a document ordered by name.
	Tags(ctx context.Context, id string) ([]model.Tag, error)

	// SaveTag inserts the tag, or updates its color when the name exists.
	SaveTag(ctx context.Context, tag model.Tag) (*model.Tag, bool, error)

	// AddTags links the named tags to a document, creating missing tags.
	AddTags(ctx context.Context, id string, names ...string) error

	// RemoveTags unlinks the named tags from a document.
	RemoveTags(ctx context.Context, id string, names ...string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
