package postgres

import (
	"context"
	"database/sql"
	"errors"

	"kerno/internal/model"
	"kerno/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It queries through a repository.Querier, usually the transaction of a
// request, and contains no business logic.
type DocumentPostgres struct {
	db repository.Querier
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db repository.Querier) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, filename, storage_path, size, content_type, uploaded_by, created_at`

func scanDocument(row interface{ Scan(...any) error }) (*model.Document, error) {
	var d model.Document
	if err := row.Scan(
		&d.ID,
		&d.Filename,
		&d.StoragePath,
		&d.Size,
		&d.ContentType,
		&d.UploadedBy,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.Filename,
		doc.StoragePath,
		doc.Size,
		doc.ContentType,
		doc.UploadedBy,
		doc.CreatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return d, err
}

// List returns documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + documentColumns + `
		FROM documents
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
// Its tag links go with it (ON DELETE CASCADE).
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// Rename changes the display filename of a document.
func (r *DocumentPostgres) Rename(ctx context.Context, id, filename string) error {
	const q = `UPDATE documents SET filename = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, filename)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Tags lists the tags of a document ordered by name.
func (r *DocumentPostgres) Tags(ctx context.Context, id string) ([]model.Tag, error) {
	const q = `
		SELECT t.id, t.name, t.color
		FROM tags t
		JOIN document_tags dt ON dt.tag_id = t.id
		WHERE dt.document_id = $1
		ORDER BY t.name
	`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]model.Tag, 0)
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *DocumentPostgres) findTag(ctx context.Context, name string) (*model.Tag, error) {
	const q = `SELECT id, name, color FROM tags WHERE name = $1`
	var t model.Tag
	if err := r.db.QueryRowContext(ctx, q, name).Scan(&t.ID, &t.Name, &t.Color); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *DocumentPostgres) insertTag(ctx context.Context, tag model.Tag) (*model.Tag, error) {
	const q = `INSERT INTO tags (name, color) VALUES ($1, $2) RETURNING id`
	if err := r.db.QueryRowContext(ctx, q, tag.Name, tag.Color).Scan(&tag.ID); err != nil {
		return nil, err
	}
	return &tag, nil
}

// SaveTag inserts tag, or updates the color of the existing tag with the
// same name. The flag reports whether a row was inserted.
func (r *DocumentPostgres) SaveTag(ctx context.Context, tag model.Tag) (*model.Tag, bool, error) {
	return repository.UpdateOrAdd(ctx,
		func(ctx context.Context) (*model.Tag, error) {
			return r.findTag(ctx, tag.Name)
		},
		func(ctx context.Context, found *model.Tag) (*model.Tag, error) {
			if found.Color == tag.Color {
				return found, nil
			}
			const q = `UPDATE tags SET color = $2 WHERE id = $1`
			if _, err := r.db.ExecContext(ctx, q, found.ID, tag.Color); err != nil {
				return nil, err
			}
			found.Color = tag.Color
			return found, nil
		},
		func(ctx context.Context) (*model.Tag, error) {
			return r.insertTag(ctx, tag)
		},
	)
}

// AddTags links the named tags to a document, creating the missing ones.
func (r *DocumentPostgres) AddTags(ctx context.Context, id string, names ...string) error {
	const q = `
		INSERT INTO document_tags (document_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	for _, name := range names {
		tag, _, err := repository.GetOrAdd(ctx,
			func(ctx context.Context) (*model.Tag, error) {
				return r.findTag(ctx, name)
			},
			func(ctx context.Context) (*model.Tag, error) {
				return r.insertTag(ctx, model.Tag{Name: name})
			},
		)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, q, id, tag.ID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTags unlinks the named tags from a document. Unknown names are ignored.
func (r *DocumentPostgres) RemoveTags(ctx context.Context, id string, names ...string) error {
	const q = `
		DELETE FROM document_tags
		WHERE document_id = $1
		  AND tag_id IN (SELECT id FROM tags WHERE name = $2)
	`
	for _, name := range names {
		if _, err := r.db.ExecContext(ctx, q, id, name); err != nil {
			return err
		}
	}
	return nil
}
