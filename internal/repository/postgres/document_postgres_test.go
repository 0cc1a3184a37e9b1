package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kerno/internal/action"
	"kerno/internal/kerno"
	"kerno/internal/model"
	"kerno/internal/repository"
)

var documentCols = []string{"id", "filename", "storage_path", "size", "content_type", "uploaded_by", "created_at"}

func TestDocumentPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	doc := &model.Document{
		ID:          "test-uuid",
		Filename:    "test.txt",
		StoragePath: "documents/test.txt",
		Size:        123,
		ContentType: "text/plain",
		UploadedBy:  "nando@example.com",
		CreatedAt:   now,
	}

	rows := sqlmock.NewRows(documentCols).
		AddRow(doc.ID, doc.Filename, doc.StoragePath, doc.Size, doc.ContentType, doc.UploadedBy, doc.CreatedAt)

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(doc.ID, doc.Filename, doc.StoragePath, doc.Size, doc.ContentType, doc.UploadedBy, doc.CreatedAt).
		WillReturnRows(rows)

	result, err := repo.Create(ctx, doc)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, doc.ID, result.ID)
	assert.Equal(t, doc.UploadedBy, result.UploadedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(documentCols).
			AddRow("test-id", "file.txt", "path/file.txt", 100, "text/plain", "", time.Now())

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs("test-id").
			WillReturnRows(rows)

		doc, err := repo.FindByID(ctx, "test-id")

		assert.NoError(t, err)
		assert.NotNil(t, doc)
		assert.Equal(t, "test-id", doc.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(documentCols))

		doc, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, doc)
	})
}

func TestDocumentPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows(documentCols).
		AddRow("test-id", "file.txt", "path/file.txt", 100, "text/plain", "", time.Now())

	mock.ExpectQuery("SELECT (.+) FROM documents ORDER BY").
		WithArgs(10, 0).
		WillReturnRows(rows)

	res, err := repo.List(context.Background(), repository.PageQuery{Limit: 10, Offset: 0})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Len(t, res.Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)

	mock.ExpectExec("DELETE FROM documents WHERE id = ?").
		WithArgs("test-id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), "test-id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Rename(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE documents SET filename").
		WithArgs("test-id", "new.txt").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Rename(ctx, "test-id", "new.txt"))

	mock.ExpectExec("UPDATE documents SET filename").
		WithArgs("missing", "new.txt").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Rename(ctx, "missing", "new.txt"), repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Tags(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)

	mock.ExpectQuery("SELECT (.+) FROM tags t JOIN document_tags").
		WithArgs("test-id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "color"}).
			AddRow(1, "contract", "red").
			AddRow(2, "invoice", ""))

	tags, err := repo.Tags(context.Background(), "test-id")

	require.NoError(t, err)
	assert.Equal(t, []model.Tag{{ID: 1, Name: "contract", Color: "red"}, {ID: 2, Name: "invoice"}}, tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_SaveTag(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("new", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, color FROM tags WHERE name").
			WithArgs("urgent").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "color"}))
		mock.ExpectQuery("INSERT INTO tags").
			WithArgs("urgent", "red").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

		tag, isNew, err := repo.SaveTag(ctx, model.Tag{Name: "urgent", Color: "red"})

		require.NoError(t, err)
		assert.True(t, isNew)
		assert.Equal(t, &model.Tag{ID: 7, Name: "urgent", Color: "red"}, tag)
	})

	t.Run("recolored", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, color FROM tags WHERE name").
			WithArgs("urgent").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "color"}).AddRow(7, "urgent", "red"))
		mock.ExpectExec("UPDATE tags SET color").
			WithArgs(int64(7), "orange").
			WillReturnResult(sqlmock.NewResult(0, 1))

		tag, isNew, err := repo.SaveTag(ctx, model.Tag{Name: "urgent", Color: "orange"})

		require.NoError(t, err)
		assert.False(t, isNew)
		assert.Equal(t, "orange", tag.Color)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_AddAndRemoveTags(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, name, color FROM tags WHERE name").
		WithArgs("contract").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "color"}).AddRow(1, "contract", ""))
	mock.ExpectExec("INSERT INTO document_tags").
		WithArgs("test-id", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, name, color FROM tags WHERE name").
		WithArgs("draft").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "color"}))
	mock.ExpectQuery("INSERT INTO tags").
		WithArgs("draft", "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec("INSERT INTO document_tags").
		WithArgs("test-id", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AddTags(ctx, "test-id", "contract", "draft"))

	mock.ExpectExec("DELETE FROM document_tags").
		WithArgs("test-id", "contract").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RemoveTags(ctx, "test-id", "contract"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationLogPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO operation_log").
		WithArgs(when, "nando@example.com", "Delete document", []byte(`{"id":"test-id"}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	logger := NewOperationLogPostgres(db)
	err = logger.LogOperation(context.Background(), action.OperationEntry{
		When:      when,
		User:      "nando@example.com",
		Operation: "Delete document",
		Payload:   map[string]any{"id": "test-id"},
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRepo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	eko, err := kerno.NewEko(kerno.Settings{})
	require.NoError(t, err)
	eko.Utilities.Register(repository.SessionFactoryUtility, repository.TxFactory(db))
	eko.SetRepositoryFactory(Factory)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM documents").WithArgs("test-id").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	repo, err := kerno.Repo[*Repo](ctx, eko.Kerno)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "test-id"))
	require.NoError(t, repo.Close(nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
