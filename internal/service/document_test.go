package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kerno/internal/action"
	"kerno/internal/email"
	"kerno/internal/event"
	"kerno/internal/kerno"
	"kerno/internal/model"
	"kerno/internal/peto"
	"kerno/internal/repository"
	repoMocks "kerno/internal/repository/mocks"
	"kerno/internal/state"
	"kerno/internal/storage"
	storeMocks "kerno/internal/storage/mocks"
)

type auditLog struct {
	entries []action.OperationEntry
}

func (a *auditLog) LogOperation(_ context.Context, entry action.OperationEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

type fixture struct {
	store *storeMocks.MockStorage
	repo  *repoMocks.MockDocumentRepository
	audit *auditLog
	k     *kerno.Kerno
	svc   DocumentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eko, err := kerno.NewEko(nil)
	require.NoError(t, err)
	audit := &auditLog{}
	eko.Utilities.Register(action.LoggerUtility, audit)

	store := new(storeMocks.MockStorage)
	svc, err := NewDocumentService(store, nil)
	require.NoError(t, err)
	return &fixture{
		store: store,
		repo:  new(repoMocks.MockDocumentRepository),
		audit: audit,
		k:     eko.Kerno,
		svc:   svc,
	}
}

func (f *fixture) peto(raw map[string]any) *Peto {
	return peto.New[repository.DocumentRepository](f.k, f.repo, &model.User{Email: "nando@example.com"}, raw)
}

func (f *fixture) userless() *Userless {
	return peto.NewUserless[repository.DocumentRepository](f.k, f.repo, nil)
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.store.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func command(t *testing.T, rez *state.Rezulto, name string) any {
	t.Helper()
	for _, c := range rez.Commands {
		if c.Name == name {
			return c.Payload
		}
	}
	t.Fatalf("no command %q in %v", name, rez.Commands)
	return nil
}

func assertMalbona(t *testing.T, err error, status int) *state.MalbonaRezulto {
	t.Helper()
	var m *state.MalbonaRezulto
	require.ErrorAs(t, err, &m)
	assert.Equal(t, status, m.StatusInt)
	return m
}

var created = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestDocumentService_Upload(t *testing.T) {
	ctx := context.Background()
	putOK := func(f *fixture) {
		f.store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "documents/") && strings.HasSuffix(key, ".txt")
		}), mock.Anything, storage.PutObjectOptions{
			Size:        11,
			ContentType: "text/plain",
			Metadata:    map[string]string{"original-filename": "test.txt"},
		}).Return(storage.ObjectInfo{
			Key:         "documents/uuid.txt",
			Size:        11,
			ContentType: "text/plain",
		}, nil)
	}

	tests := []struct {
		name       string
		reader     io.Reader
		filename   string
		setupMocks func(f *fixture)
		wantErr    error
		wantErrMsg string
		wantStatus int
	}{
		{
			name:     "happy path",
			reader:   strings.NewReader("hello world"),
			filename: "test.txt",
			setupMocks: func(f *fixture) {
				putOK(f)
				f.repo.On("Create", mock.Anything, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.Filename == "test.txt" &&
						doc.StoragePath == "documents/uuid.txt" &&
						doc.UploadedBy == "nando@example.com"
				})).Return(&model.Document{
					ID: "gen-id", Filename: "test.txt", StoragePath: "documents/uuid.txt",
					Size: 11, ContentType: "text/plain", UploadedBy: "nando@example.com", CreatedAt: created,
				}, nil)
			},
		},
		{
			name:       "validation error - nil reader",
			filename:   "test.txt",
			setupMocks: func(f *fixture) {},
			wantErr:    ErrReaderNil,
		},
		{
			name:       "validation error - no extension",
			reader:     strings.NewReader("hello"),
			filename:   "README",
			setupMocks: func(f *fixture) {},
			wantStatus: 400,
		},
		{
			name:     "storage error",
			reader:   strings.NewReader("hello world"),
			filename: "test.txt",
			setupMocks: func(f *fixture) {
				f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("storage fail"))
			},
			wantErrMsg: "upload to storage: storage fail",
		},
		{
			name:     "repository error with successful rollback",
			reader:   strings.NewReader("hello world"),
			filename: "test.txt",
			setupMocks: func(f *fixture) {
				putOK(f)
				f.repo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
				f.store.On("Delete", mock.Anything, "documents/uuid.txt").Return(nil)
			},
			wantErrMsg: "db save failed: db fail",
		},
		{
			name:     "repository error with failed rollback",
			reader:   strings.NewReader("hello world"),
			filename: "test.txt",
			setupMocks: func(f *fixture) {
				putOK(f)
				f.repo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
				f.store.On("Delete", mock.Anything, "documents/uuid.txt").Return(errors.New("delete fail"))
			},
			wantErrMsg: "rollback delete failed: delete fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMocks(f)
			var events []DocumentUploaded
			require.NoError(t, event.Subscribe(f.k.Events, "test", func(_ context.Context, e DocumentUploaded) error {
				events = append(events, e)
				return nil
			}))

			rez, err := f.svc.Upload(ctx, f.peto(nil), UploadInput{
				Reader: tt.reader, Filename: tt.filename, ContentType: "text/plain", Size: 11,
			})

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrMsg != "":
				assert.ErrorContains(t, err, tt.wantErrMsg)
			case tt.wantStatus != 0:
				assertMalbona(t, err, tt.wantStatus)
			default:
				require.NoError(t, err)
				assert.Equal(t, 201, rez.StatusInt)
				doc := command(t, rez, "document").(map[string]any)
				assert.Equal(t, "gen-id", doc["id"])
				assert.Equal(t, "nando@example.com", doc["uploaded_by"])

				require.Len(t, events, 1)
				assert.Equal(t, "gen-id", events[0].ID)

				require.Len(t, f.audit.entries, 1)
				entry := f.audit.entries[0]
				assert.Equal(t, "Upload document", entry.Operation)
				assert.Equal(t, "nando@example.com", entry.User)
				assert.Equal(t, "test.txt", entry.Payload["filename"])
			}
			if err != nil {
				assert.Nil(t, rez)
				assert.Empty(t, events)
				assert.Empty(t, f.audit.entries)
			}
			f.assertExpectations(t)
		})
	}
}

// txRepo is a request repository owning its transaction.
type txRepo struct {
	*repoMocks.MockDocumentRepository
	commitErr error
	commits   int
}

func (r *txRepo) Commit() error {
	r.commits++
	return r.commitErr
}

func TestDocumentService_Upload_CommitFailureRemovesTheObject(t *testing.T) {
	f := newFixture(t)
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{Key: "documents/uuid.pdf"}, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(&model.Document{ID: "gen-id", Filename: "a.pdf"}, nil)
	f.store.On("Delete", mock.Anything, "documents/uuid.pdf").Return(nil)
	var events []DocumentUploaded
	require.NoError(t, event.Subscribe(f.k.Events, "test", func(_ context.Context, e DocumentUploaded) error {
		events = append(events, e)
		return nil
	}))

	repo := &txRepo{MockDocumentRepository: f.repo, commitErr: errors.New("serialization failure")}
	p := peto.New[repository.DocumentRepository](f.k, repo, &model.User{Email: "nando@example.com"}, nil)
	rez, err := f.svc.Upload(context.Background(), p, UploadInput{
		Reader: strings.NewReader("%PDF"), Filename: "a.pdf", Size: 4,
	})

	assert.ErrorContains(t, err, "commit upload: serialization failure")
	assert.Nil(t, rez)
	assert.Equal(t, 1, repo.commits)
	assert.Empty(t, events)
	f.assertExpectations(t)
}

func TestDocumentService_Upload_CommitsBeforeAnnouncing(t *testing.T) {
	f := newFixture(t)
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{Key: "documents/uuid.pdf"}, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(&model.Document{ID: "gen-id", Filename: "a.pdf"}, nil)

	repo := &txRepo{MockDocumentRepository: f.repo}
	commitsSeen := -1
	require.NoError(t, event.Subscribe(f.k.Events, "test", func(context.Context, DocumentUploaded) error {
		commitsSeen = repo.commits
		return nil
	}))

	p := peto.New[repository.DocumentRepository](f.k, repo, &model.User{Email: "nando@example.com"}, nil)
	_, err := f.svc.Upload(context.Background(), p, UploadInput{
		Reader: strings.NewReader("%PDF"), Filename: "a.pdf", Size: 4,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, commitsSeen)
	f.assertExpectations(t)
}

func TestDocumentService_Upload_EventFailureKeepsTheDocument(t *testing.T) {
	f := newFixture(t)
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{Key: "documents/uuid.pdf"}, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(&model.Document{ID: "gen-id", Filename: "a.pdf"}, nil)
	require.NoError(t, event.Subscribe(f.k.Events, "broken", func(context.Context, DocumentUploaded) error {
		return errors.New("broker down")
	}))

	repo := &txRepo{MockDocumentRepository: f.repo}
	p := peto.New[repository.DocumentRepository](f.k, repo, &model.User{Email: "nando@example.com"}, nil)
	rez, err := f.svc.Upload(context.Background(), p, UploadInput{
		Reader: strings.NewReader("%PDF"), Filename: "a.pdf", Size: 4,
	})

	require.NoError(t, err)
	assert.Equal(t, 201, rez.StatusInt)
	f.store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestDocumentService_Upload_DropsTheBase64Payload(t *testing.T) {
	f := newFixture(t)
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{Key: "documents/uuid.pdf"}, nil)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(&model.Document{ID: "gen-id", Filename: "a.pdf"}, nil)

	_, err := f.svc.Upload(context.Background(), f.peto(map[string]any{"bytes": "JVBERg==", "filename": "a.pdf"}),
		UploadInput{Reader: strings.NewReader("%PDF"), Filename: "a.pdf", Size: 4})
	require.NoError(t, err)
	require.Len(t, f.audit.entries, 1)
	assert.NotContains(t, f.audit.entries[0].Payload, "bytes")
	assert.Equal(t, "application/octet-stream", f.audit.entries[0].Payload["content_type"])
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		limit      int
		offset     int
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantErr    bool
		checkRes   func(t *testing.T, page map[string]any)
	}{
		{
			name:   "happy path",
			limit:  10,
			offset: 0,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", mock.Anything, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Document]{
						Items: []model.Document{
							{ID: "1", Filename: "a.pdf", Size: 3, ContentType: "application/pdf", CreatedAt: created},
							{ID: "2", Filename: "b.txt", Size: 5, ContentType: "text/plain", CreatedAt: created},
						},
						Total: 2,
					}, nil)
			},
			checkRes: func(t *testing.T, page map[string]any) {
				assert.Equal(t, 2, page["total"])
				items := page["items"].([]any)
				require.Len(t, items, 5)
				assert.Equal(t, []any{"content_type", "application/pdf", "text/plain"}, items[0])
				assert.Equal(t, []any{"filename", "a.pdf", "b.txt"}, items[2])
				assert.Equal(t, []any{"id", "1", "2"}, items[3])
			},
		},
		{
			name:   "pagination boundary - zero limit uses default",
			limit:  0,
			offset: -1,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", mock.Anything, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Document]{Items: []model.Document{}, Total: 0}, nil)
			},
			checkRes: func(t *testing.T, page map[string]any) {
				assert.Equal(t, []any{}, page["items"])
				assert.Equal(t, 10, page["limit"])
			},
		},
		{
			name:  "repository error",
			limit: 10,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMocks(f.repo)

			rez, err := f.svc.List(ctx, f.userless(), tt.limit, tt.offset)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				tt.checkRes(t, command(t, rez, "documentPage").(map[string]any))
			}
			f.assertExpectations(t)
		})
	}
}

func TestDocumentService_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(f *fixture)
		wantErr    error
		wantStatus int
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(f *fixture) {
				f.repo.On("FindByID", mock.Anything, "valid-id").
					Return(&model.Document{ID: "valid-id", Filename: "x.pdf", StoragePath: "documents/x.pdf", UploadedBy: "ana"}, nil)
				f.repo.On("Tags", mock.Anything, "valid-id").
					Return([]model.Tag{{ID: 1, Name: "invoice", Color: "#ff0000"}}, nil)
				f.store.On("PresignGet", mock.Anything, "documents/x.pdf", 15*time.Minute, "x.pdf").
					Return("http://minio/documents/x.pdf?sig", nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(f *fixture) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found",
			id:   "missing-id",
			setupMocks: func(f *fixture) {
				f.repo.On("FindByID", mock.Anything, "missing-id").Return(nil, repository.ErrNotFound)
			},
			wantStatus: 404,
		},
		{
			name: "generic repository error",
			id:   "error-id",
			setupMocks: func(f *fixture) {
				f.repo.On("FindByID", mock.Anything, "error-id").Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMocks(f)

			rez, err := f.svc.Get(ctx, f.userless(), tt.id)

			switch {
			case tt.wantStatus != 0:
				assertMalbona(t, err, tt.wantStatus)
			case errors.Is(tt.wantErr, ErrIDRequired):
				assert.ErrorIs(t, err, ErrIDRequired)
			case tt.wantErr != nil:
				assert.EqualError(t, err, tt.wantErr.Error())
			default:
				require.NoError(t, err)
				doc := command(t, rez, "document").(map[string]any)
				assert.Equal(t, "valid-id", doc["id"])
				assert.Equal(t, "ana", doc["uploaded_by"])
				assert.Equal(t, "http://minio/documents/x.pdf?sig", doc["url"])
				assert.Equal(t, []any{
					[]any{"color", "#ff0000"},
					[]any{"name", "invoice"},
				}, doc["tags"])
			}
			f.assertExpectations(t)
		})
	}
}

func TestDocumentService_Rename(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("FindByID", mock.Anything, "id1").Return(&model.Document{ID: "id1", Filename: "old.pdf"}, nil)
		f.repo.On("Rename", mock.Anything, "id1", "new.pdf").Return(nil)

		rez, err := f.svc.Rename(ctx, f.peto(map[string]any{"filename": "  new.pdf "}), "id1")
		require.NoError(t, err)

		assert.Equal(t, "filename changed from «old.pdf» to «new.pdf».", rez.Debug["differences"])
		assert.Equal(t, "new.pdf", command(t, rez, "document").(map[string]any)["filename"])
		require.Len(t, f.audit.entries, 1)
		assert.Equal(t, "Rename document", f.audit.entries[0].Operation)
		f.assertExpectations(t)
	})

	t.Run("missing filename", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Rename(ctx, f.peto(map[string]any{}), "id1")
		m := assertMalbona(t, err, 400)
		assert.Contains(t, m.Invalid, "filename")
		f.assertExpectations(t)
	})

	t.Run("invalid filename", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Rename(ctx, f.peto(map[string]any{"filename": "a/b.pdf"}), "id1")
		m := assertMalbona(t, err, 400)
		assert.Equal(t, "a file name must not contain a slash", m.Invalid["filename"])
	})

	t.Run("vanished while renaming", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("FindByID", mock.Anything, "id1").Return(&model.Document{ID: "id1", Filename: "old.pdf"}, nil)
		f.repo.On("Rename", mock.Anything, "id1", "new.pdf").Return(repository.ErrNotFound)

		_, err := f.svc.Rename(ctx, f.peto(map[string]any{"filename": "new.pdf"}), "id1")
		assertMalbona(t, err, 404)
		assert.Empty(t, f.audit.entries)
	})
}

func TestDocumentService_SetTags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.repo.On("FindByID", mock.Anything, "id1").Return(&model.Document{ID: "id1"}, nil)
	f.repo.On("Tags", mock.Anything, "id1").Return([]model.Tag{
		{ID: 1, Name: "invoice", Color: "#ff0000"},
		{ID: 2, Name: "old", Color: ""},
		{ID: 3, Name: "paid", Color: "#00ff00"},
	}, nil).Once()
	f.repo.On("SaveTag", mock.Anything, model.Tag{Name: "invoice", Color: "#0000ff"}).
		Return(&model.Tag{ID: 1, Name: "invoice", Color: "#0000ff"}, false, nil)
	f.repo.On("SaveTag", mock.Anything, model.Tag{Name: "urgent"}).
		Return(&model.Tag{ID: 4, Name: "urgent"}, true, nil)
	f.repo.On("AddTags", mock.Anything, "id1", []string{"urgent"}).Return(nil)
	f.repo.On("RemoveTags", mock.Anything, "id1", []string{"old"}).Return(nil)
	f.repo.On("Tags", mock.Anything, "id1").Return([]model.Tag{
		{ID: 1, Name: "invoice", Color: "#0000ff"},
		{ID: 3, Name: "paid", Color: "#00ff00"},
		{ID: 4, Name: "urgent"},
	}, nil).Once()

	rez, err := f.svc.SetTags(ctx, f.peto(map[string]any{"tags": []any{
		map[string]any{"name": "invoice", "color": "#0000ff"},
		map[string]any{"name": "paid", "color": "#00ff00"},
		map[string]any{"name": "urgent"},
		map[string]any{"name": "urgent"},
	}}), "id1")
	require.NoError(t, err)

	assert.Equal(t, []string{"urgent"}, rez.Debug["added"])
	assert.Equal(t, []string{"old"}, rez.Debug["removed"])
	assert.Equal(t, []string{"invoice"}, rez.Debug["recolored"])
	assert.Equal(t, map[string]any{"id": "id1", "names": []string{"invoice", "paid", "urgent"}},
		command(t, rez, "documentTags"))
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, "Tag document", f.audit.entries[0].Operation)
	f.assertExpectations(t)
}

func TestDocumentService_SetTags_Invalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SetTags(context.Background(), f.peto(map[string]any{"tags": []any{
		map[string]any{"name": "", "color": "red"},
	}}), "id1")
	m := assertMalbona(t, err, 400)
	assert.Contains(t, m.Invalid, "tags[0].name")
	assert.Contains(t, m.Invalid, "tags[0].color")
	f.assertExpectations(t)
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(f *fixture)
		wantErr    error
		wantStatus int
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(f *fixture) {
				f.repo.On("FindByID", mock.Anything, "valid-id").
					Return(&model.Document{ID: "valid-id", Filename: "a.pdf", StoragePath: "path/to/obj"}, nil)
				f.store.On("Delete", mock.Anything, "path/to/obj").Return(nil)
				f.repo.On("Delete", mock.Anything, "valid-id").Return(nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(f *fixture) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found",
			id:   "missing-id",
			setupMocks: func(f *fixture) {
				f.repo.On("FindByID", mock.Anything, "missing-id").Return(nil, repository.ErrNotFound)
			},
			wantStatus: 404,
		},
		{
			name: "storage delete error",
			id:   "storage-fail-id",
			setupMocks: func(f *fixture) {
				f.repo.On("FindByID", mock.Anything, "storage-fail-id").Return(&model.Document{ID: "id", StoragePath: "path"}, nil)
				f.store.On("Delete", mock.Anything, "path").Return(errors.New("storage fail"))
			},
			wantErr: errors.New("delete storage: storage fail"),
		},
		{
			name: "repository delete error",
			id:   "repo-fail-id",
			setupMocks: func(f *fixture) {
				f.repo.On("FindByID", mock.Anything, "repo-fail-id").Return(&model.Document{ID: "id", StoragePath: "path"}, nil)
				f.store.On("Delete", mock.Anything, "path").Return(nil)
				f.repo.On("Delete", mock.Anything, "repo-fail-id").Return(errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setupMocks(f)

			rez, err := f.svc.Delete(ctx, f.peto(nil), tt.id)

			switch {
			case tt.wantStatus != 0:
				assertMalbona(t, err, tt.wantStatus)
			case errors.Is(tt.wantErr, ErrIDRequired):
				assert.ErrorIs(t, err, ErrIDRequired)
			case tt.wantErr != nil:
				assert.ErrorContains(t, err, tt.wantErr.Error())
			default:
				require.NoError(t, err)
				assert.Equal(t, "valid-id", command(t, rez, "documentDeleted"))
				require.Len(t, f.audit.entries, 1)
				assert.Equal(t, "a.pdf", f.audit.entries[0].Payload["filename"])
			}
			f.assertExpectations(t)
		})
	}
}

func TestDocumentService_Download(t *testing.T) {
	f := newFixture(t)
	f.repo.On("FindByID", mock.Anything, "id1").Return(&model.Document{ID: "id1", StoragePath: "documents/a.txt"}, nil)
	f.store.On("Get", mock.Anything, "documents/a.txt").
		Return(io.NopCloser(strings.NewReader("hello")), storage.ObjectInfo{Key: "documents/a.txt"}, nil)

	dl, err := f.svc.Download(context.Background(), f.userless(), "id1")
	require.NoError(t, err)
	body, _ := io.ReadAll(dl.Body)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "id1", dl.Document.ID)

	f.repo.On("FindByID", mock.Anything, "id2").Return(&model.Document{ID: "id2", StoragePath: "documents/b.txt"}, nil)
	f.store.On("Get", mock.Anything, "documents/b.txt").Return(nil, storage.ObjectInfo{}, errors.New("no such key"))
	_, err = f.svc.Download(context.Background(), f.userless(), "id2")
	assert.ErrorContains(t, err, "get storage: no such key")
}

type outbox struct {
	sent []email.Args
}

func (o *outbox) Send(_ context.Context, a email.Args) error {
	o.sent = append(o.sent, a)
	return nil
}

func TestNotifyUploads(t *testing.T) {
	hub := event.NewHub()
	box := &outbox{}
	assert.ErrorIs(t, NotifyUploads(hub, box, "noreply@example.com", nil), email.ErrNoRecipients)

	require.NoError(t, NotifyUploads(hub, box, "noreply@example.com",
		[]email.Address{email.MustAddress("ops@example.com", "Ops")}))
	require.NoError(t, hub.Broadcast(context.Background(), DocumentUploaded{
		ID: "id1", Filename: "a.pdf", Size: 4, ContentType: "application/pdf", UploadedBy: "ana",
	}))

	require.Len(t, box.sent, 1)
	a := box.sent[0]
	assert.Equal(t, "New document: a.pdf", a.Subject)
	assert.Equal(t, "noreply@example.com", a.Sender)
	assert.Equal(t, []string{`"Ops" <ops@example.com>`}, a.Recipients)
	assert.Contains(t, a.Body, "a.pdf was uploaded")
	assert.Contains(t, a.HTML, "application/pdf")
}
