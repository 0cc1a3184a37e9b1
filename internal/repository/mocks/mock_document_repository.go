package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"kerno/internal/model"
	"kerno/internal/repository"
)

type MockDocumentRepository struct {
	mock.Mock
}

var _ repository.DocumentRepository = (*MockDocumentRepository)(nil)

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) Rename(ctx context.Context, id, filename string) error {
	args := m.Called(ctx, id, filename)
	return args.Error(0)
}

func (m *MockDocumentRepository) Tags(ctx context.Context, id string) ([]model.Tag, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Tag), args.Error(1)
}

func (m *MockDocumentRepository) SaveTag(ctx context.Context, tag model.Tag) (*model.Tag, bool, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Tag), args.Bool(1), args.Error(2)
}

func (m *MockDocumentRepository) AddTags(ctx context.Context, id string, names ...string) error {
	args := m.Called(ctx, id, names)
	return args.Error(0)
}

func (m *MockDocumentRepository) RemoveTags(ctx context.Context, id string, names ...string) error {
	args := m.Called(ctx, id, names)
	return args.Error(0)
}
