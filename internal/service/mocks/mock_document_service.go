package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"kerno/internal/service"
	"kerno/internal/state"
)

type MockDocumentService struct {
	mock.Mock
}

var _ service.DocumentService = (*MockDocumentService)(nil)

func rezulto(args mock.Arguments) (*state.Rezulto, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*state.Rezulto), args.Error(1)
}

func (m *MockDocumentService) Upload(ctx context.Context, p *service.Peto, in service.UploadInput) (*state.Rezulto, error) {
	return rezulto(m.Called(ctx, p, in))
}

func (m *MockDocumentService) List(ctx context.Context, p *service.Userless, limit, offset int) (*state.Rezulto, error) {
	return rezulto(m.Called(ctx, p, limit, offset))
}

func (m *MockDocumentService) Get(ctx context.Context, p *service.Userless, id string) (*state.Rezulto, error) {
	return rezulto(m.Called(ctx, p, id))
}

func (m *MockDocumentService) Rename(ctx context.Context, p *service.Peto, id string) (*state.Rezulto, error) {
	return rezulto(m.Called(ctx, p, id))
}

func (m *MockDocumentService) SetTags(ctx context.Context, p *service.Peto, id string) (*state.Rezulto, error) {
	return rezulto(m.Called(ctx, p, id))
}

func (m *MockDocumentService) Delete(ctx context.Context, p *service.Peto, id string) (*state.Rezulto, error) {
	return rezulto(m.Called(ctx, p, id))
}

func (m *MockDocumentService) Download(ctx context.Context, p *service.Userless, id string) (*service.Download, error) {
	args := m.Called(ctx, p, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}
