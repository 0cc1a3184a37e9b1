package postgres

import (
	"context"

	"kerno/internal/kerno"
	"kerno/internal/repository"
)

// Repo is the repository of one request: the session plus every
// PostgreSQL repository querying through it.
type Repo struct {
	*repository.Base
	*DocumentPostgres
}

// NewRepo opens a session and builds a Repo on it.
func NewRepo(ctx context.Context, k *kerno.Kerno) (*Repo, error) {
	base, err := repository.New(ctx, k, nil)
	if err != nil {
		return nil, err
	}
	return &Repo{Base: base, DocumentPostgres: NewDocumentPostgres(base)}, nil
}

// Factory adapts NewRepo to kerno.RepositoryFactory.
func Factory(ctx context.Context, k *kerno.Kerno) (any, error) {
	return NewRepo(ctx, k)
}
