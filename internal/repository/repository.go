// Package repository contains the data access layer: the per-request base
// every repository embeds and the interfaces the services depend on.
//
// A concrete repository composes by embedding:
//
//	type Repo struct {
//	    *repository.Base
//	    *postgres.DocumentPostgres
//	}
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kerno/internal/kerno"
)

// SessionFactoryUtility is the utility New reads when no factory is given.
const SessionFactoryUtility = "session factory"

// ErrNotFound is returned by finders when no row matches.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned when using a Base after Commit, Rollback or Close.
var ErrClosed = errors.New("repository session already closed")

// Querier runs SQL. *sql.DB, *sql.Tx and *Base implement it.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session is a unit of work. *sql.Tx implements it.
type Session interface {
	Querier
	Commit() error
	Rollback() error
}

// Committer is a request repository able to end its unit of work before the
// request does. Operations with effects outside the database commit first.
type Committer interface {
	Commit() error
}

var _ Committer = (*Base)(nil)

// SessionFactory opens a new session.
type SessionFactory func(ctx context.Context) (Session, error)

// TxFactory opens a database transaction per session.
func TxFactory(db *sql.DB) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		return db.BeginTx(ctx, nil)
	}
}

// Base is the repository of one request. It owns the session that every
// embedded repository queries through.
type Base struct {
	Kerno *kerno.Kerno

	sas  Session
	mu   sync.Mutex
	done bool
	log  *slog.Logger
}

// New opens a session with factory, or with the "session factory" utility
// of k when factory is nil.
func New(ctx context.Context, k *kerno.Kerno, factory SessionFactory) (*Base, error) {
	if factory == nil {
		f, err := kerno.Utility[SessionFactory](k, SessionFactoryUtility)
		if err != nil {
			return nil, err
		}
		factory = f
	}
	sas, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return &Base{Kerno: k, sas: sas, log: slog.With("component", "repository")}, nil
}

// Session returns the underlying session.
func (b *Base) Session() Session { return b.sas }

func (b *Base) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.sas.ExecContext(ctx, query, args...)
}

func (b *Base) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.sas.QueryContext(ctx, query, args...)
}

func (b *Base) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return b.sas.QueryRowContext(ctx, query, args...)
}

// Commit makes the work of the session permanent.
func (b *Base) Commit() error {
	return b.finish(b.sas.Commit)
}

// Rollback discards the work of the session.
func (b *Base) Rollback() error {
	return b.finish(b.sas.Rollback)
}

// Close commits when err is nil and rolls back otherwise. Closing twice is a
// no-op, so deferred calls are safe after an explicit Commit.
func (b *Base) Close(err error) error {
	b.mu.Lock()
	done := b.done
	b.mu.Unlock()
	if done {
		return nil
	}
	if err != nil {
		b.log.Debug("rolling back", "error", err)
		return b.Rollback()
	}
	return b.Commit()
}

func (b *Base) finish(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return ErrClosed
	}
	b.done = true
	return fn()
}

func notFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

// GetOrAdd returns what find returns. When find reports ErrNotFound (or
// sql.ErrNoRows) the result of add is returned instead, with isNew true.
func GetOrAdd[T any](ctx context.Context, find, add func(context.Context) (T, error)) (obj T, isNew bool, err error) {
	obj, err = find(ctx)
	if err == nil {
		return obj, false, nil
	}
	if !notFound(err) {
		return obj, false, err
	}
	obj, err = add(ctx)
	return obj, err == nil, err
}

// UpdateOrAdd updates what find returns, or adds a new one when nothing is
// found. isNew tells which happened.
func UpdateOrAdd[T any](ctx context.Context, find func(context.Context) (T, error), update func(context.Context, T) (T, error), add func(context.Context) (T, error)) (obj T, isNew bool, err error) {
	obj, err = find(ctx)
	if err == nil {
		obj, err = update(ctx, obj)
		return obj, false, err
	}
	if !notFound(err) {
		return obj, false, err
	}
	obj, err = add(ctx)
	return obj, err == nil, err
}
