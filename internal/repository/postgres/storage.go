package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/diread/diread/internal/repository"
)

// DBTX is satisfied by pgxpool.Pool and pgx.Tx
// so every repo works the same against a pool or inside a transaction
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{DB: s.db}
}

func (s *Storage) Refresh() repository.RefreshTokenRepo {
	return &RefreshTokenRepo{DB: s.db}
}

func (s *Storage) Reset() repository.ResetTokenRepo {
	return &ResetTokenRepo{DB: s.db}
}

func (s *Storage) Book() repository.BookRepo {
	return &BookRepo{DB: s.db}
}

func (s *Storage) Progress() repository.ProgressRepo {
	return &ProgressRepo{DB: s.db}
}

func (s *Storage) Bookmark() repository.BookmarkRepo {
	return &BookmarkRepo{DB: s.db}
}

func (s *Storage) Highlight() repository.HighlightRepo {
	return &HighlightRepo{DB: s.db}
}

func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	err = fn(NewStorage(tx))

	return err
}
