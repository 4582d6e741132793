package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/models"
)

type BookRepo struct {
	DB DBTX
}

const createBook = `-- name: CreateBook
INSERT INTO books (id, user_id, title, author, cover_url, file_key, file_type, file_size, total_pages)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, user_id, title, author, cover_url, file_key, file_type, file_size, total_pages, created_at
`

func (r *BookRepo) CreateBook(ctx context.Context, book models.Book) (models.Book, error) {
	rows, _ := r.DB.Query(ctx, createBook,
		book.ID, book.UserID, book.Title, book.Author, book.CoverURL,
		book.FileKey, book.FileType, book.FileSize, book.TotalPages,
	)
	saved, err := pgx.CollectOneRow(rows, rowToBook)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getBook = `-- name: GetBook
SELECT id, user_id, title, author, cover_url, file_key, file_type, file_size, total_pages, created_at
FROM books
WHERE id = $1 AND user_id = $2
`

func (r *BookRepo) GetBook(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) (models.Book, error) {
	rows, _ := r.DB.Query(ctx, getBook, bookID, userID)
	book, err := pgx.CollectOneRow(rows, rowToBook)

	switch {
	case err == nil:
		return book, nil
	case errors.Is(err, pgx.ErrNoRows):
		return book, apperrors.ErrBookNotFound
	default:
		return book, fmt.Errorf("db error: %w", err)
	}
}

const listBooks = `-- name: ListBooks
SELECT id, user_id, title, author, cover_url, file_key, file_type, file_size, total_pages, created_at
FROM books
WHERE user_id = $1
ORDER BY created_at DESC
`

func (r *BookRepo) ListBooks(ctx context.Context, userID uuid.UUID) ([]models.Book, error) {
	rows, _ := r.DB.Query(ctx, listBooks, userID)
	books, err := pgx.CollectRows(rows, rowToBook)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return books, nil
}

const deleteBook = `-- name: DeleteBook
DELETE FROM books
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, title, author, cover_url, file_key, file_type, file_size, total_pages, created_at
`

func (r *BookRepo) DeleteBook(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) (models.Book, error) {
	rows, _ := r.DB.Query(ctx, deleteBook, bookID, userID)
	book, err := pgx.CollectOneRow(rows, rowToBook)

	switch {
	case err == nil:
		return book, nil
	case errors.Is(err, pgx.ErrNoRows):
		return book, apperrors.ErrBookNotFound
	default:
		return book, fmt.Errorf("db error: %w", err)
	}
}

func rowToBook(row pgx.CollectableRow) (models.Book, error) {
	var b models.Book
	err := row.Scan(&b.ID, &b.UserID, &b.Title, &b.Author, &b.CoverURL, &b.FileKey, &b.FileType, &b.FileSize, &b.TotalPages, &b.CreatedAt)
	return b, err
}
