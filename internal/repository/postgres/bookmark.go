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

type BookmarkRepo struct {
	DB DBTX
}

const createBookmark = `-- name: CreateBookmark
INSERT INTO bookmarks (id, user_id, book_id, page_number, cfi, title)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, book_id, page_number, cfi, title, created_at
`

func (r *BookmarkRepo) CreateBookmark(ctx context.Context, b models.Bookmark) (models.Bookmark, error) {
	rows, _ := r.DB.Query(ctx, createBookmark, b.ID, b.UserID, b.BookID, b.PageNumber, b.CFI, b.Title)
	saved, err := pgx.CollectOneRow(rows, rowToBookmark)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const listBookmarks = `-- name: ListBookmarks
SELECT id, user_id, book_id, page_number, cfi, title, created_at
FROM bookmarks
WHERE book_id = $1 AND user_id = $2
ORDER BY created_at
`

func (r *BookmarkRepo) ListBookmarks(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) ([]models.Bookmark, error) {
	rows, _ := r.DB.Query(ctx, listBookmarks, bookID, userID)
	bookmarks, err := pgx.CollectRows(rows, rowToBookmark)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return bookmarks, nil
}

const deleteBookmark = `-- name: DeleteBookmark
DELETE FROM bookmarks
WHERE id = $1 AND user_id = $2
RETURNING id
`

func (r *BookmarkRepo) DeleteBookmark(ctx context.Context, bookmarkID uuid.UUID, userID uuid.UUID) error {
	rows, _ := r.DB.Query(ctx, deleteBookmark, bookmarkID, userID)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrBookmarkNotFound
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func rowToBookmark(row pgx.CollectableRow) (models.Bookmark, error) {
	var b models.Bookmark
	err := row.Scan(&b.ID, &b.UserID, &b.BookID, &b.PageNumber, &b.CFI, &b.Title, &b.CreatedAt)
	return b, err
}
