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

type HighlightRepo struct {
	DB DBTX
}

const createHighlight = `-- name: CreateHighlight
INSERT INTO highlights (id, user_id, book_id, text, page_number, cfi, color, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, user_id, book_id, text, page_number, cfi, color, note, created_at
`

func (r *HighlightRepo) CreateHighlight(ctx context.Context, h models.Highlight) (models.Highlight, error) {
	rows, _ := r.DB.Query(ctx, createHighlight, h.ID, h.UserID, h.BookID, h.Text, h.PageNumber, h.CFI, h.Color, h.Note)
	saved, err := pgx.CollectOneRow(rows, rowToHighlight)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const listHighlights = `-- name: ListHighlights
SELECT id, user_id, book_id, text, page_number, cfi, color, note, created_at
FROM highlights
WHERE book_id = $1 AND user_id = $2
ORDER BY created_at
`

func (r *HighlightRepo) ListHighlights(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) ([]models.Highlight, error) {
	rows, _ := r.DB.Query(ctx, listHighlights, bookID, userID)
	highlights, err := pgx.CollectRows(rows, rowToHighlight)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return highlights, nil
}

const updateHighlight = `-- name: UpdateHighlight
UPDATE highlights
SET color = COALESCE(NULLIF($3, ''), color),
    note  = COALESCE(NULLIF($4, ''), note)
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, book_id, text, page_number, cfi, color, note, created_at
`

func (r *HighlightRepo) UpdateHighlight(ctx context.Context, highlightID uuid.UUID, userID uuid.UUID, color string, note string) (models.Highlight, error) {
	rows, _ := r.DB.Query(ctx, updateHighlight, highlightID, userID, color, note)
	h, err := pgx.CollectOneRow(rows, rowToHighlight)

	switch {
	case err == nil:
		return h, nil
	case errors.Is(err, pgx.ErrNoRows):
		return h, apperrors.ErrHighlightNotFound
	default:
		return h, fmt.Errorf("db error: %w", err)
	}
}

const deleteHighlight = `-- name: DeleteHighlight
DELETE FROM highlights
WHERE id = $1 AND user_id = $2
RETURNING id
`

func (r *HighlightRepo) DeleteHighlight(ctx context.Context, highlightID uuid.UUID, userID uuid.UUID) error {
	rows, _ := r.DB.Query(ctx, deleteHighlight, highlightID, userID)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrHighlightNotFound
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func rowToHighlight(row pgx.CollectableRow) (models.Highlight, error) {
	var h models.Highlight
	err := row.Scan(&h.ID, &h.UserID, &h.BookID, &h.Text, &h.PageNumber, &h.CFI, &h.Color, &h.Note, &h.CreatedAt)
	return h, err
}
