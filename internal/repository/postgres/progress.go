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

type ProgressRepo struct {
	DB DBTX
}

const upsertProgress = `-- name: UpsertProgress
INSERT INTO reading_progress (id, user_id, book_id, current_page, current_cfi, progress_percent, last_read_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (user_id, book_id) DO UPDATE
SET current_page     = EXCLUDED.current_page,
    current_cfi      = EXCLUDED.current_cfi,
    progress_percent = EXCLUDED.progress_percent,
    last_read_at     = now()
RETURNING id, user_id, book_id, current_page, current_cfi, progress_percent, last_read_at
`

func (r *ProgressRepo) UpsertProgress(ctx context.Context, p models.ReadingProgress) (models.ReadingProgress, error) {
	rows, _ := r.DB.Query(ctx, upsertProgress, p.ID, p.UserID, p.BookID, p.CurrentPage, p.CurrentCFI, p.ProgressPercent)
	saved, err := pgx.CollectOneRow(rows, rowToProgress)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getProgress = `-- name: GetProgress
SELECT id, user_id, book_id, current_page, current_cfi, progress_percent, last_read_at
FROM reading_progress
WHERE book_id = $1 AND user_id = $2
`

func (r *ProgressRepo) GetProgress(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) (models.ReadingProgress, error) {
	rows, _ := r.DB.Query(ctx, getProgress, bookID, userID)
	p, err := pgx.CollectOneRow(rows, rowToProgress)

	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, pgx.ErrNoRows):
		return p, apperrors.ErrProgressNotFound
	default:
		return p, fmt.Errorf("db error: %w", err)
	}
}

func rowToProgress(row pgx.CollectableRow) (models.ReadingProgress, error) {
	var p models.ReadingProgress
	err := row.Scan(&p.ID, &p.UserID, &p.BookID, &p.CurrentPage, &p.CurrentCFI, &p.ProgressPercent, &p.LastReadAt)
	return p, err
}
