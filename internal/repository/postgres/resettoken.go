package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/models"
)

type ResetTokenRepo struct {
	DB DBTX
}

const saveResetToken = `-- name: SaveResetToken
INSERT INTO password_reset_tokens (id, user_id, token_hash, created_at, expires_at, used_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, token_hash, created_at, expires_at, used_at
`

func (r *ResetTokenRepo) Save(ctx context.Context, token models.PasswordResetToken) (models.PasswordResetToken, error) {
	rows, _ := r.DB.Query(ctx, saveResetToken, token.ID, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.UsedAt)
	saved, err := pgx.CollectOneRow(rows, rowToResetToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getResetToken = `-- name: GetResetToken
SELECT id, user_id, token_hash, created_at, expires_at, used_at
FROM password_reset_tokens
WHERE id = $1
`

func (r *ResetTokenRepo) Get(ctx context.Context, id uuid.UUID) (models.PasswordResetToken, error) {
	rows, _ := r.DB.Query(ctx, getResetToken, id)
	token, err := pgx.CollectOneRow(rows, rowToResetToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const markResetTokenUsed = `-- name: MarkResetTokenUsed
UPDATE password_reset_tokens
SET used_at = $2
WHERE id = $1 AND used_at IS NULL
RETURNING used_at
`

// MarkUsed sets usedAt exactly once
// Must not rewrite usedAt of already consumed tokens
func (r *ResetTokenRepo) MarkUsed(ctx context.Context, id uuid.UUID) (time.Time, error) {
	rows, _ := r.DB.Query(ctx, markResetTokenUsed, id, time.Now())
	usedAt, err := pgx.CollectOneRow(rows, pgx.RowTo[time.Time])

	switch {
	case err == nil:
		return usedAt, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Nothing updated: the token is missing or was consumed earlier
		token, getErr := r.Get(ctx, id)
		if getErr != nil {
			return usedAt, getErr
		}
		if token.UsedAt != nil {
			return *token.UsedAt, fmt.Errorf("repo error: %w", apperrors.ErrTokenUsed)
		}
		return usedAt, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotFound)
	default:
		return usedAt, fmt.Errorf("db error: %w", err)
	}
}

const deleteUnusedForUser = `-- name: DeleteUnusedResetTokensForUser
DELETE FROM password_reset_tokens
WHERE user_id = $1 AND used_at IS NULL
`

// DeleteUnusedForUser enforces the at most one usable reset token invariant:
// called right before inserting a fresh token for the user
func (r *ResetTokenRepo) DeleteUnusedForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteUnusedForUser, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToResetToken(row pgx.CollectableRow) (models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.UsedAt)
	return t, err
}
