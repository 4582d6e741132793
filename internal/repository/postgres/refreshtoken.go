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

type RefreshTokenRepo struct {
	DB DBTX
}

const saveRefreshToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, user_id, token_hash, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, token_hash, created_at, expires_at
`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveRefreshToken, token.ID, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getRefreshToken = `-- name: GetRefreshToken
SELECT id, user_id, token_hash, created_at, expires_at
FROM refresh_tokens
WHERE id = $1
`

func (r *RefreshTokenRepo) Get(ctx context.Context, id uuid.UUID) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, getRefreshToken, id)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const deleteRefreshToken = `-- name: DeleteRefreshToken
DELETE FROM refresh_tokens
WHERE id = $1
RETURNING id, user_id, token_hash, created_at, expires_at
`

// Delete removes the record and returns it
// The DELETE .. RETURNING form keeps token rotation atomic: of two
// concurrent rotations of the same token only one gets the row back
func (r *RefreshTokenRepo) Delete(ctx context.Context, id uuid.UUID) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, deleteRefreshToken, id)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const deleteAllForUser = `-- name: DeleteAllRefreshTokensForUser
DELETE FROM refresh_tokens
WHERE user_id = $1
`

func (r *RefreshTokenRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteAllForUser, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt)
	return t, err
}
