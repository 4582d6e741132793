package resetmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/models"
	"github.com/diread/diread/internal/repository"
	"github.com/diread/diread/internal/service/auth/opaquetoken"
)

const defaultResetTokenTTL = 30 * time.Minute

// Reset manager config
type Config struct {
	// Reset token lifetime, much shorter than refresh token's
	// If not set than default is used
	ResetTTL time.Duration
}

// ResetManager drives the password reset token lifecycle:
// issued -> active -> consumed, expired or superseded by a newer issue
type ResetManager struct {
	ttl     time.Duration
	hasher  opaquetoken.Hasher
	storage repository.Storage
}

func New(cfg Config, hasher opaquetoken.Hasher, storage repository.Storage) *ResetManager {
	if cfg.ResetTTL == 0 {
		cfg.ResetTTL = defaultResetTokenTTL
	}

	return &ResetManager{
		ttl:     cfg.ResetTTL,
		hasher:  hasher,
		storage: storage,
	}
}

// Request issues a fresh reset token for the user
// All unused tokens of the user are dropped first, so at most one usable
// reset token per user exists at any time
func (m *ResetManager) Request(ctx context.Context, userID uuid.UUID) (models.IssuedToken, error) {
	var issued models.IssuedToken

	token, err := opaquetoken.Issue(m.hasher)
	if err != nil {
		return issued, fmt.Errorf("error while issuing reset token. Err: %w", err)
	}

	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(m.ttl)

	err = m.storage.InTx(ctx, func(s repository.Storage) error {
		if _, err := s.Reset().DeleteUnusedForUser(ctx, userID); err != nil {
			return err
		}

		_, err := s.Reset().Save(ctx, models.PasswordResetToken{
			ID:        token.ID,
			UserID:    userID,
			TokenHash: token.Digest,
			CreatedAt: now,
			ExpiresAt: expiresAt,
		})
		return err
	})
	if err != nil {
		return issued, fmt.Errorf("error while saving reset token. Err: %w", err)
	}

	return models.IssuedToken{Value: token.Plaintext, ExpiresAt: expiresAt}, nil
}

// Verify checks a presented reset token without consuming it
// Consumed tokens fail with apperrors.ErrTokenUsed, expired ones with
// apperrors.ErrTokenExpired, everything else with apperrors.ErrTokenNotFound
func (m *ResetManager) Verify(ctx context.Context, plaintext string) (models.PasswordResetToken, error) {
	var token models.PasswordResetToken

	id, secret, err := opaquetoken.Parse(plaintext)
	if err != nil {
		return token, err
	}

	token, err = m.storage.Reset().Get(ctx, id)
	if err != nil {
		return token, err
	}

	if err := m.hasher.Compare(token.TokenHash, secret); err != nil {
		return token, fmt.Errorf("reset token digest mismatch: %w", apperrors.ErrTokenNotFound)
	}

	if token.UsedAt != nil {
		return token, fmt.Errorf("reset token: %w", apperrors.ErrTokenUsed)
	}

	if token.ExpiresAt.Before(time.Now()) {
		return token, fmt.Errorf("reset token: %w", apperrors.ErrTokenExpired)
	}

	return token, nil
}

// Consume verifies the token and marks it used
// The mark is written exactly once, a second consume fails with
// apperrors.ErrTokenUsed even under concurrent calls
func (m *ResetManager) Consume(ctx context.Context, plaintext string) (models.PasswordResetToken, error) {
	token, err := m.Verify(ctx, plaintext)
	if err != nil {
		return token, err
	}

	usedAt, err := m.storage.Reset().MarkUsed(ctx, token.ID)
	if err != nil {
		return token, err
	}
	token.UsedAt = &usedAt

	return token, nil
}
