package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/models"
	"github.com/diread/diread/internal/repository"
	"github.com/diread/diread/internal/service/auth/opaquetoken"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Kind claim value of access tokens
// Parsing rejects any signed token that carries a different kind
const accessTokenKind = "access"

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Kind string `json:"kind"`
}

// Token manager config with sensible defaults
type Config struct {
	// Secret key to sign access token
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	// Secret key to sign access token
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	// Hasher for refresh token secrets
	hasher opaquetoken.Hasher

	// Storage to keep refresh token records in
	storage repository.Storage
}

func New(cfg Config, hasher opaquetoken.Hasher, storage repository.Storage) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if alg == nil {
		return nil, fmt.Errorf("unknown signing method: %q", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		hasher:     hasher,
		storage:    storage,
	}, nil
}

// GeneratePair issues a signed access token and a fresh refresh token
// Other refresh tokens of the user stay untouched: several sessions may
// coexist and each holds it's own token
func (m *TokenManager) GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	var pair models.TokenPair
	now := time.Now().Truncate(time.Second)
	accessExpiresAt := now.Add(m.accessTTL)
	refreshExpiresAt := now.Add(m.refreshTTL)

	// Generate JWT access token encoded as string
	accessToken := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   user.ID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
			},
			Kind: accessTokenKind,
		},
	)
	access, err := accessToken.SignedString([]byte(m.key))
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	refresh, err := opaquetoken.Issue(m.hasher)
	if err != nil {
		return pair, fmt.Errorf("error while issuing refresh token. Err: %w", err)
	}

	_, err = m.storage.Refresh().Save(ctx, models.RefreshToken{
		ID:        refresh.ID,
		UserID:    user.ID,
		TokenHash: refresh.Digest,
		CreatedAt: now,
		ExpiresAt: refreshExpiresAt,
	})
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh.Plaintext, ExpiresAt: refreshExpiresAt},
	}, nil
}

// UseRefresh validates a presented refresh token and consumes it
// The returned record identifies the owning user. A second call with the
// same token fails with apperrors.ErrTokenNotFound
func (m *TokenManager) UseRefresh(ctx context.Context, refresh string) (models.RefreshToken, error) {
	var token models.RefreshToken

	id, secret, err := opaquetoken.Parse(refresh)
	if err != nil {
		return token, err
	}

	token, err = m.storage.Refresh().Get(ctx, id)
	if err != nil {
		return token, err
	}

	if err := m.hasher.Compare(token.TokenHash, secret); err != nil {
		return token, fmt.Errorf("refresh token digest mismatch: %w", apperrors.ErrTokenNotFound)
	}

	if token.ExpiresAt.Before(time.Now()) {
		return token, fmt.Errorf("refresh token: %w", apperrors.ErrTokenExpired)
	}

	// Delete returns the row exactly once, so of two concurrent rotations
	// of the same token only one proceeds
	token, err = m.storage.Refresh().Delete(ctx, token.ID)
	if err != nil {
		return token, err
	}

	return token, nil
}

// RevokeRefresh deletes the matching refresh token record
// Revoking a token that not exists is not an error: logout stays idempotent
func (m *TokenManager) RevokeRefresh(ctx context.Context, refresh string) error {
	id, secret, err := opaquetoken.Parse(refresh)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenNotFound) {
			return nil
		}
		return err
	}

	token, err := m.storage.Refresh().Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenNotFound) {
			return nil
		}
		return err
	}

	if err := m.hasher.Compare(token.TokenHash, secret); err != nil {
		return nil
	}

	_, err = m.storage.Refresh().Delete(ctx, token.ID)
	if err != nil && !errors.Is(err, apperrors.ErrTokenNotFound) {
		return err
	}
	return nil
}

// RevokeAllRefresh drops every refresh token of the user, the blunt
// "log out everywhere" operation
func (m *TokenManager) RevokeAllRefresh(ctx context.Context, userID uuid.UUID) error {
	_, err := m.storage.Refresh().DeleteAllForUser(ctx, userID)
	return err
}

// ParseAccess parses and validates an access token without any storage
// lookup. Revoking access tokens before expiry is not possible, the short
// TTL is the mitigation
func (m *TokenManager) ParseAccess(ctx context.Context, access string) (uuid.UUID, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(m.key), nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, fmt.Errorf("access token: %w", apperrors.ErrTokenExpired)
	case err != nil:
		return uuid.Nil, fmt.Errorf("error while parsing or validating token: %w", apperrors.ErrTokenNotFound)
	}

	if claims.Kind != accessTokenKind {
		return uuid.Nil, fmt.Errorf("token kind %q is not usable for access: %w", claims.Kind, apperrors.ErrTokenNotFound)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject claim: %w", apperrors.ErrTokenNotFound)
	}

	return userID, nil
}
