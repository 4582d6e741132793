package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken as stored: only the bcrypt digest of the token secret,
// never the secret itself
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PasswordResetToken is single use: UsedAt is set exactly once
type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time // nil if token not used
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager on register, login and refresh
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
