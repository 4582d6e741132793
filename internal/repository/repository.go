package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/diread/diread/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, email string, hashedPassword string, name string) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Update profile fields. Empty values keep the stored ones
	UpdateUser(ctx context.Context, userID uuid.UUID, name string, avatarURL string) (models.User, error)

	// Replace the stored password digest
	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error
}

// RefreshToken repository interface
// Rows hold bcrypt digests only, the token secret never reaches the db
type RefreshTokenRepo interface {
	// Save token record
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Get token record by it's id
	// If not found must return apperrors.ErrTokenNotFound
	Get(ctx context.Context, id uuid.UUID) (models.RefreshToken, error)

	// Delete token record by id
	// Exactly one of two concurrent deletes wins, the loser gets
	// apperrors.ErrTokenNotFound
	Delete(ctx context.Context, id uuid.UUID) (models.RefreshToken, error)

	// Delete all token records of the user, returns number of deleted rows
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// PasswordResetToken repository interface
type ResetTokenRepo interface {
	// Save token record
	Save(ctx context.Context, token models.PasswordResetToken) (models.PasswordResetToken, error)

	// Get token record by it's id
	// If not found must return apperrors.ErrTokenNotFound
	Get(ctx context.Context, id uuid.UUID) (models.PasswordResetToken, error)

	// Mark token as used
	// If the token is already used, must not overwrite the existing usedAt
	// and must return apperrors.ErrTokenUsed
	MarkUsed(ctx context.Context, id uuid.UUID) (usedAt time.Time, err error)

	// Delete the user's not yet used token records
	DeleteUnusedForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type BookRepo interface {
	CreateBook(ctx context.Context, book models.Book) (models.Book, error)
	GetBook(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) (models.Book, error)
	ListBooks(ctx context.Context, userID uuid.UUID) ([]models.Book, error)
	DeleteBook(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) (models.Book, error)
}

type ProgressRepo interface {
	// Insert or update progress for the (user, book) pair
	UpsertProgress(ctx context.Context, p models.ReadingProgress) (models.ReadingProgress, error)
	GetProgress(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) (models.ReadingProgress, error)
}

type BookmarkRepo interface {
	CreateBookmark(ctx context.Context, b models.Bookmark) (models.Bookmark, error)
	ListBookmarks(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) ([]models.Bookmark, error)
	DeleteBookmark(ctx context.Context, bookmarkID uuid.UUID, userID uuid.UUID) error
}

type HighlightRepo interface {
	CreateHighlight(ctx context.Context, h models.Highlight) (models.Highlight, error)
	ListHighlights(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) ([]models.Highlight, error)
	UpdateHighlight(ctx context.Context, highlightID uuid.UUID, userID uuid.UUID, color string, note string) (models.Highlight, error)
	DeleteHighlight(ctx context.Context, highlightID uuid.UUID, userID uuid.UUID) error
}

// Storage aggregates all repositories over a single connection or transaction
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Reset() ResetTokenRepo
	Book() BookRepo
	Progress() ProgressRepo
	Bookmark() BookmarkRepo
	Highlight() HighlightRepo

	// InTx runs fn against a Storage bound to one db transaction
	// Rolled back if fn returns an error, committed otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
