package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password is too weak")

	ErrTokenNotFound = errors.New("token is invalid or not found")
	ErrTokenExpired  = errors.New("token is expired")
	ErrTokenUsed     = errors.New("token is already used")

	ErrBookNotFound       = errors.New("book not found")
	ErrBookmarkNotFound   = errors.New("bookmark not found")
	ErrHighlightNotFound  = errors.New("highlight not found")
	ErrProgressNotFound   = errors.New("reading progress not found")
	ErrFileTooLarge       = errors.New("file is too large")
	ErrFileTypeNotAllowed = errors.New("file type is not allowed")
)
