package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BookTypePDF  = "pdf"
	BookTypeEPUB = "epub"
)

type Book struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Title      string
	Author     string
	CoverURL   string
	FileKey    string
	FileType   string
	FileSize   int64
	TotalPages int
	CreatedAt  time.Time
}

// ReadingProgress is unique per (user, book) pair
type ReadingProgress struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	BookID          uuid.UUID
	CurrentPage     int
	CurrentCFI      string // EPUB location
	ProgressPercent float64
	LastReadAt      time.Time
}

type Bookmark struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	BookID     uuid.UUID
	PageNumber int
	CFI        string
	Title      string
	CreatedAt  time.Time
}

type Highlight struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	BookID     uuid.UUID
	Text       string
	PageNumber int
	CFI        string
	Color      string
	Note       string
	CreatedAt  time.Time
}
