package book

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/filestore"
	"github.com/diread/diread/internal/logger"
	"github.com/diread/diread/internal/models"
	"github.com/diread/diread/internal/repository"
)

const defaultMaxFileSize = 100 << 20 // 100MB

type Config struct {
	// Upload limits
	// If not set than defaults are used
	MaxFileSize  int64
	AllowedTypes []string
}

type BookService struct {
	maxFileSize  int64
	allowedTypes []string

	storage repository.Storage
	files   filestore.Store
	logger  logger.Logger
}

func NewService(cfg Config, storage repository.Storage, files filestore.Store, l logger.Logger) *BookService {
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = []string{models.BookTypePDF, models.BookTypeEPUB}
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &BookService{
		maxFileSize:  cfg.MaxFileSize,
		allowedTypes: cfg.AllowedTypes,
		storage:      storage,
		files:        files,
		logger:       l,
	}
}

type UploadParams struct {
	Title      string
	Author     string
	FileName   string
	FileSize   int64
	TotalPages int
	Content    io.Reader
}

// Upload stores the file first and inserts the metadata row after:
// if the insert fails the orphaned file is removed again
func (s *BookService) Upload(ctx context.Context, userID uuid.UUID, p UploadParams) (models.Book, error) {
	var book models.Book

	fileType := strings.TrimPrefix(strings.ToLower(pathExt(p.FileName)), ".")
	if !slices.Contains(s.allowedTypes, fileType) {
		return book, apperrors.ErrFileTypeNotAllowed
	}

	if p.FileSize > s.maxFileSize {
		return book, apperrors.ErrFileTooLarge
	}

	key := filestore.BookKey(userID, fileType)
	contentType := "application/pdf"
	if fileType == models.BookTypeEPUB {
		contentType = "application/epub+zip"
	}

	if err := s.files.Put(ctx, key, io.LimitReader(p.Content, s.maxFileSize), p.FileSize, contentType); err != nil {
		return book, fmt.Errorf("error while storing book file. Err: %w", err)
	}

	book, err := s.storage.Book().CreateBook(ctx, models.Book{
		ID:         uuid.New(),
		UserID:     userID,
		Title:      p.Title,
		Author:     p.Author,
		FileKey:    key,
		FileType:   fileType,
		FileSize:   p.FileSize,
		TotalPages: p.TotalPages,
	})
	if err != nil {
		if delErr := s.files.Delete(ctx, key); delErr != nil {
			s.logger.Error("orphaned book file left behind", "key", key, "error", delErr.Error())
		}
		return book, err
	}

	return book, nil
}

func (s *BookService) Get(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) (models.Book, error) {
	return s.storage.Book().GetBook(ctx, bookID, userID)
}

func (s *BookService) List(ctx context.Context, userID uuid.UUID) ([]models.Book, error) {
	return s.storage.Book().ListBooks(ctx, userID)
}

// Download returns the book row and it's file content
func (s *BookService) Download(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) (models.Book, io.ReadCloser, error) {
	book, err := s.storage.Book().GetBook(ctx, bookID, userID)
	if err != nil {
		return book, nil, err
	}

	content, err := s.files.Get(ctx, book.FileKey)
	if err != nil {
		return book, nil, fmt.Errorf("error while reading book file. Err: %w", err)
	}

	return book, content, nil
}

// Delete removes the row and then the file
// A file that can not be removed is logged, the row deletion stands
func (s *BookService) Delete(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) error {
	book, err := s.storage.Book().DeleteBook(ctx, bookID, userID)
	if err != nil {
		return err
	}

	if err := s.files.Delete(ctx, book.FileKey); err != nil {
		s.logger.Error("book file could not be removed", "key", book.FileKey, "error", err.Error())
	}

	return nil
}

// SaveProgress upserts reading position for the (user, book) pair
func (s *BookService) SaveProgress(ctx context.Context, userID uuid.UUID, bookID uuid.UUID, currentPage int, currentCFI string, percent float64) (models.ReadingProgress, error) {
	var progress models.ReadingProgress

	// Book must exist and belong to the user
	if _, err := s.storage.Book().GetBook(ctx, bookID, userID); err != nil {
		return progress, err
	}

	return s.storage.Progress().UpsertProgress(ctx, models.ReadingProgress{
		ID:              uuid.New(),
		UserID:          userID,
		BookID:          bookID,
		CurrentPage:     currentPage,
		CurrentCFI:      currentCFI,
		ProgressPercent: percent,
		LastReadAt:      time.Now(),
	})
}

func (s *BookService) GetProgress(ctx context.Context, userID uuid.UUID, bookID uuid.UUID) (models.ReadingProgress, error) {
	return s.storage.Progress().GetProgress(ctx, bookID, userID)
}

func (s *BookService) CreateBookmark(ctx context.Context, userID uuid.UUID, bookID uuid.UUID, pageNumber int, cfi string, title string) (models.Bookmark, error) {
	var bookmark models.Bookmark

	if _, err := s.storage.Book().GetBook(ctx, bookID, userID); err != nil {
		return bookmark, err
	}

	return s.storage.Bookmark().CreateBookmark(ctx, models.Bookmark{
		ID:         uuid.New(),
		UserID:     userID,
		BookID:     bookID,
		PageNumber: pageNumber,
		CFI:        cfi,
		Title:      title,
	})
}

func (s *BookService) ListBookmarks(ctx context.Context, userID uuid.UUID, bookID uuid.UUID) ([]models.Bookmark, error) {
	if _, err := s.storage.Book().GetBook(ctx, bookID, userID); err != nil {
		return nil, err
	}
	return s.storage.Bookmark().ListBookmarks(ctx, bookID, userID)
}

func (s *BookService) DeleteBookmark(ctx context.Context, userID uuid.UUID, bookmarkID uuid.UUID) error {
	return s.storage.Bookmark().DeleteBookmark(ctx, bookmarkID, userID)
}

func (s *BookService) CreateHighlight(ctx context.Context, userID uuid.UUID, bookID uuid.UUID, text string, pageNumber int, cfi string, color string, note string) (models.Highlight, error) {
	var highlight models.Highlight

	if _, err := s.storage.Book().GetBook(ctx, bookID, userID); err != nil {
		return highlight, err
	}

	if color == "" {
		color = "yellow"
	}

	return s.storage.Highlight().CreateHighlight(ctx, models.Highlight{
		ID:         uuid.New(),
		UserID:     userID,
		BookID:     bookID,
		Text:       text,
		PageNumber: pageNumber,
		CFI:        cfi,
		Color:      color,
		Note:       note,
	})
}

func (s *BookService) ListHighlights(ctx context.Context, userID uuid.UUID, bookID uuid.UUID) ([]models.Highlight, error) {
	if _, err := s.storage.Book().GetBook(ctx, bookID, userID); err != nil {
		return nil, err
	}
	return s.storage.Highlight().ListHighlights(ctx, bookID, userID)
}

func (s *BookService) UpdateHighlight(ctx context.Context, userID uuid.UUID, highlightID uuid.UUID, color string, note string) (models.Highlight, error) {
	return s.storage.Highlight().UpdateHighlight(ctx, highlightID, userID, color, note)
}

func (s *BookService) DeleteHighlight(ctx context.Context, userID uuid.UUID, highlightID uuid.UUID) error {
	return s.storage.Highlight().DeleteHighlight(ctx, highlightID, userID)
}

func pathExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}
