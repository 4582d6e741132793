package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/diread/diread/internal/apperrors"
	"github.com/diread/diread/internal/handlers/render"
	"github.com/diread/diread/internal/handlers/userctx"
	"github.com/diread/diread/internal/models"
	"github.com/diread/diread/internal/service/book"
)

type bookService interface {
	Upload(ctx context.Context, userID uuid.UUID, p book.UploadParams) (models.Book, error)
	Get(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) (models.Book, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Book, error)
	Download(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) (models.Book, io.ReadCloser, error)
	Delete(ctx context.Context, bookID uuid.UUID, userID uuid.UUID) error

	SaveProgress(ctx context.Context, userID uuid.UUID, bookID uuid.UUID, currentPage int, currentCFI string, percent float64) (models.ReadingProgress, error)
	GetProgress(ctx context.Context, userID uuid.UUID, bookID uuid.UUID) (models.ReadingProgress, error)

	CreateBookmark(ctx context.Context, userID uuid.UUID, bookID uuid.UUID, pageNumber int, cfi string, title string) (models.Bookmark, error)
	ListBookmarks(ctx context.Context, userID uuid.UUID, bookID uuid.UUID) ([]models.Bookmark, error)
	DeleteBookmark(ctx context.Context, userID uuid.UUID, bookmarkID uuid.UUID) error

	CreateHighlight(ctx context.Context, userID uuid.UUID, bookID uuid.UUID, text string, pageNumber int, cfi string, color string, note string) (models.Highlight, error)
	ListHighlights(ctx context.Context, userID uuid.UUID, bookID uuid.UUID) ([]models.Highlight, error)
	UpdateHighlight(ctx context.Context, userID uuid.UUID, highlightID uuid.UUID, color string, note string) (models.Highlight, error)
	DeleteHighlight(ctx context.Context, userID uuid.UUID, highlightID uuid.UUID) error
}

type BookHandler struct {
	bookService bookService
}

func NewBook(bs bookService) *BookHandler {
	return &BookHandler{bookService: bs}
}

func (h *BookHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /books", h.upload)
	mux.HandleFunc("GET /books", h.list)
	mux.HandleFunc("GET /books/{id}", h.get)
	mux.HandleFunc("GET /books/{id}/download", h.download)
	mux.HandleFunc("DELETE /books/{id}", h.delete)

	mux.HandleFunc("GET /books/{id}/progress", h.getProgress)
	mux.HandleFunc("PUT /books/{id}/progress", h.saveProgress)

	mux.HandleFunc("GET /books/{id}/bookmarks", h.listBookmarks)
	mux.HandleFunc("POST /books/{id}/bookmarks", h.createBookmark)
	mux.HandleFunc("DELETE /bookmarks/{id}", h.deleteBookmark)

	mux.HandleFunc("GET /books/{id}/highlights", h.listHighlights)
	mux.HandleFunc("POST /books/{id}/highlights", h.createHighlight)
	mux.HandleFunc("PUT /highlights/{id}", h.updateHighlight)
	mux.HandleFunc("DELETE /highlights/{id}", h.deleteHighlight)

	return mux
}

type bookResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Author     string    `json:"author,omitempty"`
	CoverURL   string    `json:"cover_url,omitempty"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	TotalPages int       `json:"total_pages"`
	CreatedAt  time.Time `json:"created_at"`
}

func toBookResponse(b models.Book) bookResponse {
	return bookResponse{
		ID:         b.ID.String(),
		Title:      b.Title,
		Author:     b.Author,
		CoverURL:   b.CoverURL,
		FileType:   b.FileType,
		FileSize:   b.FileSize,
		TotalPages: b.TotalPages,
		CreatedAt:  b.CreatedAt,
	}
}

// requestUserAndID pulls the authenticated user and the path id
func requestUserAndID(w http.ResponseWriter, r *http.Request) (models.User, uuid.UUID, bool) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return user, uuid.Nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid id", http.StatusBadRequest)
		return user, uuid.Nil, false
	}

	return user, id, true
}

func (h *BookHandler) upload(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		render.ServiceError(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close() // nolint:errcheck

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	totalPages, _ := strconv.Atoi(r.FormValue("total_pages"))

	created, err := h.bookService.Upload(r.Context(), user.ID, book.UploadParams{
		Title:      title,
		Author:     r.FormValue("author"),
		FileName:   header.Filename,
		FileSize:   header.Size,
		TotalPages: totalPages,
		Content:    file,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrFileTypeNotAllowed):
			render.ServiceError(w, "File type is not allowed", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrFileTooLarge):
			render.ServiceError(w, "File is too large", http.StatusRequestEntityTooLarge)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, toBookResponse(created), http.StatusCreated)
}

func (h *BookHandler) list(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	books, err := h.bookService.List(r.Context(), user.ID)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := make([]bookResponse, 0, len(books))
	for _, b := range books {
		response = append(response, toBookResponse(b))
	}
	render.JSON(w, response)
}

func (h *BookHandler) get(w http.ResponseWriter, r *http.Request) {
	user, bookID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	b, err := h.bookService.Get(r.Context(), bookID, user.ID)
	if err != nil {
		renderBookError(w, err)
		return
	}

	render.JSON(w, toBookResponse(b))
}

func (h *BookHandler) download(w http.ResponseWriter, r *http.Request) {
	user, bookID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	b, content, err := h.bookService.Download(r.Context(), bookID, user.ID)
	if err != nil {
		renderBookError(w, err)
		return
	}
	defer content.Close() // nolint:errcheck

	contentType := "application/pdf"
	if b.FileType == models.BookTypeEPUB {
		contentType = "application/epub+zip"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Title+"."+b.FileType))
	_, _ = io.Copy(w, content)
}

func (h *BookHandler) delete(w http.ResponseWriter, r *http.Request) {
	user, bookID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	if err := h.bookService.Delete(r.Context(), bookID, user.ID); err != nil {
		renderBookError(w, err)
		return
	}

	render.NoContent(w)
}

func (h *BookHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	type ProgressResponse struct {
		BookID          string    `json:"book_id"`
		CurrentPage     int       `json:"current_page"`
		CurrentCFI      string    `json:"current_cfi,omitempty"`
		ProgressPercent float64   `json:"progress_percent"`
		LastReadAt      time.Time `json:"last_read_at"`
	}

	user, bookID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	p, err := h.bookService.GetProgress(r.Context(), user.ID, bookID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrProgressNotFound):
			render.ServiceError(w, "Reading progress not found", http.StatusNotFound)
		default:
			renderBookError(w, err)
		}
		return
	}

	render.JSON(w, ProgressResponse{
		BookID:          p.BookID.String(),
		CurrentPage:     p.CurrentPage,
		CurrentCFI:      p.CurrentCFI,
		ProgressPercent: p.ProgressPercent,
		LastReadAt:      p.LastReadAt,
	})
}

func (h *BookHandler) saveProgress(w http.ResponseWriter, r *http.Request) {
	type SaveProgressRequest struct {
		CurrentPage     int     `json:"current_page" validate:"min=0"`
		CurrentCFI      string  `json:"current_cfi"`
		ProgressPercent float64 `json:"progress_percent" validate:"min=0,max=100"`
	}

	user, bookID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[SaveProgressRequest](w, r)
	if err != nil {
		return
	}

	p, err := h.bookService.SaveProgress(r.Context(), user.ID, bookID, data.CurrentPage, data.CurrentCFI, data.ProgressPercent)
	if err != nil {
		renderBookError(w, err)
		return
	}

	render.JSON(w, map[string]any{
		"book_id":          p.BookID.String(),
		"current_page":     p.CurrentPage,
		"current_cfi":      p.CurrentCFI,
		"progress_percent": p.ProgressPercent,
		"last_read_at":     p.LastReadAt,
	})
}

type bookmarkResponse struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	PageNumber int       `json:"page_number,omitempty"`
	CFI        string    `json:"cfi,omitempty"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toBookmarkResponse(b models.Bookmark) bookmarkResponse {
	return bookmarkResponse{
		ID:         b.ID.String(),
		BookID:     b.BookID.String(),
		PageNumber: b.PageNumber,
		CFI:        b.CFI,
		Title:      b.Title,
		CreatedAt:  b.CreatedAt,
	}
}

func (h *BookHandler) listBookmarks(w http.ResponseWriter, r *http.Request) {
	user, bookID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	bookmarks, err := h.bookService.ListBookmarks(r.Context(), user.ID, bookID)
	if err != nil {
		renderBookError(w, err)
		return
	}

	response := make([]bookmarkResponse, 0, len(bookmarks))
	for _, b := range bookmarks {
		response = append(response, toBookmarkResponse(b))
	}
	render.JSON(w, response)
}

func (h *BookHandler) createBookmark(w http.ResponseWriter, r *http.Request) {
	type CreateBookmarkRequest struct {
		PageNumber int    `json:"page_number" validate:"min=0"`
		CFI        string `json:"cfi"`
		Title      string `json:"title" validate:"omitempty,max=200"`
	}

	user, bookID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[CreateBookmarkRequest](w, r)
	if err != nil {
		return
	}

	b, err := h.bookService.CreateBookmark(r.Context(), user.ID, bookID, data.PageNumber, data.CFI, data.Title)
	if err != nil {
		renderBookError(w, err)
		return
	}

	render.JSONWithStatus(w, toBookmarkResponse(b), http.StatusCreated)
}

func (h *BookHandler) deleteBookmark(w http.ResponseWriter, r *http.Request) {
	user, bookmarkID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	if err := h.bookService.DeleteBookmark(r.Context(), user.ID, bookmarkID); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrBookmarkNotFound):
			render.ServiceError(w, "Bookmark not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.NoContent(w)
}

type highlightResponse struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	Text       string    `json:"text"`
	PageNumber int       `json:"page_number,omitempty"`
	CFI        string    `json:"cfi,omitempty"`
	Color      string    `json:"color"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toHighlightResponse(h models.Highlight) highlightResponse {
	return highlightResponse{
		ID:         h.ID.String(),
		BookID:     h.BookID.String(),
		Text:       h.Text,
		PageNumber: h.PageNumber,
		CFI:        h.CFI,
		Color:      h.Color,
		Note:       h.Note,
		CreatedAt:  h.CreatedAt,
	}
}

func (h *BookHandler) listHighlights(w http.ResponseWriter, r *http.Request) {
	user, bookID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	highlights, err := h.bookService.ListHighlights(r.Context(), user.ID, bookID)
	if err != nil {
		renderBookError(w, err)
		return
	}

	response := make([]highlightResponse, 0, len(highlights))
	for _, hl := range highlights {
		response = append(response, toHighlightResponse(hl))
	}
	render.JSON(w, response)
}

func (h *BookHandler) createHighlight(w http.ResponseWriter, r *http.Request) {
	type CreateHighlightRequest struct {
		Text       string `json:"text" validate:"required"`
		PageNumber int    `json:"page_number" validate:"min=0"`
		CFI        string `json:"cfi"`
		Color      string `json:"color" validate:"omitempty,max=20"`
		Note       string `json:"note" validate:"omitempty,max=2000"`
	}

	user, bookID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[CreateHighlightRequest](w, r)
	if err != nil {
		return
	}

	hl, err := h.bookService.CreateHighlight(r.Context(), user.ID, bookID, data.Text, data.PageNumber, data.CFI, data.Color, data.Note)
	if err != nil {
		renderBookError(w, err)
		return
	}

	render.JSONWithStatus(w, toHighlightResponse(hl), http.StatusCreated)
}

func (h *BookHandler) updateHighlight(w http.ResponseWriter, r *http.Request) {
	type UpdateHighlightRequest struct {
		Color string `json:"color" validate:"omitempty,max=20"`
		Note  string `json:"note" validate:"omitempty,max=2000"`
	}

	user, highlightID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[UpdateHighlightRequest](w, r)
	if err != nil {
		return
	}

	hl, err := h.bookService.UpdateHighlight(r.Context(), user.ID, highlightID, data.Color, data.Note)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrHighlightNotFound):
			render.ServiceError(w, "Highlight not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, toHighlightResponse(hl))
}

func (h *BookHandler) deleteHighlight(w http.ResponseWriter, r *http.Request) {
	user, highlightID, ok := requestUserAndID(w, r)
	if !ok {
		return
	}

	if err := h.bookService.DeleteHighlight(r.Context(), user.ID, highlightID); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrHighlightNotFound):
			render.ServiceError(w, "Highlight not found", http.StatusNotFound)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.NoContent(w)
}

func renderBookError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrBookNotFound):
		render.ServiceError(w, "Book not found", http.StatusNotFound)
	default:
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
