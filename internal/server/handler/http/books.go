package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/media"
	"github.com/Akash-kotagiri/book-haven/internal/middleware"
	"github.com/Akash-kotagiri/book-haven/internal/models"
)

// BookService defines the catalog operations required by the BookHandler.
// Every operation is scoped to the authenticated owner.
type BookService interface {
	ListBooks(ctx context.Context, userID string) ([]models.Book, error)
	AddBook(ctx context.Context, userID string, in models.BookInput, cover *media.File) (*models.BookWithOwner, error)
	EditBook(ctx context.Context, userID, bookID string, patch models.BookPatch, cover *media.File) (*models.Book, error)
	DeleteBook(ctx context.Context, userID, bookID string) (*models.DeleteResult, error)
}

// BookHandler handles the /api/books endpoints.
type BookHandler struct {
	BookService BookService
	Log         *zap.Logger
}

// List handles GET /api/books.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	books, err := h.BookService.ListBooks(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if books == nil {
		books = []models.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

// Add handles POST /api/books and responds with 201 and {book, user}.
func (h *BookHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	p, err := readPayload(w, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	var in models.BookInput
	fields := map[string]*string{
		"title":       &in.Title,
		"author":      &in.Author,
		"description": &in.Description,
		"category":    &in.Category,
	}
	for key, dst := range fields {
		if *dst, _, err = p.String(key); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
	}

	cover, closer, err := p.File("coverImage")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	res, err := h.BookService.AddBook(r.Context(), userID, in, cover)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Edit handles PUT /api/books/{id}. Absent fields keep their value. A
// coverImage file replaces the cover; a coverImage text value sets the
// cover reference directly.
func (h *BookHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	bookID := chi.URLParam(r, "id")

	p, err := readPayload(w, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	var patch models.BookPatch
	fields := map[string]**string{
		"title":       &patch.Title,
		"author":      &patch.Author,
		"description": &patch.Description,
		"category":    &patch.Category,
		"coverImage":  &patch.CoverImage,
	}
	for key, dst := range fields {
		if *dst, err = p.StringPtr(key); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
	}

	cover, closer, err := p.File("coverImage")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	book, err := h.BookService.EditBook(r.Context(), userID, bookID, patch, cover)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Delete handles DELETE /api/books/{id}.
func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	res, err := h.BookService.DeleteBook(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
