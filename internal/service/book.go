package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
	"github.com/Akash-kotagiri/book-haven/internal/media"
	"github.com/Akash-kotagiri/book-haven/internal/metrics"
	"github.com/Akash-kotagiri/book-haven/internal/models"
	"github.com/Akash-kotagiri/book-haven/internal/validation"
)

// BookRepository defines the persistence operations needed by the BookService.
type BookRepository interface {
	// ListBooksByUser returns every book owned by userID.
	ListBooksByUser(ctx context.Context, userID string) ([]models.Book, error)
	// GetBook fetches a single book or an apperr not found error.
	GetBook(ctx context.Context, id string) (*models.Book, error)
	// CreateBook inserts b and increments its owner's counter in one
	// transaction, returning the updated owner.
	CreateBook(ctx context.Context, b *models.Book) (*models.User, error)
	// UpdateBook persists b if it is still owned by b.UserID.
	UpdateBook(ctx context.Context, b *models.Book) error
	// DeleteBook removes the book and decrements the owner's counter,
	// floored at zero, in one transaction. Returns the updated owner.
	DeleteBook(ctx context.Context, bookID, userID string) (*models.User, error)
}

// BookService implements the per-owner book catalog.
type BookService struct {
	repo     BookRepository
	uploader media.Uploader
	validate *validation.Validator
	events   EventRecorder
	log      *zap.Logger
}

// NewBookService constructs a BookService. uploader may be nil, in which case
// cover uploads are rejected.
func NewBookService(repo BookRepository, uploader media.Uploader, log *zap.Logger) *BookService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BookService{
		repo:     repo,
		uploader: uploader,
		validate: validation.New(),
		events:   nopRecorder{},
		log:      log,
	}
}

// WithEvents sets the recorder that counts book mutations.
func (s *BookService) WithEvents(r EventRecorder) *BookService {
	if r != nil {
		s.events = r
	}
	return s
}

// ListBooks returns all books owned by userID in storage order.
func (s *BookService) ListBooks(ctx context.Context, userID string) ([]models.Book, error) {
	return s.repo.ListBooksByUser(ctx, userID)
}

// AddBook creates a book for userID, uploading cover first when given.
func (s *BookService) AddBook(ctx context.Context, userID string, in models.BookInput, cover *media.File) (*models.BookWithOwner, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	if err := s.validate.Validate(in); err != nil {
		return nil, err
	}

	b := &models.Book{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Author:      in.Author,
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		UserID:      userID,
	}
	if b.Category == "" {
		b.Category = models.DefaultCategory
	}

	if cover != nil {
		url, err := upload(ctx, s.uploader, media.FolderCovers, *cover)
		if err != nil {
			return nil, err
		}
		b.CoverImage = &url
		s.events.Inc(metrics.EventUpload)
	}

	owner, err := s.repo.CreateBook(ctx, b)
	if err != nil {
		return nil, err
	}

	s.events.Inc(metrics.EventBookAdded)
	s.log.Info("book added",
		zap.String("book_id", b.ID),
		zap.String("user_id", userID),
		zap.Int("books_added_count", owner.BooksAddedCount),
	)
	return &models.BookWithOwner{Book: *b, User: owner.Public()}, nil
}

// DeleteBook removes a book owned by userID.
func (s *BookService) DeleteBook(ctx context.Context, userID, bookID string) (*models.DeleteResult, error) {
	if _, err := s.ownedBook(ctx, userID, bookID); err != nil {
		return nil, err
	}

	owner, err := s.repo.DeleteBook(ctx, bookID, userID)
	if err != nil {
		return nil, err
	}

	s.events.Inc(metrics.EventBookDeleted)
	s.log.Info("book deleted", zap.String("book_id", bookID), zap.String("user_id", userID))
	return &models.DeleteResult{Message: "Book deleted", User: owner.Public()}, nil
}

// EditBook applies patch to a book owned by userID. An uploaded cover takes
// precedence over a coverImage value in the patch.
func (s *BookService) EditBook(ctx context.Context, userID, bookID string, patch models.BookPatch, cover *media.File) (*models.Book, error) {
	if err := validateBookPatch(&patch); err != nil {
		return nil, err
	}

	b, err := s.ownedBook(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}

	if cover != nil {
		url, err := upload(ctx, s.uploader, media.FolderCovers, *cover)
		if err != nil {
			return nil, err
		}
		patch.CoverImage = &url
		s.events.Inc(metrics.EventUpload)
	}

	patch.Apply(b)
	if err := s.repo.UpdateBook(ctx, b); err != nil {
		return nil, err
	}

	s.events.Inc(metrics.EventBookEdited)
	s.log.Debug("book edited", zap.String("book_id", b.ID), zap.String("user_id", userID))
	return b, nil
}

// ownedBook loads the book and checks that userID owns it.
func (s *BookService) ownedBook(ctx context.Context, userID, bookID string) (*models.Book, error) {
	b, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, apperr.Forbidden("Unauthorized")
	}
	return b, nil
}

func validateBookPatch(p *models.BookPatch) error {
	if p.Title != nil {
		v := strings.TrimSpace(*p.Title)
		if v == "" {
			return apperr.Validation("title must not be empty")
		}
		p.Title = &v
	}
	if p.Author != nil {
		v := strings.TrimSpace(*p.Author)
		if v == "" {
			return apperr.Validation("author must not be empty")
		}
		p.Author = &v
	}
	if p.Category != nil {
		v := strings.TrimSpace(*p.Category)
		if v == "" {
			v = models.DefaultCategory
		}
		p.Category = &v
	}
	return nil
}
