package session

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/media"
	"github.com/Akash-kotagiri/book-haven/internal/models"
)

// Library mirrors the books owned by the session user. Local state changes
// only after the server confirms a mutation.
type Library struct {
	api     API
	session *Session
	log     *zap.Logger

	mu      sync.RWMutex
	books   []models.Book
	lastErr error
}

// NewLibrary creates a library bound to s. The book list is fetched whenever
// a user signs in and cleared when they sign out.
func NewLibrary(a API, s *Session, log *zap.Logger) *Library {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Library{api: a, session: s, log: log}
	s.Subscribe(l.onUserChange)
	return l
}

func (l *Library) onUserChange(ctx context.Context, prev, next *models.PublicUser) {
	switch {
	case next == nil:
		l.mu.Lock()
		l.books = nil
		l.lastErr = nil
		l.mu.Unlock()
	case prev == nil || prev.ID != next.ID:
		_ = l.Refresh(ctx)
	}
}

// Books returns a copy of the current list.
func (l *Library) Books() []models.Book {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.books)
}

// Book returns the book with id from the local list.
func (l *Library) Book(id string) (models.Book, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := slices.IndexFunc(l.books, func(b models.Book) bool { return b.ID == id })
	if i < 0 {
		return models.Book{}, false
	}
	return l.books[i], true
}

// Err returns the error of the last failed operation, or nil.
func (l *Library) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// Refresh refetches the list from the server.
func (l *Library) Refresh(ctx context.Context) error {
	token := l.session.Token()
	if token == "" {
		return l.fail(ErrNotLoggedIn)
	}
	books, err := l.api.ListBooks(ctx, token)
	if err != nil {
		l.log.Debug("fetch books", zap.Error(err))
		return l.fail(err)
	}
	l.mu.Lock()
	l.books = books
	l.lastErr = nil
	l.mu.Unlock()
	return nil
}

// Add creates a book and appends it.
func (l *Library) Add(ctx context.Context, in models.BookInput, cover *media.File) (*models.Book, error) {
	token := l.session.Token()
	if token == "" {
		return nil, l.fail(ErrNotLoggedIn)
	}
	res, err := l.api.AddBook(ctx, token, in, cover)
	if err != nil {
		return nil, l.fail(err)
	}

	l.mu.Lock()
	l.books = append(l.books, res.Book)
	l.lastErr = nil
	l.mu.Unlock()

	l.session.SetUser(ctx, res.User)
	book := res.Book
	return &book, nil
}

// Edit updates book id and replaces it in the list.
func (l *Library) Edit(ctx context.Context, id string, patch models.BookPatch, cover *media.File) (*models.Book, error) {
	token := l.session.Token()
	if token == "" {
		return nil, l.fail(ErrNotLoggedIn)
	}
	updated, err := l.api.EditBook(ctx, token, id, patch, cover)
	if err != nil {
		return nil, l.fail(err)
	}

	l.mu.Lock()
	for i := range l.books {
		if l.books[i].ID == updated.ID {
			l.books[i] = *updated
		}
	}
	l.lastErr = nil
	l.mu.Unlock()
	return updated, nil
}

// Delete removes book id and returns the server message.
func (l *Library) Delete(ctx context.Context, id string) (string, error) {
	token := l.session.Token()
	if token == "" {
		return "", l.fail(ErrNotLoggedIn)
	}
	res, err := l.api.DeleteBook(ctx, token, id)
	if err != nil {
		return "", l.fail(err)
	}

	l.mu.Lock()
	l.books = slices.DeleteFunc(l.books, func(b models.Book) bool { return b.ID == id })
	l.lastErr = nil
	l.mu.Unlock()

	l.session.SetUser(ctx, res.User)
	return res.Message, nil
}

func (l *Library) fail(err error) error {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
	return err
}
