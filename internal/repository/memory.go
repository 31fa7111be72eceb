package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
	"github.com/Akash-kotagiri/book-haven/internal/models"
)

// MemoryStore is an in-process implementation of the user and book
// repositories. It is used when the server runs without a database and
// keeps everything until the process exits.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
	books map[string]*models.Book
	// order keeps book ids in insertion order.
	order []string
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*models.User),
		books: make(map[string]*models.Book),
		now:   time.Now,
	}
}

// EmailExists reports whether a user with the given email exists.
func (m *MemoryStore) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// CreateUser stores a copy of u and fills in its creation timestamp.
func (m *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUniqueLocked(u); err != nil {
		return err
	}
	u.CreatedAt = m.now().UTC()
	m.users[u.ID] = cloneUser(u)
	return nil
}

// GetUserByID fetches a user by id.
func (m *MemoryStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	return cloneUser(u), nil
}

// GetUserByEmail fetches a user by email.
func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

// UpdateUser replaces the profile fields of the stored user.
func (m *MemoryStore) UpdateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return apperr.NotFound("User not found")
	}
	if err := m.checkUniqueLocked(u); err != nil {
		return err
	}
	cur.Username = u.Username
	cur.Email = u.Email
	cur.Bio = u.Bio
	cur.ProfilePic = u.ProfilePic
	cur.Favorites = append([]string{}, u.Favorites...)
	u.BooksAddedCount = cur.BooksAddedCount
	u.CreatedAt = cur.CreatedAt
	return nil
}

// ListBooksByUser returns the books owned by userID in insertion order.
func (m *MemoryStore) ListBooksByUser(_ context.Context, userID string) ([]models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	books := []models.Book{}
	for _, id := range m.order {
		if b := m.books[id]; b.UserID == userID {
			books = append(books, *b)
		}
	}
	return books, nil
}

// GetBook fetches a book by id.
func (m *MemoryStore) GetBook(_ context.Context, id string) (*models.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok {
		return nil, apperr.NotFound("Book not found")
	}
	cp := *b
	return &cp, nil
}

// CreateBook stores b and increments its owner's counter.
func (m *MemoryStore) CreateBook(_ context.Context, b *models.Book) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.users[b.UserID]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	cp := *b
	m.books[b.ID] = &cp
	m.order = append(m.order, b.ID)
	owner.BooksAddedCount++
	return cloneUser(owner), nil
}

// UpdateBook replaces a book still owned by b.UserID.
func (m *MemoryStore) UpdateBook(_ context.Context, b *models.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.books[b.ID]
	if !ok || cur.UserID != b.UserID {
		return apperr.NotFound("Book not found")
	}
	cp := *b
	m.books[b.ID] = &cp
	return nil
}

// DeleteBook removes a book owned by userID and decrements the counter,
// never below zero.
func (m *MemoryStore) DeleteBook(_ context.Context, bookID, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[bookID]
	if !ok || b.UserID != userID {
		return nil, apperr.NotFound("Book not found")
	}
	owner, ok := m.users[userID]
	if !ok {
		return nil, apperr.NotFound("User not found")
	}
	delete(m.books, bookID)
	for i, id := range m.order {
		if id == bookID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if owner.BooksAddedCount > 0 {
		owner.BooksAddedCount--
	}
	return cloneUser(owner), nil
}

func (m *MemoryStore) checkUniqueLocked(u *models.User) error {
	for id, other := range m.users {
		if id == u.ID {
			continue
		}
		if other.Email == u.Email {
			return apperr.Conflict("User already exists")
		}
		if other.Username == u.Username {
			return apperr.Conflict("Username already taken")
		}
	}
	return nil
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.Favorites = append([]string{}, u.Favorites...)
	cp.PasswordHash = append([]byte(nil), u.PasswordHash...)
	if u.ProfilePic != nil {
		pic := *u.ProfilePic
		cp.ProfilePic = &pic
	}
	return &cp
}
