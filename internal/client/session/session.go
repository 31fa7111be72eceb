// Package session holds the client-side state of a signed-in user: the
// bearer token, the user projection and the list of owned books.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/client/api"
	"github.com/Akash-kotagiri/book-haven/internal/media"
	"github.com/Akash-kotagiri/book-haven/internal/models"
)

var (
	// ErrNotLoggedIn is returned by operations that need a session.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrBusy rejects a favorite toggle while another one is in flight.
	ErrBusy = errors.New("another update is in progress")
)

// API is the subset of the REST client used by the session and library.
type API interface {
	Register(ctx context.Context, in models.RegisterInput) (*models.AuthResponse, error)
	Login(ctx context.Context, in models.LoginInput) (*models.AuthResponse, error)
	Me(ctx context.Context, token string) (*models.PublicUser, error)
	UpdateMe(ctx context.Context, token string, patch models.UserPatch, pic *media.File) (*models.PublicUser, error)
	ListBooks(ctx context.Context, token string) ([]models.Book, error)
	AddBook(ctx context.Context, token string, in models.BookInput, cover *media.File) (*models.BookWithOwner, error)
	EditBook(ctx context.Context, token, id string, patch models.BookPatch, cover *media.File) (*models.Book, error)
	DeleteBook(ctx context.Context, token, id string) (*models.DeleteResult, error)
}

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Listener is notified after every change of the current user. prev and next
// are copies; either may be nil.
type Listener func(ctx context.Context, prev, next *models.PublicUser)

// Session is the authenticated identity of the client. It is safe for
// concurrent use.
type Session struct {
	api    API
	tokens TokenStore
	log    *zap.Logger

	mu        sync.RWMutex
	token     string
	user      *models.PublicUser
	listeners []Listener

	toggling atomic.Bool
}

// New creates a signed-out session.
func New(a API, tokens TokenStore, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{api: a, tokens: tokens, log: log}
}

// Subscribe registers l for user changes.
func (s *Session) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// User returns a copy of the current user, or nil when signed out.
func (s *Session) User() *models.PublicUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// Token returns the current bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Register creates an account and signs in.
func (s *Session) Register(ctx context.Context, in models.RegisterInput) error {
	resp, err := s.api.Register(ctx, in)
	if err != nil {
		return err
	}
	return s.signIn(ctx, resp)
}

// Login signs in with credentials.
func (s *Session) Login(ctx context.Context, in models.LoginInput) error {
	resp, err := s.api.Login(ctx, in)
	if err != nil {
		return err
	}
	return s.signIn(ctx, resp)
}

func (s *Session) signIn(ctx context.Context, resp *models.AuthResponse) error {
	if err := s.tokens.Save(resp.Token); err != nil {
		s.log.Warn("persist token", zap.Error(err))
	}
	user := resp.User
	s.set(ctx, resp.Token, &user)
	return nil
}

// Logout forgets the token and the user.
func (s *Session) Logout(ctx context.Context) error {
	err := s.tokens.Clear()
	s.set(ctx, "", nil)
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Restore signs in with the persisted token. It reports whether a session
// was restored; a token the server rejects is discarded.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	token, err := s.tokens.Load()
	if err != nil {
		return false, fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		return false, nil
	}

	user, err := s.api.Me(ctx, token)
	if err != nil {
		s.log.Info("stored session rejected", zap.Error(err))
		_ = s.Logout(ctx)
		return false, err
	}
	s.set(ctx, token, user)
	return true, nil
}

// UpdateProfile applies patch to the current user.
func (s *Session) UpdateProfile(ctx context.Context, patch models.UserPatch, pic *media.File) error {
	token := s.Token()
	if token == "" {
		return ErrNotLoggedIn
	}
	user, err := s.api.UpdateMe(ctx, token, patch, pic)
	if err != nil {
		return err
	}
	s.set(ctx, token, user)
	return nil
}

// ToggleFavorite adds id to the favorites, or removes it when present. It
// reports whether id is a favorite afterwards.
func (s *Session) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if !s.toggling.CompareAndSwap(false, true) {
		return false, ErrBusy
	}
	defer s.toggling.Store(false)

	user := s.User()
	if user == nil {
		return false, ErrNotLoggedIn
	}

	added := !slices.Contains(user.Favorites, id)
	var favorites []string
	if added {
		favorites = append(slices.Clone(user.Favorites), id)
	} else {
		favorites = slices.DeleteFunc(slices.Clone(user.Favorites), func(f string) bool { return f == id })
	}
	if favorites == nil {
		favorites = []string{}
	}

	if err := s.UpdateProfile(ctx, models.UserPatch{Favorites: &favorites}, nil); err != nil {
		return !added, err
	}
	return added, nil
}

// IsFavorite reports whether id is among the current user's favorites.
func (s *Session) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && slices.Contains(s.user.Favorites, id)
}

// SetUser replaces the current user with a fresher copy from the server.
func (s *Session) SetUser(ctx context.Context, u models.PublicUser) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return
	}
	s.set(ctx, token, &u)
}

func (s *Session) set(ctx context.Context, token string, user *models.PublicUser) {
	s.mu.Lock()
	prev := s.user
	s.token = token
	s.user = cloneUser(user)
	next := cloneUser(s.user)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(ctx, cloneUser(prev), cloneUser(next))
	}
}

func cloneUser(u *models.PublicUser) *models.PublicUser {
	if u == nil {
		return nil
	}
	c := *u
	c.Favorites = slices.Clone(u.Favorites)
	if u.ProfilePic != nil {
		pic := *u.ProfilePic
		c.ProfilePic = &pic
	}
	return &c
}

// Message returns the server-provided message of err, or fallback when err
// did not come from the server.
func Message(err error, fallback string) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
