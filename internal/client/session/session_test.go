package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akash-kotagiri/book-haven/internal/client/api"
	"github.com/Akash-kotagiri/book-haven/internal/media"
	"github.com/Akash-kotagiri/book-haven/internal/models"
)

// fakeAPI implements API with overridable functions.
type fakeAPI struct {
	RegisterFunc   func(ctx context.Context, in models.RegisterInput) (*models.AuthResponse, error)
	LoginFunc      func(ctx context.Context, in models.LoginInput) (*models.AuthResponse, error)
	MeFunc         func(ctx context.Context, token string) (*models.PublicUser, error)
	UpdateMeFunc   func(ctx context.Context, token string, patch models.UserPatch, pic *media.File) (*models.PublicUser, error)
	ListBooksFunc  func(ctx context.Context, token string) ([]models.Book, error)
	AddBookFunc    func(ctx context.Context, token string, in models.BookInput, cover *media.File) (*models.BookWithOwner, error)
	EditBookFunc   func(ctx context.Context, token, id string, patch models.BookPatch, cover *media.File) (*models.Book, error)
	DeleteBookFunc func(ctx context.Context, token, id string) (*models.DeleteResult, error)

	mu        sync.Mutex
	listCalls int
}

func (f *fakeAPI) Register(ctx context.Context, in models.RegisterInput) (*models.AuthResponse, error) {
	return f.RegisterFunc(ctx, in)
}

func (f *fakeAPI) Login(ctx context.Context, in models.LoginInput) (*models.AuthResponse, error) {
	return f.LoginFunc(ctx, in)
}

func (f *fakeAPI) Me(ctx context.Context, token string) (*models.PublicUser, error) {
	return f.MeFunc(ctx, token)
}

func (f *fakeAPI) UpdateMe(ctx context.Context, token string, patch models.UserPatch, pic *media.File) (*models.PublicUser, error) {
	return f.UpdateMeFunc(ctx, token, patch, pic)
}

func (f *fakeAPI) ListBooks(ctx context.Context, token string) ([]models.Book, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.ListBooksFunc == nil {
		return []models.Book{}, nil
	}
	return f.ListBooksFunc(ctx, token)
}

func (f *fakeAPI) AddBook(ctx context.Context, token string, in models.BookInput, cover *media.File) (*models.BookWithOwner, error) {
	return f.AddBookFunc(ctx, token, in, cover)
}

func (f *fakeAPI) EditBook(ctx context.Context, token, id string, patch models.BookPatch, cover *media.File) (*models.Book, error) {
	return f.EditBookFunc(ctx, token, id, patch, cover)
}

func (f *fakeAPI) DeleteBook(ctx context.Context, token, id string) (*models.DeleteResult, error) {
	return f.DeleteBookFunc(ctx, token, id)
}

// memTokens is an in-memory TokenStore.
type memTokens struct {
	token   string
	saveErr error
}

func (m *memTokens) Load() (string, error) { return m.token, nil }
func (m *memTokens) Save(t string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.token = t
	return nil
}
func (m *memTokens) Clear() error {
	m.token = ""
	return nil
}

func alice() models.PublicUser {
	return models.PublicUser{ID: "u1", Username: "alice", Email: "a@x.com", Favorites: []string{}, CreatedAt: time.Unix(0, 0)}
}

func loginOK(token string) func(context.Context, models.LoginInput) (*models.AuthResponse, error) {
	return func(context.Context, models.LoginInput) (*models.AuthResponse, error) {
		return &models.AuthResponse{Token: token, User: alice()}, nil
	}
}

func TestLogin_PersistsTokenAndNotifies(t *testing.T) {
	fa := &fakeAPI{LoginFunc: loginOK("tok1")}
	store := &memTokens{}
	s := New(fa, store, nil)

	var events [][2]*models.PublicUser
	s.Subscribe(func(_ context.Context, prev, next *models.PublicUser) {
		events = append(events, [2]*models.PublicUser{prev, next})
	})

	require.NoError(t, s.Login(context.Background(), models.LoginInput{Email: "a@x.com", Password: "p"}))
	assert.Equal(t, "tok1", s.Token())
	assert.Equal(t, "tok1", store.token)
	require.NotNil(t, s.User())
	assert.Equal(t, "alice", s.User().Username)

	require.Len(t, events, 1)
	assert.Nil(t, events[0][0])
	assert.Equal(t, "u1", events[0][1].ID)

	require.NoError(t, s.Logout(context.Background()))
	assert.Nil(t, s.User())
	assert.Empty(t, s.Token())
	assert.Empty(t, store.token)
	require.Len(t, events, 2)
	assert.Nil(t, events[1][1])
}

func TestLogin_Failure(t *testing.T) {
	fa := &fakeAPI{LoginFunc: func(context.Context, models.LoginInput) (*models.AuthResponse, error) {
		return nil, &api.Error{Status: 401, Message: "Invalid credentials"}
	}}
	s := New(fa, &memTokens{}, nil)

	err := s.Login(context.Background(), models.LoginInput{Email: "a@x.com", Password: "bad"})
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", Message(err, "Login failed"))
	assert.Nil(t, s.User())
}

func TestRegister_SaveErrorStillSignsIn(t *testing.T) {
	fa := &fakeAPI{RegisterFunc: func(context.Context, models.RegisterInput) (*models.AuthResponse, error) {
		return &models.AuthResponse{Token: "t", User: alice()}, nil
	}}
	s := New(fa, &memTokens{saveErr: errors.New("read-only fs")}, nil)

	require.NoError(t, s.Register(context.Background(), models.RegisterInput{Username: "alice", Email: "a@x.com", Password: "p"}))
	assert.NotNil(t, s.User())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("no token", func(t *testing.T) {
		s := New(&fakeAPI{}, &memTokens{}, nil)
		ok, err := s.Restore(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("valid token", func(t *testing.T) {
		fa := &fakeAPI{MeFunc: func(_ context.Context, token string) (*models.PublicUser, error) {
			assert.Equal(t, "saved", token)
			u := alice()
			return &u, nil
		}}
		s := New(fa, &memTokens{token: "saved"}, nil)
		ok, err := s.Restore(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "saved", s.Token())
	})

	t.Run("rejected token is discarded", func(t *testing.T) {
		fa := &fakeAPI{MeFunc: func(context.Context, string) (*models.PublicUser, error) {
			return nil, &api.Error{Status: 401, Message: "Not authorized, token failed"}
		}}
		store := &memTokens{token: "expired"}
		s := New(fa, store, nil)
		ok, err := s.Restore(ctx)
		assert.Error(t, err)
		assert.False(t, ok)
		assert.Empty(t, store.token)
		assert.Nil(t, s.User())
	})
}

func TestToggleFavorite(t *testing.T) {
	var sent [][]string
	fa := &fakeAPI{
		LoginFunc: loginOK("tok"),
		UpdateMeFunc: func(_ context.Context, _ string, patch models.UserPatch, _ *media.File) (*models.PublicUser, error) {
			sent = append(sent, *patch.Favorites)
			u := alice()
			u.Favorites = *patch.Favorites
			return &u, nil
		},
	}
	s := New(fa, &memTokens{}, nil)
	ctx := context.Background()

	_, err := s.ToggleFavorite(ctx, "v1")
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, s.Login(ctx, models.LoginInput{}))

	added, err := s.ToggleFavorite(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, s.IsFavorite("v1"))

	added, err = s.ToggleFavorite(ctx, "v2")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.ToggleFavorite(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, added)
	assert.False(t, s.IsFavorite("v1"))

	assert.Equal(t, [][]string{{"v1"}, {"v1", "v2"}, {"v2"}}, sent)
}

func TestToggleFavorite_RejectsConcurrentToggle(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fa := &fakeAPI{
		LoginFunc: loginOK("tok"),
		UpdateMeFunc: func(_ context.Context, _ string, patch models.UserPatch, _ *media.File) (*models.PublicUser, error) {
			close(entered)
			<-release
			u := alice()
			u.Favorites = *patch.Favorites
			return &u, nil
		},
	}
	s := New(fa, &memTokens{}, nil)
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, models.LoginInput{}))

	done := make(chan error, 1)
	go func() {
		_, err := s.ToggleFavorite(ctx, "v1")
		done <- err
	}()
	<-entered

	_, err := s.ToggleFavorite(ctx, "v1")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.True(t, s.IsFavorite("v1"))
}

func TestToggleFavorite_FailureKeepsState(t *testing.T) {
	fa := &fakeAPI{
		LoginFunc: loginOK("tok"),
		UpdateMeFunc: func(context.Context, string, models.UserPatch, *media.File) (*models.PublicUser, error) {
			return nil, errors.New("connection refused")
		},
	}
	s := New(fa, &memTokens{}, nil)
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, models.LoginInput{}))

	_, err := s.ToggleFavorite(ctx, "v1")
	require.Error(t, err)
	assert.Equal(t, "Failed to update favorites", Message(err, "Failed to update favorites"))
	assert.False(t, s.IsFavorite("v1"))
}

func TestUser_ReturnsCopy(t *testing.T) {
	fa := &fakeAPI{LoginFunc: loginOK("tok")}
	s := New(fa, &memTokens{}, nil)
	require.NoError(t, s.Login(context.Background(), models.LoginInput{}))

	u := s.User()
	u.Username = "mallory"
	u.Favorites = append(u.Favorites, "x")
	assert.Equal(t, "alice", s.User().Username)
	assert.Empty(t, s.User().Favorites)
}
