package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Akash-kotagiri/book-haven/internal/auth"
	"github.com/Akash-kotagiri/book-haven/internal/media"
	"github.com/Akash-kotagiri/book-haven/internal/metrics"
	"github.com/Akash-kotagiri/book-haven/internal/models"
	"github.com/Akash-kotagiri/book-haven/internal/repository"
	handler "github.com/Akash-kotagiri/book-haven/internal/server/handler/http"
	"github.com/Akash-kotagiri/book-haven/internal/service"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func strPtr(s string) *string { return &s }

func TestClient_ErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"User already exists","code":"CONFLICT"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", nil)
	_, err := c.Register(context.Background(), models.RegisterInput{Username: "a", Email: "a@x.com", Password: "p"})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "CONFLICT", apiErr.Code)
	assert.Equal(t, "User already exists", apiErr.Message)
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).ListBooks(context.Background(), "tok")
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestClient_SendsBearerAndJSON(t *testing.T) {
	var gotAuth, gotCT, gotPath, gotMethod string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"id":"b1","title":"New","author":"A","description":"","category":"Misc","coverImage":null,"user":"u1"}`))
	}))
	defer srv.Close()

	book, err := New(srv.URL, nil).EditBook(context.Background(), "tok", "b1", models.BookPatch{Title: strPtr("New"), Description: strPtr("")}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/books/b1", gotPath)
	assert.Equal(t, map[string]any{"title": "New", "description": ""}, gotBody)
	assert.Equal(t, "New", book.Title)
	assert.Equal(t, "u1", book.UserID)
}

func TestClient_MultipartProfile(t *testing.T) {
	var fields map[string][]string
	var file []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fields = r.MultipartForm.Value
		if f, _, err := r.FormFile("profilePic"); err == nil {
			file, _ = io.ReadAll(f)
		}
		_, _ = w.Write([]byte(`{"id":"u1","username":"alice","email":"a@x.com","bio":"hi","profilePic":"http://img/p.png","favorites":["v1"],"booksAddedCount":0,"createdAt":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	favs := []string{"v1"}
	user, err := New(srv.URL, nil).UpdateMe(context.Background(), "tok",
		models.UserPatch{Bio: strPtr("hi"), Favorites: &favs},
		&media.File{Name: "me.png", Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)

	assert.Equal(t, []string{"hi"}, fields["bio"])
	assert.Equal(t, []string{`["v1"]`}, fields["favorites"])
	_, hasUsername := fields["username"]
	assert.False(t, hasUsername, "absent fields must not be sent")
	assert.Equal(t, pngHeader, file)
	require.NotNil(t, user.ProfilePic)
	assert.Equal(t, "http://img/p.png", *user.ProfilePic)
}

// newStack runs the real server stack in memory.
func newStack(t *testing.T) *Client {
	t.Helper()
	store := repository.NewMemoryStore()
	hasher := &auth.PasswordHasher{Cost: bcrypt.MinCost}
	uploader, err := media.NewLocalUploader(t.TempDir(), "http://media.test", nil)
	require.NoError(t, err)
	authSvc := service.NewAuthService(store, auth.NewTokenManager("k", time.Hour), hasher, uploader, nil)
	bookSvc := service.NewBookService(store, uploader, nil)

	srv := httptest.NewServer(handler.NewRouter(handler.RouterConfig{
		Auth:          &handler.AuthHandler{AuthService: authSvc},
		Books:         &handler.BookHandler{BookService: bookSvc},
		Authenticator: authSvc,
		Metrics:       metrics.New(),
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, nil)
}

func TestClient_AgainstServer(t *testing.T) {
	ctx := context.Background()
	c := newStack(t)

	reg, err := c.Register(ctx, models.RegisterInput{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	tok := reg.Token

	_, err = c.Login(ctx, models.LoginInput{Email: "a@x.com", Password: "wrong"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Message)

	added, err := c.AddBook(ctx, tok, models.BookInput{Title: "Dune", Author: "Herbert"},
		&media.File{Name: "cover.png", Body: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.Equal(t, 1, added.User.BooksAddedCount)
	assert.Equal(t, models.DefaultCategory, added.Book.Category)
	require.NotNil(t, added.Book.CoverImage)
	assert.Contains(t, *added.Book.CoverImage, "http://media.test/"+media.FolderCovers+"/cover-")

	edited, err := c.EditBook(ctx, tok, added.Book.ID, models.BookPatch{Category: strPtr("SciFi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "SciFi", edited.Category)
	assert.Equal(t, "Dune", edited.Title)

	books, err := c.ListBooks(ctx, tok)
	require.NoError(t, err)
	require.Len(t, books, 1)

	del, err := c.DeleteBook(ctx, tok, added.Book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Book deleted", del.Message)
	assert.Equal(t, 0, del.User.BooksAddedCount)

	me, err := c.Me(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	_, err = c.Me(ctx, "garbage")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}
