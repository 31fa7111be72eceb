// Package http provides the HTTP handlers and routing of the BookHaven API.
package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/media"
	"github.com/Akash-kotagiri/book-haven/internal/middleware"
	"github.com/Akash-kotagiri/book-haven/internal/models"
)

// AuthService defines the account operations required by the AuthHandler.
type AuthService interface {
	// Register creates an account and returns a token for it.
	Register(ctx context.Context, in models.RegisterInput) (*models.AuthResponse, error)
	// Login checks credentials and returns a token.
	Login(ctx context.Context, in models.LoginInput) (*models.AuthResponse, error)
	// CurrentUser returns the projection of the authenticated user.
	CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error)
	// UpdateCurrentUser applies a partial profile update, uploading pic first when given.
	UpdateCurrentUser(ctx context.Context, userID string, patch models.UserPatch, pic *media.File) (*models.PublicUser, error)
}

// AuthHandler handles registration, login and profile requests.
type AuthHandler struct {
	// AuthService performs the underlying account operations.
	AuthService AuthService
	// Log receives internal errors. Optional.
	Log *zap.Logger
}

// Register handles POST /api/auth/register.
// It accepts username, email and password and responds with 201 and
// {token, user}.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(w, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	var in models.RegisterInput
	for key, dst := range map[string]*string{"username": &in.Username, "email": &in.Email, "password": &in.Password} {
		if *dst, _, err = p.String(key); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
	}

	resp, err := h.AuthService.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(w, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	var in models.LoginInput
	if in.Email, _, err = p.String("email"); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if in.Password, _, err = p.String("password"); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	resp, err := h.AuthService.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	user, err := h.AuthService.CurrentUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe handles PUT /api/auth/me. Only supplied fields change; a
// multipart body may carry a profilePic file.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())

	p, err := readPayload(w, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	var patch models.UserPatch
	if patch.Username, err = p.StringPtr("username"); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if patch.Email, err = p.StringPtr("email"); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if patch.Bio, err = p.StringPtr("bio"); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if patch.Favorites, err = p.Strings("favorites"); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	pic, closer, err := p.File("profilePic")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	user, err := h.AuthService.UpdateCurrentUser(r.Context(), userID, patch, pic)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
