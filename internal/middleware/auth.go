// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
)

type ctxKey string

const userKey ctxKey = "user"

// Authenticator resolves a bearer token into the id of the user it was issued to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// BearerAuth returns a middleware that requires an "Authorization: Bearer <token>"
// header. Requests with a missing, malformed, expired or tampered token are
// rejected with 401 and a JSON error body. On success the user id is stored
// in the request context; see GetUserIDFromContext.
func BearerAuth(a Authenticator, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeAuthError(w, apperr.Auth("Not authorized, no token"))
				return
			}

			userID, err := a.Authenticate(r.Context(), token)
			if err != nil {
				log.Debug("rejected bearer token", zap.String("path", r.URL.Path), zap.Error(err))
				writeAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext extracts the authenticated user id from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// WithUserID returns a copy of ctx carrying userID, as BearerAuth does.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	msg := apperr.MessageOf(err)
	if kind != apperr.KindAuth {
		kind = apperr.KindAuth
		msg = "Not authorized, token failed"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  string(kind),
	})
}
