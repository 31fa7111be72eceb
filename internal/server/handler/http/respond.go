package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status and client-safe message. Internal errors
// are logged with their cause and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal && log != nil {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, kind.HTTPStatus(), ErrorResponse{
		Error: apperr.MessageOf(err),
		Code:  string(kind),
	})
}
