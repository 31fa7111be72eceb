package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/metrics"
	"github.com/Akash-kotagiri/book-haven/internal/middleware"
)

// RouterConfig collects the dependencies of NewRouter.
type RouterConfig struct {
	Auth          *AuthHandler
	Books         *BookHandler
	Authenticator middleware.Authenticator
	// Metrics enables request instrumentation and GET /metrics. Optional.
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// CORSOrigins lists the origins allowed to call the API with credentials.
	CORSOrigins []string
	// MediaDir, when set, is served under /media/ for the local uploader.
	MediaDir string
}

// NewRouter constructs the HTTP handler that serves the BookHaven API.
//
// Routes:
//
//	POST   /api/auth/register  → Auth.Register
//	POST   /api/auth/login     → Auth.Login
//	GET    /api/auth/me        → Auth.Me          (bearer)
//	PUT    /api/auth/me        → Auth.UpdateMe    (bearer)
//	GET    /api/books          → Books.List       (bearer)
//	POST   /api/books          → Books.Add        (bearer)
//	PUT    /api/books/{id}     → Books.Edit       (bearer)
//	DELETE /api/books/{id}     → Books.Delete     (bearer)
//	GET    /healthz
//	GET    /metrics
//	GET    /media/*
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(log))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Route not found", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if cfg.MediaDir != "" {
		fs := http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir)))
		r.Get("/media/*", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/") {
				http.NotFound(w, r)
				return
			}
			fs.ServeHTTP(w, r)
		})
	}

	auth := middleware.BearerAuth(cfg.Authenticator, log)

	r.Route("/api", func(r chi.Router) {
		r.Use(allowContentTypes(
			"application/json",
			"multipart/form-data",
			"application/x-www-form-urlencoded",
		))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", cfg.Auth.Register)
			r.Post("/login", cfg.Auth.Login)
			r.With(auth).Get("/me", cfg.Auth.Me)
			r.With(auth).Put("/me", cfg.Auth.UpdateMe)
		})

		r.Route("/books", func(r chi.Router) {
			r.Use(auth)
			r.Get("/", cfg.Books.List)
			r.Post("/", cfg.Books.Add)
			r.Put("/{id}", cfg.Books.Edit)
			r.Delete("/{id}", cfg.Books.Delete)
		})
	})

	return r
}
