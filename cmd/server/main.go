// Package main initializes and starts the BookHaven API server,
// setting up configuration, logging, storage, media uploads, services,
// handlers, and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/auth"
	"github.com/Akash-kotagiri/book-haven/internal/config"
	"github.com/Akash-kotagiri/book-haven/internal/db"
	"github.com/Akash-kotagiri/book-haven/internal/logger"
	"github.com/Akash-kotagiri/book-haven/internal/media"
	"github.com/Akash-kotagiri/book-haven/internal/metrics"
	"github.com/Akash-kotagiri/book-haven/internal/repository"
	"github.com/Akash-kotagiri/book-haven/internal/server/handler/http"
	"github.com/Akash-kotagiri/book-haven/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse command-line, config file and environment configuration.
	options, err := config.ParseServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	zapLogger := log.Log

	// Initialize storage: PostgreSQL when a DSN is given, memory otherwise.
	var (
		userRepo service.UserRepository
		bookRepo service.BookRepository
	)
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		defer postgresDB.Close()
		userRepo = repository.NewPostgresUserRepository(postgresDB)
		bookRepo = repository.NewPostgresBookRepository(postgresDB)
	} else {
		zapLogger.Warn("DATABASE_DSN not set, using in-memory storage")
		store := repository.NewMemoryStore()
		userRepo, bookRepo = store, store
	}

	// Pick the media backend.
	var uploader media.Uploader
	mediaDir := ""
	switch {
	case options.CloudinaryEnabled():
		uploader = media.NewCloudinaryUploader(options.CloudinaryCloudName, options.CloudinaryAPIKey, options.CloudinaryAPISecret)
		zapLogger.Info("media uploads go to cloudinary", zap.String("cloud", options.CloudinaryCloudName))
	case options.MediaDir != "":
		local, err := media.NewLocalUploader(options.MediaDir, options.MediaBaseURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("cannot init media dir", zap.Error(err))
		}
		uploader = local
		mediaDir = options.MediaDir
		zapLogger.Info("media uploads stored locally", zap.String("dir", options.MediaDir))
	default:
		zapLogger.Warn("no media backend configured, file uploads are disabled")
	}

	m := metrics.New()

	// Initialize business-logic services.
	tokens := auth.NewTokenManager(options.JWTSecret, time.Duration(options.TokenTTL))
	authService := service.NewAuthService(userRepo, tokens, auth.NewPasswordHasher(), uploader, zapLogger).WithEvents(m)
	bookService := service.NewBookService(bookRepo, uploader, zapLogger).WithEvents(m)

	// Build the router with middleware and routes.
	router := http.NewRouter(http.RouterConfig{
		Auth:          &http.AuthHandler{AuthService: authService, Log: zapLogger},
		Books:         &http.BookHandler{BookService: bookService, Log: zapLogger},
		Authenticator: authService,
		Metrics:       m,
		Logger:        zapLogger,
		CORSOrigins:   options.CORSOrigins,
		MediaDir:      mediaDir,
	})

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if options.TLSCert != "" {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("starting server",
			zap.String("addr", options.Address),
			zap.Bool("tls", options.TLSCert != ""),
			zap.Bool("postgres", options.DatabaseDSN != ""),
		)
		if options.TLSCert != "" {
			errCh <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
