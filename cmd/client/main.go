// Package main runs the interactive BookHaven command line client.
package main

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/client/api"
	"github.com/Akash-kotagiri/book-haven/internal/client/cache"
	"github.com/Akash-kotagiri/book-haven/internal/client/catalog"
	"github.com/Akash-kotagiri/book-haven/internal/client/session"
	"github.com/Akash-kotagiri/book-haven/internal/client/shell"
	"github.com/Akash-kotagiri/book-haven/internal/client/storage"
	"github.com/Akash-kotagiri/book-haven/internal/config"
)

var (
	version   string
	buildDate string
)

// main wires the client state, restores the previous session and runs the shell.
func main() {
	options, err := config.ParseClient(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := zap.NewNop()
	if options.Debug {
		if log, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	defer func() { _ = log.Sync() }()

	fmt.Printf("BookHaven client %s (%s)\n", cmp.Or(version, "dev"), cmp.Or(buildDate, "N/A"))

	catalogCache := cache.New[json.RawMessage](time.Duration(options.CacheTTL), options.CacheSize)
	var entries []cache.Entry[json.RawMessage]
	if _, err := storage.LoadJSON(options.CacheFile, &entries); err != nil {
		log.Warn("cannot load catalog cache", zap.Error(err))
	}
	catalogCache.Restore(entries)
	saveCache := func() {
		catalogCache.EvictExpired()
		if err := storage.SaveJSON(options.CacheFile, catalogCache.Snapshot()); err != nil {
			log.Warn("cannot save catalog cache", zap.Error(err))
		}
	}

	client := api.New(options.APIURL, log)
	sess := session.New(client, storage.NewFileTokenStore(options.TokenFile), log)
	library := session.NewLibrary(client, sess, log)
	books := catalog.New(catalog.NewGoogleBooks(options.GoogleBooksURL, options.GoogleBooksKey, log), catalogCache, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			saveCache()
			fmt.Println()
			os.Exit(130)
		case <-finished:
		}
	}()

	restored, err := sess.Restore(ctx)
	switch {
	case err != nil:
		fmt.Println("Session expired, please log in again.")
	case restored:
		fmt.Printf("Welcome back, %s!\n", sess.User().Username)
	default:
		fmt.Println("Type 'help' for a list of commands.")
	}

	sh := shell.New(os.Stdin, os.Stdout, sess, library, books)
	if err := sh.Run(ctx); err != nil {
		log.Debug("shell stopped", zap.Error(err))
	}
	close(finished)
	saveCache()
}
