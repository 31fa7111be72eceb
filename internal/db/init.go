// Package db opens the PostgreSQL connection and bootstraps the schema.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Schema creates the users and books tables. Email and username are unique;
// books reference their owner.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash BYTEA NOT NULL,
    bio TEXT NOT NULL DEFAULT '',
    profile_pic TEXT,
    favorites TEXT[] NOT NULL DEFAULT '{}',
    books_added_count INTEGER NOT NULL DEFAULT 0 CHECK (books_added_count >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS books (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title TEXT NOT NULL CHECK (title <> ''),
    author TEXT NOT NULL CHECK (author <> ''),
    description TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT 'Uncategorized',
    cover_image TEXT
);

CREATE INDEX IF NOT EXISTS books_user_id_idx ON books (user_id);
`

// InitPostgres opens dsn, verifies the connection and applies Schema.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies Schema to an open database.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
