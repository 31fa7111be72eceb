// Package repository provides PostgreSQL persistence for users and books.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
	"github.com/Akash-kotagiri/book-haven/internal/models"
)

// uniqueViolation is the SQLSTATE raised for unique constraint conflicts.
const uniqueViolation = "23505"

const userColumns = `id, username, email, password_hash, bio, profile_pic, favorites, books_added_count, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresUserRepository stores user records.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// EmailExists reports whether a user with the given email exists.
func (r *PostgresUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("EmailExists: %w", err)
	}
	return exists, nil
}

// CreateUser inserts u and fills in its creation timestamp.
// A duplicate email or username yields an apperr conflict.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, u *models.User) error {
	favorites := u.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, bio, profile_pic, favorites, books_added_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.Bio, nullString(u.ProfilePic), pq.Array(favorites), u.BooksAddedCount,
	).Scan(&u.CreatedAt)
	if err != nil {
		if cerr := conflictError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

// GetUserByID fetches a user by id.
func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUserRow(row, "GetUserByID")
}

// GetUserByEmail fetches a user by email.
func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUserRow(row, "GetUserByEmail")
}

// UpdateUser persists the profile fields of u. The books counter is never
// written here; its current value is read back into u.
func (r *PostgresUserRepository) UpdateUser(ctx context.Context, u *models.User) error {
	favorites := u.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	err := r.DB.QueryRowContext(ctx, `
		UPDATE users SET username = $2, email = $3, bio = $4, profile_pic = $5, favorites = $6
		WHERE id = $1
		RETURNING books_added_count, created_at
	`, u.ID, u.Username, u.Email, u.Bio, nullString(u.ProfilePic), pq.Array(favorites),
	).Scan(&u.BooksAddedCount, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("User not found")
	}
	if err != nil {
		if cerr := conflictError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("UpdateUser: %w", err)
	}
	return nil
}

func scanUser(s rowScanner) (*models.User, error) {
	var (
		u          models.User
		profilePic sql.NullString
	)
	err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Bio, &profilePic,
		pq.Array(&u.Favorites), &u.BooksAddedCount, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.ProfilePic = stringPtr(profilePic)
	if u.Favorites == nil {
		u.Favorites = []string{}
	}
	return &u, nil
}

func scanUserRow(row rowScanner, op string) (*models.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// conflictError maps unique violations onto apperr conflicts; it returns nil
// for any other error.
func conflictError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}
	if strings.Contains(pqErr.Constraint, "username") {
		return apperr.Conflict("Username already taken").Wrap(err)
	}
	return apperr.Conflict("User already exists").Wrap(err)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
