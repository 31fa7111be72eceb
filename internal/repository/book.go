package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
	"github.com/Akash-kotagiri/book-haven/internal/models"
)

const bookColumns = `id, user_id, title, author, description, category, cover_image`

// PostgresBookRepository stores books and keeps the owner's counter in step.
type PostgresBookRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresBookRepository creates a new PostgresBookRepository using the provided *sql.DB.
func NewPostgresBookRepository(db *sql.DB) *PostgresBookRepository {
	return &PostgresBookRepository{DB: db}
}

// ListBooksByUser returns every book owned by userID in storage order.
func (r *PostgresBookRepository) ListBooksByUser(ctx context.Context, userID string) ([]models.Book, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+bookColumns+` FROM books WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListBooksByUser: %w", err)
	}
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		books = append(books, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListBooksByUser: %w", err)
	}
	return books, nil
}

// GetBook fetches a single book by id.
func (r *PostgresBookRepository) GetBook(ctx context.Context, id string) (*models.Book, error) {
	b, err := scanBook(r.DB.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Book not found")
	}
	if err != nil {
		return nil, fmt.Errorf("GetBook: %w", err)
	}
	return b, nil
}

// CreateBook inserts b and increments its owner's books_added_count in one
// transaction. It returns the updated owner.
func (r *PostgresBookRepository) CreateBook(ctx context.Context, b *models.Book) (*models.User, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO books (id, user_id, title, author, description, category, cover_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.UserID, b.Title, b.Author, b.Description, b.Category, nullString(b.CoverImage))
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	owner, err := scanUserRow(tx.QueryRowContext(ctx, `
		UPDATE users SET books_added_count = books_added_count + 1
		WHERE id = $1
		RETURNING `+userColumns, b.UserID), "increment books_added_count")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return owner, nil
}

// UpdateBook overwrites the mutable fields of b.
func (r *PostgresBookRepository) UpdateBook(ctx context.Context, b *models.Book) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE books SET title = $3, author = $4, description = $5, category = $6, cover_image = $7
		WHERE id = $1 AND user_id = $2
	`, b.ID, b.UserID, b.Title, b.Author, b.Description, b.Category, nullString(b.CoverImage))
	if err != nil {
		return fmt.Errorf("UpdateBook: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("Book not found")
	}
	return nil
}

// DeleteBook removes the book owned by userID and decrements the owner's
// counter, floored at zero, in one transaction. It returns the updated owner.
func (r *PostgresBookRepository) DeleteBook(ctx context.Context, bookID, userID string) (*models.User, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1 AND user_id = $2`, bookID, userID)
	if err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, apperr.NotFound("Book not found")
	}

	owner, err := scanUserRow(tx.QueryRowContext(ctx, `
		UPDATE users SET books_added_count = GREATEST(books_added_count - 1, 0)
		WHERE id = $1
		RETURNING `+userColumns, userID), "decrement books_added_count")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return owner, nil
}

func scanBook(s rowScanner) (*models.Book, error) {
	var (
		b     models.Book
		cover sql.NullString
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.Title, &b.Author, &b.Description, &b.Category, &cover); err != nil {
		return nil, err
	}
	b.CoverImage = stringPtr(cover)
	return &b, nil
}
