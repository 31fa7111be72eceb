// Package api is the typed REST client of the BookHaven server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/media"
	"github.com/Akash-kotagiri/book-haven/internal/models"
)

// Error is a non-2xx response of the server.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

// Client talks to the server rooted at BaseURL. Authenticated calls take the
// bearer token explicitly so a single Client can serve many sessions.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	log        *zap.Logger
}

// New creates a client for baseURL.
func New(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, in models.RegisterInput) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, in models.LoginInput) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (*models.PublicUser, error) {
	var out models.PublicUser
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMe applies patch to the current user. A non-nil pic is sent as the
// profilePic file.
func (c *Client) UpdateMe(ctx context.Context, token string, patch models.UserPatch, pic *media.File) (*models.PublicUser, error) {
	var out models.PublicUser
	var err error
	if pic == nil {
		err = c.doJSON(ctx, http.MethodPut, "/api/auth/me", token, patch, &out)
	} else {
		fields := presentFields(map[string]*string{
			"username": patch.Username,
			"email":    patch.Email,
			"bio":      patch.Bio,
		})
		if patch.Favorites != nil {
			list, merr := json.Marshal(*patch.Favorites)
			if merr != nil {
				return nil, merr
			}
			fields["favorites"] = string(list)
		}
		err = c.doMultipart(ctx, http.MethodPut, "/api/auth/me", token, fields, "profilePic", pic, &out)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBooks returns the books owned by the token's user.
func (c *Client) ListBooks(ctx context.Context, token string) ([]models.Book, error) {
	out := []models.Book{}
	if err := c.doJSON(ctx, http.MethodGet, "/api/books", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddBook creates a book with an optional cover file.
func (c *Client) AddBook(ctx context.Context, token string, in models.BookInput, cover *media.File) (*models.BookWithOwner, error) {
	var out models.BookWithOwner
	var err error
	if cover == nil {
		err = c.doJSON(ctx, http.MethodPost, "/api/books", token, in, &out)
	} else {
		fields := map[string]string{"title": in.Title, "author": in.Author, "description": in.Description}
		if in.Category != "" {
			fields["category"] = in.Category
		}
		err = c.doMultipart(ctx, http.MethodPost, "/api/books", token, fields, "coverImage", cover, &out)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// EditBook applies patch to book id with an optional replacement cover.
func (c *Client) EditBook(ctx context.Context, token, id string, patch models.BookPatch, cover *media.File) (*models.Book, error) {
	var out models.Book
	path := "/api/books/" + id
	var err error
	if cover == nil {
		err = c.doJSON(ctx, http.MethodPut, path, token, patch, &out)
	} else {
		fields := presentFields(map[string]*string{
			"title":       patch.Title,
			"author":      patch.Author,
			"description": patch.Description,
			"category":    patch.Category,
		})
		err = c.doMultipart(ctx, http.MethodPut, path, token, fields, "coverImage", cover, &out)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteBook removes book id.
func (c *Client) DeleteBook(ctx context.Context, token, id string) (*models.DeleteResult, error) {
	var out models.DeleteResult
	if err := c.doJSON(ctx, http.MethodDelete, "/api/books/"+id, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func presentFields(in map[string]*string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, token, out)
}

func (c *Client) doMultipart(ctx context.Context, method, path, token string, fields map[string]string, fileField string, f *media.File, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	part, err := mw.CreateFormFile(fileField, f.Name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, token, out)
}

func (c *Client) do(req *http.Request, token string, out any) error {
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("api call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{
			Status:  resp.StatusCode,
			Code:    gjson.GetBytes(data, "code").String(),
			Message: gjson.GetBytes(data, "error").String(),
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
