// Package catalog reads the public book catalog from the Google Books API
// and caches the responses locally.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Google Books API root.
	DefaultBaseURL = "https://www.googleapis.com/books/v1"
	// SearchSize is the number of volumes fetched per search.
	SearchSize = 40
)

// ErrVolumeNotFound is returned for unknown volume ids.
var ErrVolumeNotFound = errors.New("volume not found")

// APIError is a non-2xx response of the Google Books API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google books: %d %s", e.Status, e.Message)
}

// Volume is the part of a Google Books volume the client shows.
type Volume struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Description   string   `json:"description,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	PageCount     int      `json:"pageCount,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	InfoLink      string   `json:"infoLink,omitempty"`
}

type volumeResponse struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title         string   `json:"title"`
		Subtitle      string   `json:"subtitle"`
		Authors       []string `json:"authors"`
		Publisher     string   `json:"publisher"`
		PublishedDate string   `json:"publishedDate"`
		Description   string   `json:"description"`
		Categories    []string `json:"categories"`
		PageCount     int      `json:"pageCount"`
		InfoLink      string   `json:"infoLink"`
		ImageLinks    struct {
			Thumbnail string `json:"thumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

func (r volumeResponse) toVolume() Volume {
	info := r.VolumeInfo
	return Volume{
		ID:            r.ID,
		Title:         info.Title,
		Subtitle:      info.Subtitle,
		Authors:       info.Authors,
		Publisher:     info.Publisher,
		PublishedDate: info.PublishedDate,
		Description:   info.Description,
		Categories:    info.Categories,
		PageCount:     info.PageCount,
		Thumbnail:     info.ImageLinks.Thumbnail,
		InfoLink:      info.InfoLink,
	}
}

type searchResponse struct {
	TotalItems int              `json:"totalItems"`
	Items      []volumeResponse `json:"items"`
}

// GoogleBooks is a rate limited client of the Google Books volumes API.
type GoogleBooks struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewGoogleBooks creates a client. An empty baseURL selects DefaultBaseURL.
func NewGoogleBooks(baseURL, apiKey string, logger *zap.Logger) *GoogleBooks {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleBooks{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// 10 requests per second, burst of 10
		rateLimiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		logger:      logger,
	}
}

// Search returns up to SearchSize volumes matching query.
func (g *GoogleBooks) Search(ctx context.Context, query string) ([]Volume, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(SearchSize))
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	body, err := g.get(ctx, g.baseURL+"/volumes?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	volumes := make([]Volume, 0, len(resp.Items))
	for _, item := range resp.Items {
		volumes = append(volumes, item.toVolume())
	}
	g.logger.Debug("google books search",
		zap.String("query", query),
		zap.Int("results", len(volumes)),
		zap.Int("total", resp.TotalItems),
	)
	return volumes, nil
}

// Volume looks up a single volume by id.
func (g *GoogleBooks) Volume(ctx context.Context, id string) (*Volume, error) {
	endpoint := g.baseURL + "/volumes/" + url.PathEscape(id)
	if g.apiKey != "" {
		endpoint += "?" + url.Values{"key": {g.apiKey}}.Encode()
	}

	body, err := g.get(ctx, endpoint)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, ErrVolumeNotFound
		}
		return nil, fmt.Errorf("volume request: %w", err)
	}

	var resp volumeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.ID == "" {
		resp.ID = id
	}
	v := resp.toVolume()
	return &v, nil
}

func (g *GoogleBooks) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return body, nil
}

// wait blocks until rate limiter allows a request.
func (g *GoogleBooks) wait(ctx context.Context) error {
	return g.rateLimiter.Wait(ctx)
}
