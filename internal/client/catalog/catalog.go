package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Akash-kotagiri/book-haven/internal/client/cache"
)

// DefaultQuery is searched when the user gives none.
const DefaultQuery = "books"

var (
	// ErrNoValidFavorites means every favorite id belongs to another catalog.
	ErrNoValidFavorites = errors.New("no valid Google Books favorites found")
	// ErrFavoritesUnavailable means no favorite could be fetched and nothing
	// was cached.
	ErrFavoritesUnavailable = errors.New("all favorite book fetches failed")
)

// Source is the upstream catalog.
type Source interface {
	Search(ctx context.Context, query string) ([]Volume, error)
	Volume(ctx context.Context, id string) (*Volume, error)
}

// Result is the outcome of a catalog read.
type Result struct {
	Volumes []Volume
	// Cached is set when the API was not called.
	Cached bool
	// Stale is set when the API failed and expired cached data was served.
	Stale bool
}

// Catalog serves catalog reads from a TTL cache in front of Source.
// Only non-empty results are cached; when Source fails, expired entries are
// served and flagged as stale.
type Catalog struct {
	src    Source
	cache  *cache.TTLCache[json.RawMessage]
	logger *zap.Logger
}

// New creates a catalog reading from src through c.
func New(src Source, c *cache.TTLCache[json.RawMessage], logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{src: src, cache: c, logger: logger}
}

// SearchKey is the cache key of a search.
func SearchKey(query string) string {
	return "books_" + url.QueryEscape(normalizeQuery(query))
}

// VolumeKey is the cache key of a single volume.
func VolumeKey(id string) string {
	return "volume_" + id
}

// FavoritesKey is the cache key of a favorites list.
func FavoritesKey(ids []string) string {
	return "favorites_" + strings.Join(ids, "_")
}

func normalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return DefaultQuery
	}
	return q
}

// Search returns the volumes matching query, DefaultQuery when empty.
func (c *Catalog) Search(ctx context.Context, query string) (Result, error) {
	query = normalizeQuery(query)
	key := SearchKey(query)
	return c.cached(key, func() ([]Volume, error) {
		return c.src.Search(ctx, query)
	})
}

// Volume returns one volume.
func (c *Catalog) Volume(ctx context.Context, id string) (*Volume, bool, error) {
	res, err := c.cached(VolumeKey(id), func() ([]Volume, error) {
		v, err := c.src.Volume(ctx, id)
		if err != nil {
			return nil, err
		}
		return []Volume{*v}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return &res.Volumes[0], res.Stale, nil
}

// Favorites resolves the favorite ids of a user. Ids from other catalogs
// (prefixed /works/) are skipped and individual failed lookups dropped.
func (c *Catalog) Favorites(ctx context.Context, ids []string) (Result, error) {
	if len(ids) == 0 {
		return Result{Volumes: []Volume{}}, nil
	}

	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !strings.HasPrefix(id, "/works/") {
			valid = append(valid, id)
		}
	}

	return c.cached(FavoritesKey(ids), func() ([]Volume, error) {
		if len(valid) == 0 {
			return nil, ErrNoValidFavorites
		}
		out := make([]Volume, 0, len(valid))
		for _, id := range valid {
			v, err := c.src.Volume(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.logger.Debug("favorite lookup failed", zap.String("id", id), zap.Error(err))
				continue
			}
			out = append(out, *v)
		}
		if len(out) == 0 {
			return nil, ErrFavoritesUnavailable
		}
		return out, nil
	})
}

// cached serves key from the cache, calling fetch on a miss.
func (c *Catalog) cached(key string, fetch func() ([]Volume, error)) (Result, error) {
	if raw, ok := c.cache.Get(key); ok {
		var vols []Volume
		if err := json.Unmarshal(raw, &vols); err == nil {
			return Result{Volumes: vols, Cached: true}, nil
		}
		c.cache.Delete(key)
	}

	vols, err := fetch()
	if err != nil {
		if errors.Is(err, ErrNoValidFavorites) || errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		if raw, _, ok := c.cache.Peek(key); ok {
			var stale []Volume
			if jerr := json.Unmarshal(raw, &stale); jerr == nil {
				c.logger.Info("serving stale catalog data", zap.String("key", key), zap.Error(err))
				return Result{Volumes: stale, Cached: true, Stale: true}, nil
			}
		}
		return Result{}, err
	}

	if len(vols) > 0 {
		if raw, merr := json.Marshal(vols); merr == nil {
			c.cache.Put(key, raw)
		}
	} else {
		vols = []Volume{}
	}
	return Result{Volumes: vols}, nil
}
