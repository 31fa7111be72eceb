package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akash-kotagiri/book-haven/internal/client/cache"
)

// roundTripperFunc lets tests stub the HTTP transport.
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(rt roundTripperFunc) *GoogleBooks {
	g := NewGoogleBooks("https://books.test/v1/", "KEY", nil)
	g.httpClient = &http.Client{Transport: rt}
	return g
}

func TestGoogleBooks_Search(t *testing.T) {
	var gotURL string
	g := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		return jsonResponse(http.StatusOK, `{"totalItems":2,"items":[
			{"id":"v1","volumeInfo":{"title":"Dune","authors":["Frank Herbert"],"imageLinks":{"thumbnail":"http://img/v1"}}},
			{"id":"v2","volumeInfo":{"title":"Emma"}}]}`), nil
	})

	vols, err := g.Search(context.Background(), "frank herbert")
	require.NoError(t, err)
	assert.Equal(t, "https://books.test/v1/volumes?key=KEY&maxResults=40&q=frank+herbert", gotURL)
	require.Len(t, vols, 2)
	assert.Equal(t, Volume{ID: "v1", Title: "Dune", Authors: []string{"Frank Herbert"}, Thumbnail: "http://img/v1"}, vols[0])
	assert.Equal(t, "Emma", vols[1].Title)
}

func TestGoogleBooks_SearchNoItems(t *testing.T) {
	g := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"totalItems":0}`), nil
	})
	vols, err := g.Search(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.Empty(t, vols)
}

func TestGoogleBooks_APIError(t *testing.T) {
	g := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusForbidden, `{"error":{"code":403,"message":"API key not valid."}}`), nil
	})
	_, err := g.Search(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "API key not valid.", apiErr.Message)
}

func TestGoogleBooks_Volume(t *testing.T) {
	g := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == "/v1/volumes/missing" {
			return jsonResponse(http.StatusNotFound, `{"error":{"message":"The volume ID could not be found."}}`), nil
		}
		assert.Equal(t, "/v1/volumes/abc", req.URL.Path)
		assert.Equal(t, "KEY", req.URL.Query().Get("key"))
		return jsonResponse(http.StatusOK, `{"id":"abc","volumeInfo":{"title":"Foo","pageCount":320}}`), nil
	})

	v, err := g.Volume(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Foo", v.Title)
	assert.Equal(t, 320, v.PageCount)

	_, err = g.Volume(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrVolumeNotFound)
}

// fakeSource is an in-memory Source with call counting.
type fakeSource struct {
	SearchFunc func(ctx context.Context, q string) ([]Volume, error)
	VolumeFunc func(ctx context.Context, id string) (*Volume, error)
	calls      int
}

func (f *fakeSource) Search(ctx context.Context, q string) ([]Volume, error) {
	f.calls++
	return f.SearchFunc(ctx, q)
}

func (f *fakeSource) Volume(ctx context.Context, id string) (*Volume, error) {
	f.calls++
	return f.VolumeFunc(ctx, id)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newCatalog(src Source) (*Catalog, *clock) {
	clk := &clock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := cache.New[json.RawMessage](time.Hour, 16, cache.WithClock(clk.now))
	return New(src, c, nil), clk
}

func TestSearchKey(t *testing.T) {
	assert.Equal(t, "books_books", SearchKey(""))
	assert.Equal(t, "books_books", SearchKey("   "))
	assert.Equal(t, "books_frank+herbert", SearchKey("frank herbert"))
	assert.Equal(t, "favorites_a_b", FavoritesKey([]string{"a", "b"}))
	assert.Equal(t, "volume_x", VolumeKey("x"))
}

func TestCatalog_SearchCachesWithinTTL(t *testing.T) {
	var queries []string
	src := &fakeSource{SearchFunc: func(_ context.Context, q string) ([]Volume, error) {
		queries = append(queries, q)
		return []Volume{{ID: "v1", Title: "Dune"}}, nil
	}}
	c, clk := newCatalog(src)
	ctx := context.Background()

	res, err := c.Search(ctx, "")
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, []string{DefaultQuery}, queries)

	res, err = c.Search(ctx, "books")
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 1, src.calls, "hit within the ttl must skip the API")
	assert.Equal(t, "Dune", res.Volumes[0].Title)

	clk.t = clk.t.Add(time.Hour)
	res, err = c.Search(ctx, "books")
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, src.calls, "expired entry must be refetched")
}

func TestCatalog_EmptyResultsNotCached(t *testing.T) {
	src := &fakeSource{SearchFunc: func(context.Context, string) ([]Volume, error) {
		return nil, nil
	}}
	c, _ := newCatalog(src)

	res, err := c.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, res.Volumes)
	assert.Empty(t, res.Volumes)

	_, _ = c.Search(context.Background(), "nothing")
	assert.Equal(t, 2, src.calls)
}

func TestCatalog_StaleFallback(t *testing.T) {
	fail := false
	src := &fakeSource{SearchFunc: func(context.Context, string) ([]Volume, error) {
		if fail {
			return nil, &APIError{Status: 503, Message: "Backend Error"}
		}
		return []Volume{{ID: "v1"}}, nil
	}}
	c, clk := newCatalog(src)
	ctx := context.Background()

	_, err := c.Search(ctx, "dune")
	require.NoError(t, err)

	fail = true
	clk.t = clk.t.Add(2 * time.Hour)
	res, err := c.Search(ctx, "dune")
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, "v1", res.Volumes[0].ID)

	_, err = c.Search(ctx, "never cached")
	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestCatalog_Favorites(t *testing.T) {
	src := &fakeSource{VolumeFunc: func(_ context.Context, id string) (*Volume, error) {
		if id == "bad" {
			return nil, ErrVolumeNotFound
		}
		return &Volume{ID: id, Title: "T-" + id}, nil
	}}
	c, _ := newCatalog(src)
	ctx := context.Background()

	ids := []string{"/works/OL1W", "a", "bad", "b"}
	res, err := c.Favorites(ctx, ids)
	require.NoError(t, err)
	require.Len(t, res.Volumes, 2)
	assert.Equal(t, "a", res.Volumes[0].ID)
	assert.Equal(t, "b", res.Volumes[1].ID)
	assert.Equal(t, 3, src.calls, "/works/ ids must not be looked up")

	res, err = c.Favorites(ctx, ids)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 3, src.calls)
}

func TestCatalog_FavoritesEdgeCases(t *testing.T) {
	src := &fakeSource{VolumeFunc: func(context.Context, string) (*Volume, error) {
		return nil, errors.New("network down")
	}}
	c, _ := newCatalog(src)
	ctx := context.Background()

	res, err := c.Favorites(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Volumes)

	_, err = c.Favorites(ctx, []string{"/works/OL1W"})
	assert.ErrorIs(t, err, ErrNoValidFavorites)

	_, err = c.Favorites(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrFavoritesUnavailable)
}

func TestCatalog_Volume(t *testing.T) {
	src := &fakeSource{VolumeFunc: func(_ context.Context, id string) (*Volume, error) {
		return &Volume{ID: id, Title: "Foo"}, nil
	}}
	c, _ := newCatalog(src)

	v, stale, err := c.Volume(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, stale)
	assert.Equal(t, "Foo", v.Title)

	_, _, err = c.Volume(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
}
