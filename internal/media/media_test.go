package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
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

func TestSniff(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		wantExt string
		wantErr bool
	}{
		{"png", pngHeader, "png", false},
		{"jpeg", jpegHeader, "jpg", false},
		{"gif", []byte("GIF89a......"), "", true},
		{"text", []byte("hello world"), "", true},
		{"empty", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, r, err := sniff(File{Name: "x", Body: bytes.NewReader(tt.body)})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, ext)

			replay, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, tt.body, replay, "sniffed bytes must be replayed")
		})
	}
}

func TestSniff_RejectMessage(t *testing.T) {
	_, _, err := sniff(File{Name: "doc.pdf", Body: strings.NewReader("%PDF-1.4 ...")})
	require.Error(t, err)
	assert.Equal(t, "Only jpg and png images are allowed", apperr.MessageOf(err))
}

func TestCloudinaryUploader_Upload(t *testing.T) {
	var gotFields map[string]string
	var gotFile []byte
	var gotURL string

	u := NewCloudinaryUploader("demo", "key123", "s3cret")
	u.now = func() time.Time { return time.Unix(1700000000, 0) }
	u.HTTPClient = &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		_, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
		if err != nil {
			return nil, err
		}
		mr := multipart.NewReader(req.Body, params["boundary"])
		gotFields = map[string]string{}
		for {
			p, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			data, _ := io.ReadAll(p)
			if p.FormName() == "file" {
				gotFile = data
				continue
			}
			gotFields[p.FormName()] = string(data)
		}
		return jsonResponse(http.StatusOK, `{"secure_url":"https://res.cloudinary.com/demo/image/upload/v1/book-haven/covers/x.png"}`), nil
	})}

	body := append(append([]byte{}, pngHeader...), []byte("rest-of-image")...)
	url, err := u.Upload(context.Background(), FolderCovers, File{Name: "cover.png", Body: bytes.NewReader(body)})
	require.NoError(t, err)

	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/v1/book-haven/covers/x.png", url)
	assert.Equal(t, "https://api.cloudinary.com/v1_1/demo/image/upload", gotURL)
	assert.Equal(t, "key123", gotFields["api_key"])
	assert.Equal(t, "1700000000", gotFields["timestamp"])
	assert.Equal(t, FolderCovers, gotFields["folder"])
	assert.Equal(t, u.sign(FolderCovers, "1700000000"), gotFields["signature"])
	assert.Len(t, gotFields["signature"], 40)
	assert.Equal(t, body, gotFile)
}

func TestCloudinaryUploader_ErrorResponse(t *testing.T) {
	u := NewCloudinaryUploader("demo", "k", "s")
	u.HTTPClient = &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"error":{"message":"Invalid Signature"}}`), nil
	})}

	_, err := u.Upload(context.Background(), FolderProfiles, File{Name: "a.jpg", Body: bytes.NewReader(jpegHeader)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid Signature")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestCloudinaryUploader_RejectsBeforeNetwork(t *testing.T) {
	called := false
	u := NewCloudinaryUploader("demo", "k", "s")
	u.HTTPClient = &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return jsonResponse(http.StatusOK, `{}`), nil
	})}

	_, err := u.Upload(context.Background(), FolderCovers, File{Name: "a.txt", Body: strings.NewReader("plain text")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.False(t, called, "transport must not be used for rejected files")
}

func TestLocalUploader_Upload(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(dir, "http://localhost:8080/media/", nil)
	require.NoError(t, err)

	body := append(append([]byte{}, jpegHeader...), []byte("pixels")...)
	url, err := u.Upload(context.Background(), FolderProfiles, File{Name: `C:\pics\me.jpeg`, Body: bytes.NewReader(body)})
	require.NoError(t, err)

	prefix := "http://localhost:8080/media/" + FolderProfiles + "/me-"
	require.True(t, strings.HasPrefix(url, prefix), "url %q", url)
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	name := strings.TrimPrefix(url, "http://localhost:8080/media/"+FolderProfiles+"/")
	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(FolderProfiles), name))
	require.NoError(t, err)
	assert.Equal(t, body, stored)
}

func TestLocalUploader_Rejects(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(dir, "/media", nil)
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), FolderCovers, File{Name: "a.gif", Body: strings.NewReader("GIF89a")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
