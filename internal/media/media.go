// Package media uploads profile pictures and book covers to an image host
// and returns the durable URL of each stored file.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
)

// Upload folders.
const (
	FolderProfiles = "book-haven/profiles"
	FolderCovers   = "book-haven/covers"
)

// MaxUploadSize caps a single uploaded file.
const MaxUploadSize = 10 << 20

// File is an uploaded file taken from a multipart request.
type File struct {
	Name string
	Body io.Reader
}

// Uploader stores a file in folder and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, folder string, f File) (string, error)
}

var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

// sniff reads the file header, rejects anything but jpg/png and returns the
// detected extension along with a reader replaying the full content.
func sniff(f File) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(f.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", nil, apperr.Validation("Uploaded file is empty")
	}

	ext, ok := allowedTypes[http.DetectContentType(head)]
	if !ok {
		return "", nil, apperr.Validation("Only jpg and png images are allowed")
	}
	return ext, io.MultiReader(bytes.NewReader(head), f.Body), nil
}

// baseName strips directories and the extension from a client supplied name.
func baseName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(name, path.Ext(name))
}
