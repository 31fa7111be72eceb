package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalUploader stores uploads on the local filesystem for development setups
// without an image host. Files are served back under BaseURL.
type LocalUploader struct {
	Dir     string
	BaseURL string
	log     *zap.Logger
}

// NewLocalUploader creates dir if needed and returns an uploader rooted there.
func NewLocalUploader(dir, baseURL string, log *zap.Logger) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir media dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalUploader{Dir: dir, BaseURL: strings.TrimSuffix(baseURL, "/"), log: log}, nil
}

// Upload writes f to Dir/folder/<name>-<uuid>.<ext> and returns its URL.
func (l *LocalUploader) Upload(ctx context.Context, folder string, f File) (string, error) {
	ext, body, err := sniff(f)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(l.Dir, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	name := uuid.NewString() + "." + ext
	if base := baseName(f.Name); base != "" && base != "." {
		name = base + "-" + name
	}

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	written, err := io.Copy(dst, io.LimitReader(body, MaxUploadSize+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > MaxUploadSize {
		err = fmt.Errorf("upload exceeds %d bytes", MaxUploadSize)
	}
	if err != nil {
		_ = os.Remove(filepath.Join(dir, name))
		return "", fmt.Errorf("write file: %w", err)
	}

	l.log.Debug("stored upload", zap.String("folder", folder), zap.String("name", name), zap.Int64("bytes", written))
	return l.BaseURL + "/" + folder + "/" + name, nil
}
