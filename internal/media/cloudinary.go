package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultCloudinaryURL is the Cloudinary API endpoint.
const DefaultCloudinaryURL = "https://api.cloudinary.com"

// CloudinaryUploader uploads images with Cloudinary's signed upload API.
type CloudinaryUploader struct {
	CloudName string
	APIKey    string
	APISecret string
	// BaseURL overrides DefaultCloudinaryURL.
	BaseURL    string
	HTTPClient *http.Client

	now func() time.Time
}

// NewCloudinaryUploader creates an uploader for the given account.
func NewCloudinaryUploader(cloudName, apiKey, apiSecret string) *CloudinaryUploader {
	return &CloudinaryUploader{
		CloudName:  cloudName,
		APIKey:     apiKey,
		APISecret:  apiSecret,
		BaseURL:    DefaultCloudinaryURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// Upload sends f to Cloudinary under folder and returns its secure URL.
func (c *CloudinaryUploader) Upload(ctx context.Context, folder string, f File) (string, error) {
	_, body, err := sniff(f)
	if err != nil {
		return "", err
	}

	now := time.Now
	if c.now != nil {
		now = c.now
	}
	timestamp := strconv.FormatInt(now().Unix(), 10)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"api_key", c.APIKey},
		{"timestamp", timestamp},
		{"folder", folder},
		{"signature", c.sign(folder, timestamp)},
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return "", fmt.Errorf("write field %s: %w", kv[0], err)
		}
	}
	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, io.LimitReader(body, MaxUploadSize+1)); err != nil {
		return "", fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1_1/%s/image/upload", c.BaseURL, c.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload to cloudinary: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read cloudinary response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(respBody, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("cloudinary upload failed (%d): %s", resp.StatusCode, msg)
	}

	url := gjson.GetBytes(respBody, "secure_url").String()
	if url == "" {
		return "", fmt.Errorf("cloudinary response has no secure_url")
	}
	return url, nil
}

// sign computes the upload signature: the SHA-1 of the alphabetically sorted
// signed parameters followed by the API secret.
func (c *CloudinaryUploader) sign(folder, timestamp string) string {
	sum := sha1.Sum([]byte("folder=" + folder + "&timestamp=" + timestamp + c.APISecret))
	return hex.EncodeToString(sum[:])
}
