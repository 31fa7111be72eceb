package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/Akash-kotagiri/book-haven/internal/apperr"
	"github.com/Akash-kotagiri/book-haven/internal/media"
)

// MaxRequestBytes caps request bodies, file parts included.
const MaxRequestBytes = 10 << 20

// payload gives uniform, presence-aware access to JSON, urlencoded and
// multipart request bodies.
type payload struct {
	json  map[string]json.RawMessage
	form  url.Values
	files map[string][]*multipart.FileHeader
}

// readPayload parses the body of r according to its Content-Type.
// An empty body yields an empty payload.
func readPayload(w http.ResponseWriter, r *http.Request) (*payload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	p := &payload{}

	ct := r.Header.Get("Content-Type")
	mediaType := ""
	if ct != "" {
		var err error
		mediaType, _, err = mime.ParseMediaType(ct)
		if err != nil {
			return nil, apperr.Validation("invalid Content-Type").Wrap(err)
		}
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(MaxRequestBytes); err != nil {
			return nil, bodyError(err)
		}
		p.form = r.MultipartForm.Value
		p.files = r.MultipartForm.File
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err)
		}
		p.form = r.PostForm
	default:
		if err := json.NewDecoder(r.Body).Decode(&p.json); err != nil && !errors.Is(err, io.EOF) {
			return nil, bodyError(err)
		}
	}
	return p, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return apperr.Validation("Request body too large")
	}
	return apperr.Validation("invalid request body").Wrap(err)
}

// String returns the value of key and whether it was supplied.
// A JSON null counts as absent.
func (p *payload) String(key string) (string, bool, error) {
	if p.form != nil {
		vs, ok := p.form[key]
		if !ok || len(vs) == 0 {
			return "", false, nil
		}
		return vs[0], true, nil
	}
	raw, ok := p.json[key]
	if !ok || string(raw) == "null" {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, apperr.Validation(key + " must be a string")
	}
	return s, true, nil
}

// StringPtr is String with presence encoded as a nil pointer.
func (p *payload) StringPtr(key string) (*string, error) {
	s, ok, err := p.String(key)
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

// Strings returns a list value. Form bodies may repeat the key or carry a
// single JSON array; an empty single value means an empty list.
func (p *payload) Strings(key string) (*[]string, error) {
	if p.form != nil {
		vs, ok := p.form[key]
		if !ok {
			return nil, nil
		}
		list := []string{}
		if len(vs) == 1 {
			v := strings.TrimSpace(vs[0])
			switch {
			case v == "":
			case strings.HasPrefix(v, "["):
				if err := json.Unmarshal([]byte(v), &list); err != nil {
					return nil, apperr.Validation(key + " must be a list of strings")
				}
			default:
				list = append(list, vs[0])
			}
			return &list, nil
		}
		list = append(list, vs...)
		return &list, nil
	}

	raw, ok := p.json[key]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	list := []string{}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, apperr.Validation(key + " must be a list of strings")
	}
	return &list, nil
}

// File opens the uploaded file in field name. It returns nil when no file
// was sent; the caller closes the returned closer.
func (p *payload) File(name string) (*media.File, io.Closer, error) {
	fhs := p.files[name]
	if len(fhs) == 0 {
		return nil, nil, nil
	}
	fh := fhs[0]
	if fh.Size > media.MaxUploadSize {
		return nil, nil, apperr.Validation("File too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, apperr.Validation("invalid file upload").Wrap(err)
	}
	return &media.File{Name: fh.Filename, Body: f}, f, nil
}

// allowContentTypes rejects bodies whose media type is not one of types
// with a 415 in the usual error shape. Empty bodies pass through.
func allowContentTypes(types ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}
			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if _, ok := allowed[mediaType]; err != nil || !ok {
				writeJSON(w, http.StatusUnsupportedMediaType, ErrorResponse{
					Error: "Unsupported Content-Type",
					Code:  "UNSUPPORTED_MEDIA_TYPE",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
