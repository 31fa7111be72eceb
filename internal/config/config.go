// Package config provides functionality for managing configuration options
// for the server and the client using command-line flags, an optional JSON
// config file, a .env file and environment variables.
//
// Precedence, lowest to highest: defaults, config file, explicitly set
// flags, .env file, process environment.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Duration is a time.Duration that reads "1h30m" style strings from JSON.
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or seconds: %w", err)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// ServerOptions holds the configuration of the API server.
type ServerOptions struct {
	// Address is the listening address (ip:port).
	Address string `json:"server_address"`
	// DatabaseDSN is the PostgreSQL connection string. When empty the
	// server keeps its data in memory.
	DatabaseDSN string `json:"database_dsn"`
	// JWTSecret signs bearer tokens. Required.
	JWTSecret string `json:"jwt_secret"`
	// TokenTTL is the validity window of issued tokens.
	TokenTTL Duration `json:"token_ttl"`

	CloudinaryCloudName string `json:"cloudinary_cloud_name"`
	CloudinaryAPIKey    string `json:"cloudinary_api_key"`
	CloudinaryAPISecret string `json:"cloudinary_api_secret"`

	// MediaDir enables the local filesystem uploader when Cloudinary is not configured.
	MediaDir string `json:"media_dir"`
	// MediaBaseURL is the public URL prefix of files stored in MediaDir.
	MediaBaseURL string `json:"media_base_url"`

	// CORSOrigins are the origins allowed to call the API.
	CORSOrigins []string `json:"cors_origins"`
	LogLevel    string   `json:"log_level"`

	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// Config is the path to the JSON config file.
	Config string `json:"-"`
	// EnvFile is the path to the .env file.
	EnvFile string `json:"-"`
}

// CloudinaryEnabled reports whether all Cloudinary credentials are set.
func (o *ServerOptions) CloudinaryEnabled() bool {
	return o.CloudinaryCloudName != "" && o.CloudinaryAPIKey != "" && o.CloudinaryAPISecret != ""
}

// Validate checks that the options can start a server.
func (o *ServerOptions) Validate() error {
	var errs []error
	if o.Address == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if o.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if o.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		errs = append(errs, errors.New("TLS_CERT and TLS_KEY must be set together"))
	}
	return errors.Join(errs...)
}

// ClientOptions holds the configuration of the command-line client.
type ClientOptions struct {
	// APIURL is the base URL of the BookHaven server.
	APIURL string `json:"api_url"`
	// GoogleBooksKey is the optional Google Books API key.
	GoogleBooksKey string `json:"google_books_api_key"`
	// GoogleBooksURL overrides the Google Books endpoint.
	GoogleBooksURL string `json:"google_books_url"`
	// TokenFile persists the session token between runs.
	TokenFile string `json:"token_file"`
	// CacheFile persists the catalog cache between runs.
	CacheFile string `json:"cache_file"`
	// CacheTTL is the lifetime of cached catalog responses.
	CacheTTL Duration `json:"cache_ttl"`
	// CacheSize bounds the number of cached catalog responses.
	CacheSize int `json:"cache_size"`
	// Debug enables development logging.
	Debug bool `json:"debug"`

	Config  string `json:"-"`
	EnvFile string `json:"-"`
}

// Validate checks the client options.
func (o *ClientOptions) Validate() error {
	var errs []error
	if o.APIURL == "" {
		errs = append(errs, errors.New("API_URL is required"))
	}
	if o.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}
	if o.CacheSize <= 0 {
		errs = append(errs, errors.New("cache size must be positive"))
	}
	return errors.Join(errs...)
}

// lookupFunc returns the value of an environment variable and whether it is set.
type lookupFunc func(key string) (string, bool)

// ParseServer parses args (without the program name) and the environment.
func ParseServer(args []string) (*ServerOptions, error) {
	return parseServer(args, os.LookupEnv)
}

func parseServer(args []string, lookup lookupFunc) (*ServerOptions, error) {
	o := &ServerOptions{
		Address:     "localhost:8080",
		TokenTTL:    Duration(time.Hour),
		CORSOrigins: []string{"http://localhost:3000"},
		LogLevel:    "info",
	}

	var ttl time.Duration
	var origins string
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.Address, "a", o.Address, "run on ip:port server")
	fs.StringVar(&o.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&o.JWTSecret, "jwt-secret", "", "token signing secret")
	fs.DurationVar(&ttl, "token-ttl", time.Hour, "token validity window")
	fs.StringVar(&o.MediaDir, "media-dir", "", "directory for locally stored uploads")
	fs.StringVar(&o.MediaBaseURL, "media-url", "", "public URL prefix of locally stored uploads")
	fs.StringVar(&origins, "cors", "", "comma separated allowed origins")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "log level")
	fs.StringVar(&o.TLSCert, "tls-cert", "", "TLS certificate file")
	fs.StringVar(&o.TLSKey, "tls-key", "", "TLS key file")
	fs.StringVar(&o.Config, "config", "config.json", "path to config file")
	fs.StringVar(&o.Config, "c", "config.json", "path to config file (shorthand)")
	fs.StringVar(&o.EnvFile, "env-file", ".env", "path to .env file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := visited(fs)
	// Flag values are reapplied after the config file so explicit flags win.
	flagged := *o

	if v, ok := lookup("CONFIG"); ok && v != "" {
		o.Config = v
	}
	if err := loadFile(o.Config, o); err != nil {
		return nil, err
	}

	if set["a"] {
		o.Address = flagged.Address
	}
	if set["d"] {
		o.DatabaseDSN = flagged.DatabaseDSN
	}
	if set["jwt-secret"] {
		o.JWTSecret = flagged.JWTSecret
	}
	if set["token-ttl"] {
		o.TokenTTL = Duration(ttl)
	}
	if set["media-dir"] {
		o.MediaDir = flagged.MediaDir
	}
	if set["media-url"] {
		o.MediaBaseURL = flagged.MediaBaseURL
	}
	if set["cors"] {
		o.CORSOrigins = splitList(origins)
	}
	if set["log-level"] {
		o.LogLevel = flagged.LogLevel
	}
	if set["tls-cert"] {
		o.TLSCert = flagged.TLSCert
	}
	if set["tls-key"] {
		o.TLSKey = flagged.TLSKey
	}

	env, err := withDotEnv(flagged.EnvFile, lookup)
	if err != nil {
		return nil, err
	}
	envString(env, "SERVER_ADDRESS", &o.Address)
	envString(env, "DATABASE_DSN", &o.DatabaseDSN)
	envString(env, "JWT_SECRET", &o.JWTSecret)
	envString(env, "CLOUDINARY_CLOUD_NAME", &o.CloudinaryCloudName)
	envString(env, "CLOUDINARY_API_KEY", &o.CloudinaryAPIKey)
	envString(env, "CLOUDINARY_API_SECRET", &o.CloudinaryAPISecret)
	envString(env, "MEDIA_DIR", &o.MediaDir)
	envString(env, "MEDIA_BASE_URL", &o.MediaBaseURL)
	envString(env, "LOG_LEVEL", &o.LogLevel)
	envString(env, "TLS_CERT", &o.TLSCert)
	envString(env, "TLS_KEY", &o.TLSKey)
	if v, ok := env("CORS_ORIGIN"); ok && v != "" {
		o.CORSOrigins = splitList(v)
	}
	if err := envDuration(env, "TOKEN_TTL", &o.TokenTTL); err != nil {
		return nil, err
	}

	if o.MediaBaseURL == "" {
		scheme := "http"
		if o.TLSCert != "" {
			scheme = "https"
		}
		o.MediaBaseURL = scheme + "://" + o.Address + "/media"
	}
	return o, nil
}

// ParseClient parses args (without the program name) and the environment.
func ParseClient(args []string) (*ClientOptions, error) {
	return parseClient(args, os.LookupEnv)
}

func parseClient(args []string, lookup lookupFunc) (*ClientOptions, error) {
	o := &ClientOptions{
		APIURL:    "http://localhost:8080",
		TokenFile: ".bookhaven/token",
		CacheFile: ".bookhaven/cache.json",
		CacheTTL:  Duration(time.Hour),
		CacheSize: 256,
	}

	var ttl time.Duration
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.APIURL, "api", o.APIURL, "BookHaven server URL")
	fs.StringVar(&o.GoogleBooksKey, "books-key", "", "Google Books API key")
	fs.StringVar(&o.TokenFile, "token-file", o.TokenFile, "file storing the session token")
	fs.StringVar(&o.CacheFile, "cache-file", o.CacheFile, "file storing the catalog cache")
	fs.DurationVar(&ttl, "cache-ttl", time.Hour, "catalog cache lifetime")
	fs.IntVar(&o.CacheSize, "cache-size", o.CacheSize, "maximum cached catalog responses")
	fs.BoolVar(&o.Debug, "debug", false, "enable debug logging")
	fs.StringVar(&o.Config, "config", "client.json", "path to config file")
	fs.StringVar(&o.Config, "c", "client.json", "path to config file (shorthand)")
	fs.StringVar(&o.EnvFile, "env-file", ".env", "path to .env file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := visited(fs)
	flagged := *o

	if v, ok := lookup("CONFIG"); ok && v != "" {
		o.Config = v
	}
	if err := loadFile(o.Config, o); err != nil {
		return nil, err
	}

	if set["api"] {
		o.APIURL = flagged.APIURL
	}
	if set["books-key"] {
		o.GoogleBooksKey = flagged.GoogleBooksKey
	}
	if set["token-file"] {
		o.TokenFile = flagged.TokenFile
	}
	if set["cache-file"] {
		o.CacheFile = flagged.CacheFile
	}
	if set["cache-ttl"] {
		o.CacheTTL = Duration(ttl)
	}
	if set["cache-size"] {
		o.CacheSize = flagged.CacheSize
	}
	if set["debug"] {
		o.Debug = flagged.Debug
	}

	env, err := withDotEnv(flagged.EnvFile, lookup)
	if err != nil {
		return nil, err
	}
	envString(env, "API_URL", &o.APIURL)
	envString(env, "GOOGLE_BOOKS_API_KEY", &o.GoogleBooksKey)
	envString(env, "GOOGLE_BOOKS_URL", &o.GoogleBooksURL)
	envString(env, "TOKEN_FILE", &o.TokenFile)
	envString(env, "CACHE_FILE", &o.CacheFile)
	if err := envDuration(env, "CACHE_TTL", &o.CacheTTL); err != nil {
		return nil, err
	}
	if v, ok := env("CACHE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("CACHE_SIZE: %w", err)
		}
		o.CacheSize = n
	}
	o.APIURL = strings.TrimSuffix(o.APIURL, "/")
	return o, nil
}

func visited(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// loadFile unmarshals the JSON config file at path into dst. A missing file
// is not an error.
func loadFile(path string, dst any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error while reading config file: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

// withDotEnv layers the variables of the .env file at path under lookup.
// A missing file is ignored.
func withDotEnv(path string, lookup lookupFunc) (lookupFunc, error) {
	if path == "" {
		return lookup, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return lookup, nil
		}
		return nil, fmt.Errorf("error while reading env file: %w", err)
	}
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	}, nil
}

func envString(env lookupFunc, key string, dst *string) {
	if v, ok := env(key); ok && v != "" {
		*dst = v
	}
}

func envDuration(env lookupFunc, key string, dst *Duration) error {
	v, ok := env(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = Duration(d)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
