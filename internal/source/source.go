package source

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/obsidianstack/assetrisk/internal/config"
)

// DefaultMaxBytes caps how much a Source reads when no limit is set.
const DefaultMaxBytes = 256 << 20

// ErrNoSource is returned by New when the config names neither a path nor a URL.
var ErrNoSource = errors.New("source: no path or url configured")

// ErrTooLarge is returned when the input exceeds the read limit.
var ErrTooLarge = errors.New("source: input exceeds size limit")

// Source reads one CSV batch.
type Source struct {
	cfg      config.SourceConfig
	client   *http.Client
	stdin    io.Reader
	maxBytes int64
}

// Option customises a Source.
type Option func(*Source)

// WithStdin replaces os.Stdin for Path "-".
func WithStdin(r io.Reader) Option {
	return func(s *Source) { s.stdin = r }
}

// WithMaxBytes sets the read limit.
func WithMaxBytes(n int64) Option {
	return func(s *Source) { s.maxBytes = n }
}

// New returns a Source for cfg. The HTTP client is built once, only when
// cfg names a URL and no path.
func New(cfg config.SourceConfig, opts ...Option) (*Source, error) {
	if cfg.Path == "" && cfg.URL == "" {
		return nil, ErrNoSource
	}
	s := &Source{cfg: cfg, stdin: os.Stdin, maxBytes: DefaultMaxBytes}
	for _, o := range opts {
		o(s)
	}
	if cfg.Path == "" {
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("source: parse url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("source: unsupported url scheme %q", u.Scheme)
		}
		client, err := buildHTTPClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("source: build http client: %w", err)
		}
		s.client = client
	}
	return s, nil
}

// Name returns a short label for the batch: the file or URL base name, or
// "stdin".
func (s *Source) Name() string {
	switch {
	case s.cfg.Path == "-":
		return "stdin"
	case s.cfg.Path != "":
		return path.Base(s.cfg.Path)
	}
	if u, err := url.Parse(s.cfg.URL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		return path.Base(u.Path)
	}
	return s.cfg.URL
}

// Read returns the full CSV text.
func (s *Source) Read(ctx context.Context) (string, error) {
	switch {
	case s.cfg.Path == "-":
		return s.readAll(s.stdin)
	case s.cfg.Path != "":
		f, err := os.Open(s.cfg.Path)
		if err != nil {
			return "", fmt.Errorf("source: %w", err)
		}
		defer f.Close()
		return s.readAll(f)
	default:
		return s.fetch(ctx)
	}
}

func (s *Source) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return "", fmt.Errorf("source: build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("source: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return "", fmt.Errorf("source: http get %s: unexpected status %d", s.cfg.URL, resp.StatusCode)
	}
	return s.readAll(resp.Body)
}

func (s *Source) readAll(r io.Reader) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("source: read: %w", err)
	}
	if int64(len(b)) > s.maxBytes {
		return "", ErrTooLarge
	}
	return string(b), nil
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		header := t.auth.Header
		if header == "" {
			header = config.DefaultAuthHeader
		}
		req = req.Clone(req.Context())
		req.Header.Set(header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the source's auth and TLS settings.
func buildHTTPClient(cfg config.SourceConfig) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	if cfg.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs found in ca file %q", cfg.TLS.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultSourceTimeout
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = tlsCfg
	return &http.Client{
		Transport: &authRoundTripper{base: base, auth: cfg.Auth},
		Timeout:   timeout,
	}, nil
}
