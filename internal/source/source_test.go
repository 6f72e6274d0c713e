package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/obsidianstack/assetrisk/internal/config"
)

const csvText = "asset_id,timestamp,temperature,vibration_level,pressure,runtime_hours,location\nA1,2024-01-01,90,2.0,160,8000,PlantA\n"

func TestNew_NoSource(t *testing.T) {
	if _, err := New(config.SourceConfig{}); !errors.Is(err, ErrNoSource) {
		t.Errorf("got %v, want ErrNoSource", err)
	}
}

func TestNew_BadScheme(t *testing.T) {
	if _, err := New(config.SourceConfig{URL: "ftp://example.com/a.csv"}); err == nil {
		t.Error("expected error for ftp scheme")
	}
}

func TestRead_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "fleet.csv")
	if err := os.WriteFile(p, []byte(csvText), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := New(config.SourceConfig{Path: p})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != csvText {
		t.Errorf("got %q", got)
	}
	if s.Name() != "fleet.csv" {
		t.Errorf("name: got %q, want fleet.csv", s.Name())
	}
}

func TestRead_MissingFile(t *testing.T) {
	s, _ := New(config.SourceConfig{Path: filepath.Join(t.TempDir(), "nope.csv")})
	if _, err := s.Read(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("got %v, want ErrNotExist", err)
	}
}

func TestRead_Stdin(t *testing.T) {
	s, err := New(config.SourceConfig{Path: "-"}, WithStdin(strings.NewReader(csvText)))
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Read(context.Background())
	if err != nil || got != csvText {
		t.Errorf("got %q, %v", got, err)
	}
	if s.Name() != "stdin" {
		t.Errorf("name: got %q", s.Name())
	}
}

func TestRead_TooLarge(t *testing.T) {
	s, _ := New(config.SourceConfig{Path: "-"}, WithStdin(strings.NewReader(csvText)), WithMaxBytes(10))
	if _, err := s.Read(context.Background()); !errors.Is(err, ErrTooLarge) {
		t.Errorf("got %v, want ErrTooLarge", err)
	}
}

func TestRead_HTTPAuthModes(t *testing.T) {
	t.Setenv("TEST_SOURCE_KEY", "k3y")
	t.Setenv("TEST_SOURCE_TOKEN", "t0ken")
	t.Setenv("TEST_SOURCE_PASS", "pa55")

	tests := []struct {
		name  string
		auth  config.AuthConfig
		check func(r *http.Request) bool
	}{
		{
			name:  "none",
			auth:  config.AuthConfig{Mode: "none"},
			check: func(r *http.Request) bool { return r.Header.Get("Authorization") == "" },
		},
		{
			name:  "apikey default header",
			auth:  config.AuthConfig{Mode: "apikey", KeyEnv: "TEST_SOURCE_KEY"},
			check: func(r *http.Request) bool { return r.Header.Get("x-api-key") == "k3y" },
		},
		{
			name:  "apikey custom header",
			auth:  config.AuthConfig{Mode: "apikey", Header: "X-Token", KeyEnv: "TEST_SOURCE_KEY"},
			check: func(r *http.Request) bool { return r.Header.Get("X-Token") == "k3y" },
		},
		{
			name:  "bearer",
			auth:  config.AuthConfig{Mode: "bearer", TokenEnv: "TEST_SOURCE_TOKEN"},
			check: func(r *http.Request) bool { return r.Header.Get("Authorization") == "Bearer t0ken" },
		},
		{
			name: "basic",
			auth: config.AuthConfig{Mode: "basic", Username: "ops", PasswordEnv: "TEST_SOURCE_PASS"},
			check: func(r *http.Request) bool {
				u, p, ok := r.BasicAuth()
				return ok && u == "ops" && p == "pa55"
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !tc.check(r) {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				w.Write([]byte(csvText))
			}))
			defer srv.Close()

			s, err := New(config.SourceConfig{URL: srv.URL + "/exports/fleet.csv", Auth: tc.auth})
			if err != nil {
				t.Fatal(err)
			}
			got, err := s.Read(context.Background())
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if got != csvText {
				t.Errorf("body: got %q", got)
			}
			if s.Name() != "fleet.csv" {
				t.Errorf("name: got %q", s.Name())
			}
		})
	}
}

func TestRead_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	s, _ := New(config.SourceConfig{URL: srv.URL})
	_, err := s.Read(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unexpected status 404") {
		t.Errorf("got %v, want status error", err)
	}
}

func TestRead_HTTPTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	s, _ := New(config.SourceConfig{URL: srv.URL, Timeout: 50 * time.Millisecond})
	if _, err := s.Read(context.Background()); err == nil {
		t.Error("expected timeout error")
	}
}

func TestRead_TLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(csvText))
	}))
	defer srv.Close()

	strict, _ := New(config.SourceConfig{URL: srv.URL})
	if _, err := strict.Read(context.Background()); err == nil {
		t.Error("self-signed certificate accepted without insecure_skip_verify")
	}

	lax, _ := New(config.SourceConfig{URL: srv.URL, TLS: config.TLSConfig{InsecureSkipVerify: true}})
	if got, err := lax.Read(context.Background()); err != nil || got != csvText {
		t.Errorf("insecure read: got %q, %v", got, err)
	}
}
