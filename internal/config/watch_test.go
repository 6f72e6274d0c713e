package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  http_port: 8081\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { got <- c })
	}()

	// The watcher registers asynchronously; keep rewriting until it sees one.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-got:
			if c.Server.HTTPPort != 8082 {
				t.Errorf("reloaded http_port: got %d, want 8082", c.Server.HTTPPort)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch returned %v", err)
			}
			return
		case <-tick.C:
			_ = os.WriteFile(path, []byte("server:\n  http_port: 8082\n"), 0o600)
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), func(*Config) {})
	if err == nil {
		t.Fatal("expected error watching a missing file")
	}
}

func TestWatch_SkipsInvalidAndUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	valid := []byte("server:\n  http_port: 8081\n")
	if err := os.WriteFile(path, valid, 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 8)
	go Watch(ctx, path, func(c *Config) { got <- c }) //nolint:errcheck

	// Same bytes, then an invalid port, then a real change. Only the last
	// may reach onChange.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	step := 0
	for {
		select {
		case c := <-got:
			if c.Server.HTTPPort != 8083 {
				t.Fatalf("onChange got http_port %d, want only 8083", c.Server.HTTPPort)
			}
			return
		case <-tick.C:
			switch {
			case step < 10:
				_ = os.WriteFile(path, valid, 0o600)
			case step < 20:
				_ = os.WriteFile(path, []byte("server:\n  http_port: 70000\n"), 0o600)
			default:
				_ = os.WriteFile(path, []byte("server:\n  http_port: 8083\n"), 0o600)
			}
			step++
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}
