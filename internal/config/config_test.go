package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if cfg.Downloader == "" || cfg.Transcoder == "" || cfg.AudioFormat == "" {
		t.Fatalf("default config invalid: %+v", cfg)
	}
	if cfg.MaxConcurrentJobs < 1 || cfg.CancelGrace() <= 0 {
		t.Fatalf("default limits invalid: %+v", cfg)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("not_exists.yml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Downloader != "yt-dlp" {
		t.Fatalf("expected default downloader, got %q", cfg.Downloader)
	}
}

func TestLoadReadsAndValidates(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "engine.yml")
	content := []byte("downloader: /opt/bin/yt-dlp\nmax_concurrent_jobs: 2\ncancel_grace_seconds: 3\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Downloader != "/opt/bin/yt-dlp" || cfg.MaxConcurrentJobs != 2 || cfg.CancelGraceSeconds != 3 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Transcoder != "ffmpeg" {
		t.Fatalf("expected default transcoder to survive partial config, got %q", cfg.Transcoder)
	}
}

func TestLoadRejectsInvalidConcurrency(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "engine.yml")
	if err := os.WriteFile(path, []byte("max_concurrent_jobs: 0\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid concurrency")
	}
}

func TestParseArgs(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		port    int
		wantErr bool
	}{
		{"no args", nil, 0, true},
		{"valid port", []string{"5123"}, 5123, false},
		{"zero port", []string{"0"}, 0, true},
		{"negative port", []string{"-1"}, 0, true},
		{"not a number", []string{"abc"}, 0, true},
		{"too large", []string{"70000"}, 0, true},
		{"too many args", []string{"5123", "x", "y"}, 0, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			port, _, err := ParseArgs(c.args)
			if c.wantErr {
				if !errors.Is(err, ErrUsage) {
					t.Fatalf("expected ErrUsage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if port != c.port {
				t.Fatalf("port = %d, want %d", port, c.port)
			}
		})
	}
}

func TestParseArgsWithAuxDir(t *testing.T) {
	dir := t.TempDir()
	port, aux, err := ParseArgs([]string{"8080", dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 8080 || aux != dir {
		t.Fatalf("got port=%d aux=%q", port, aux)
	}

	if _, _, err := ParseArgs([]string{"8080", filepath.Join(dir, "missing")}); err == nil {
		t.Fatalf("expected error for missing aux dir")
	}
}
