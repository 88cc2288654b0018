package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Model == "" || cfg.Workspace == "" || cfg.PDFDir == "" || cfg.InstallDir == "" {
		t.Fatalf("default config invalid: %+v", cfg)
	}
	if cfg.Workers < 1 || cfg.TimeoutSeconds < 1 {
		t.Fatalf("default config invalid: %+v", cfg)
	}
	if cfg.Timeout() != 300*time.Second {
		t.Fatalf("unexpected default timeout: %v", cfg.Timeout())
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("not_exists.yml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("missing file should yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoadReadsAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lop.yml")
	content := []byte("server_url: http://vllm.internal:8000\nmodel: allenai/olmOCR-7B-0825\nworkers: 2\ntimeout_seconds: 60\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "http://vllm.internal:8000" || cfg.Workers != 2 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Timeout() != time.Minute {
		t.Fatalf("unexpected timeout: %v", cfg.Timeout())
	}
	// Fields absent from the file keep their defaults.
	if cfg.Workspace != Default().Workspace || cfg.InstallDir != Default().InstallDir {
		t.Fatalf("defaults not preserved: %+v", cfg)
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lop.yml")
	content := []byte("server_url: http://from-file:8000\napi_key: file-key\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("OLMOCR_SERVER_URL", "https://api.deepinfra.com/v1/openai")
	t.Setenv("OLMOCR_API_KEY", "env-key")
	t.Setenv("OLMOCR_WORKSPACE", "scratch")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "https://api.deepinfra.com/v1/openai" {
		t.Fatalf("env should win over file, got %q", cfg.ServerURL)
	}
	if cfg.APIKey != "env-key" || cfg.Workspace != "scratch" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestEmptyEnvDoesNotClobber(t *testing.T) {
	t.Setenv("OLMOCR_MODEL", "   ")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != Default().Model {
		t.Fatalf("blank env var should not clobber default, got %q", cfg.Model)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"zero workers", "workers: 0\n"},
		{"negative timeout", "timeout_seconds: -5\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lop.yml")
			if err := os.WriteFile(path, []byte(tc.content), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}
