// Package config holds the typed runtime configuration. It is built once
// at process start from an optional YAML file plus OLMOCR_* environment
// overrides and then passed around by value; nothing re-reads the
// environment mid-run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultModel          = "allenai/olmOCR-7B-0825-FP8"
	defaultWorkspace      = "olmocr_workspace"
	defaultPDFDir         = "pdf"
	defaultInstallDir     = "bin"
	defaultTimeoutSeconds = 300
	defaultWorkers        = 3
)

// Config describes runtime configuration for the CLI.
type Config struct {
	// ServerURL, when set, routes conversion to the remote API.
	ServerURL string `yaml:"server_url"`
	// APIKey is the bearer credential for the remote API. May be empty
	// for unauthenticated servers.
	APIKey string `yaml:"api_key"`
	// Model is the backend model identifier.
	Model string `yaml:"model"`
	// Workspace is where result logs and pipeline scratch state live.
	Workspace string `yaml:"workspace"`
	// PDFDir is the default input directory when no patterns are given.
	PDFDir string `yaml:"pdf_dir"`
	// InstallDir is where the managed binary is installed.
	InstallDir string `yaml:"install_dir"`
	// ReleaseBaseURL overrides the release index endpoint. Empty means
	// the resolver's default.
	ReleaseBaseURL string `yaml:"release_base_url"`
	// TimeoutSeconds bounds one conversion job.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// Workers caps concurrent conversion jobs for the remote backend.
	Workers int `yaml:"workers"`
}

// Timeout returns the per-job conversion deadline.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Default returns the defaults matching the documented environment.
func Default() Config {
	return Config{
		Model:          defaultModel,
		Workspace:      defaultWorkspace,
		PDFDir:         defaultPDFDir,
		InstallDir:     defaultInstallDir,
		TimeoutSeconds: defaultTimeoutSeconds,
		Workers:        defaultWorkers,
	}
}

// Load reads YAML config from the provided path, applies OLMOCR_*
// environment overrides on top and validates the result. A missing or
// empty file is not an error; defaults are used.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by the operator
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if len(fileData) > 0 {
			if err := yaml.Unmarshal(fileData, &cfg); err != nil {
				return cfg, fmt.Errorf("parse yaml: %w", err)
			}
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv lets the environment win over file values. Recognized names
// match the original scripts.
func (c *Config) applyEnv() {
	setString(&c.ServerURL, "OLMOCR_SERVER_URL")
	setString(&c.APIKey, "OLMOCR_API_KEY")
	setString(&c.Model, "OLMOCR_MODEL")
	setString(&c.Workspace, "OLMOCR_WORKSPACE")
	setString(&c.PDFDir, "OLMOCR_PDF_DIR")
	if raw, ok := os.LookupEnv("OLMOCR_TIMEOUT"); ok {
		if secs, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			c.TimeoutSeconds = secs
		}
	}
}

func (c *Config) normalize() {
	c.ServerURL = strings.TrimSpace(c.ServerURL)
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Workspace == "" {
		c.Workspace = defaultWorkspace
	}
	if c.PDFDir == "" {
		c.PDFDir = defaultPDFDir
	}
	if c.InstallDir == "" {
		c.InstallDir = defaultInstallDir
	}
}

// validate rejects values no component can work with. Explicit, not
// clamped: a bad value is an operator mistake worth surfacing.
func (c Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d (must be >= 1)", c.Workers)
	}
	if c.TimeoutSeconds < 1 {
		return fmt.Errorf("invalid timeout_seconds: %d (must be >= 1)", c.TimeoutSeconds)
	}
	return nil
}

func setString(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}
