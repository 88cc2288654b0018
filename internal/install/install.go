// Package install places filebrowser release binaries on disk.
//
// An install is a single executable plus a version.json manifest in the
// target directory. Installing a version that is already present is a no-op
// and performs no network traffic.
package install

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yharby/langflow-ollama-pixi/internal/file"
	"github.com/yharby/langflow-ollama-pixi/internal/platform"
	"github.com/yharby/langflow-ollama-pixi/internal/release"
)

const (
	baseBinaryName = "filebrowser"
	manifestName   = "version.json"

	defaultDownloadTimeout = 10 * time.Minute

	executablePerm os.FileMode = 0o755
)

// BinaryName returns the on-disk name of the managed binary for a platform.
func BinaryName(tag platform.Tag) string {
	if tag.OS == platform.Windows {
		return baseBinaryName + ".exe"
	}
	return baseBinaryName
}

// Record describes an installed binary.
type Record struct {
	BinaryPath  string    `json:"binary_path"`
	Version     string    `json:"version"`
	InstalledAt time.Time `json:"installed_at"`
}

// manifest is the version.json sidecar written next to the binary.
type manifest struct {
	Version     string    `json:"version"`
	FileName    string    `json:"file_name"`
	InstalledAt time.Time `json:"installed_at"`
}

// ProgressFunc receives the running byte count during a download. total is
// -1 when the server does not announce a content length.
type ProgressFunc func(downloaded, total int64)

// HTTPClient is the minimal client surface needed for downloads.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures an Installer.
type Option func(*Installer)

// WithHTTPClient replaces the download client.
func WithHTTPClient(h HTTPClient) Option {
	return func(i *Installer) {
		if h != nil {
			i.httpClient = h
		}
	}
}

// WithTimeout bounds a single artifact download.
func WithTimeout(d time.Duration) Option {
	return func(i *Installer) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithProgress registers a download progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(i *Installer) {
		i.progress = fn
	}
}

// Installer downloads release artifacts and installs them, once per version.
type Installer struct {
	httpClient HTTPClient
	timeout    time.Duration
	progress   ProgressFunc
	now        func() time.Time
	runVersion func(ctx context.Context, bin string) ([]byte, error)
}

// NewInstaller builds an Installer. The default client follows redirects,
// which GitHub asset URLs require.
func NewInstaller(opts ...Option) *Installer {
	inst := &Installer{
		httpClient: http.DefaultClient,
		timeout:    defaultDownloadTimeout,
		now:        time.Now,
		runVersion: runVersionCommand,
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// Install downloads the artifact into dir and returns the resulting record.
// When the manifest already names the artifact's version and the binary is
// still on disk, the existing install is returned untouched.
func (i *Installer) Install(ctx context.Context, artifact release.Artifact, dir string) (Record, error) {
	if err := file.EnsureDir(dir); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	target := filepath.Join(dir, BinaryName(artifact.Platform))
	if rec, ok := readManifest(dir, target); ok && rec.Version == artifact.Version {
		log.Debug().
			Str("version", rec.Version).
			Str("path", target).
			Msg("binary already installed, skipping download")
		return rec, nil
	}

	if err := i.download(ctx, artifact, target); err != nil {
		return Record{}, err
	}
	if artifact.Platform.OS != platform.Windows {
		if err := os.Chmod(target, executablePerm); err != nil {
			return Record{}, fmt.Errorf("%w: chmod %s: %v", ErrWrite, target, err)
		}
	}

	rec := Record{
		BinaryPath:  target,
		Version:     artifact.Version,
		InstalledAt: i.now().UTC(),
	}
	m := manifest{Version: rec.Version, FileName: artifact.FileName, InstalledAt: rec.InstalledAt}
	if err := file.WriteJSONAtomic(filepath.Join(dir, manifestName), m); err != nil {
		return Record{}, fmt.Errorf("%w: write manifest: %v", ErrWrite, err)
	}

	log.Info().
		Str("version", rec.Version).
		Str("path", target).
		Msg("binary installed")
	return rec, nil
}

// Installed reports the existing install in dir for the platform, if any.
func Installed(dir string, tag platform.Tag) (Record, bool) {
	return readManifest(dir, filepath.Join(dir, BinaryName(tag)))
}

func (i *Installer) download(ctx context.Context, artifact release.Artifact, target string) error {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifact.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request for %s: %v", ErrDownload, artifact.DownloadURL, err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch %s: %v", ErrDownload, artifact.DownloadURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", ErrDownload, artifact.DownloadURL, resp.StatusCode)
	}

	log.Debug().
		Str("url", artifact.DownloadURL).
		Int64("bytes", resp.ContentLength).
		Msg("downloading artifact")

	reader := io.Reader(resp.Body)
	if i.progress != nil {
		reader = &progressReader{r: resp.Body, total: resp.ContentLength, report: i.progress}
	}
	if err := file.CopyAtomic(target, reader); err != nil {
		return fmt.Errorf("%w: store %s: %v", ErrWrite, target, err)
	}
	return nil
}

// readManifest loads the sidecar and confirms the binary it describes still
// exists. A missing or unreadable manifest means no install.
func readManifest(dir, target string) (Record, bool) {
	if _, err := os.Stat(target); err != nil {
		return Record{}, false
	}

	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return Record{}, false
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil || m.Version == "" {
		return Record{}, false
	}
	return Record{BinaryPath: target, Version: m.Version, InstalledAt: m.InstalledAt}, true
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report(p.read, p.total)
	}
	return n, err
}
