// Package release resolves a version selector and platform tag to a single
// downloadable filebrowser artifact via the GitHub releases index.
package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yharby/langflow-ollama-pixi/internal/platform"
)

const (
	// Latest selects the most recently published release.
	Latest = "latest"

	defaultBaseURL  = "https://api.github.com/repos/gtsteffaniak/filebrowser"
	defaultBaseName = "filebrowser"
	defaultTimeout  = 15 * time.Second
)

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// Release is the subset of the index document the resolver depends on.
type Release struct {
	TagName    string  `json:"tag_name"`
	Name       string  `json:"name"`
	Prerelease bool    `json:"prerelease"`
	Assets     []Asset `json:"assets"`
}

// Artifact is a resolved, downloadable binary for one platform/version pair.
type Artifact struct {
	Version     string
	FileName    string
	DownloadURL string
	Size        int64
	Platform    platform.Tag
}

// HTTPClient is the minimal client surface, swappable in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBaseURL points the resolver at a different release index.
func WithBaseURL(base string) Option {
	return func(r *Resolver) {
		if base != "" {
			r.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithBaseName overrides the artifact base name.
func WithBaseName(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.baseName = name
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

// WithTimeout bounds a single index query.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// Resolver queries the release index.
type Resolver struct {
	baseURL  string
	baseName string
	client   HTTPClient
	timeout  time.Duration
}

// NewResolver creates a Resolver with production defaults.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		baseURL:  defaultBaseURL,
		baseName: defaultBaseName,
		client:   http.DefaultClient,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AssetName returns the artifact file name for a platform tag. Windows
// releases publish a single arch-free "<base>.exe"; every other platform
// uses "<os>-<arch>-<base>". The asymmetry matches the upstream release
// layout and must not be normalized away.
func (r *Resolver) AssetName(tag platform.Tag) string {
	if tag.OS == platform.Windows {
		return r.baseName + ".exe"
	}
	return fmt.Sprintf("%s-%s-%s", tag.OS, tag.Arch, r.baseName)
}

// Resolve picks the artifact for the selector/platform pair. A selector of
// Latest asks the index for the newest published release; any other value
// is treated as a literal tag and must exist.
func (r *Resolver) Resolve(ctx context.Context, selector string, tag platform.Tag) (Artifact, error) {
	rel, err := r.fetchRelease(ctx, selector)
	if err != nil {
		return Artifact{}, err
	}

	wanted := r.AssetName(tag)
	for _, asset := range rel.Assets {
		if asset.Name != wanted {
			continue
		}
		log.Debug().
			Str("version", rel.TagName).
			Str("asset", asset.Name).
			Int64("size", asset.Size).
			Msg("release resolved")
		return Artifact{
			Version:     rel.TagName,
			FileName:    asset.Name,
			DownloadURL: asset.BrowserDownloadURL,
			Size:        asset.Size,
			Platform:    tag,
		}, nil
	}

	return Artifact{}, fmt.Errorf("%w: release %s has no artifact %q for %s (available: %s)",
		ErrNotFound, rel.TagName, wanted, tag, strings.Join(assetNames(rel.Assets), ", "))
}

func (r *Resolver) fetchRelease(ctx context.Context, selector string) (*Release, error) {
	url := r.baseURL + "/releases/latest"
	if selector != Latest {
		url = r.baseURL + "/releases/tags/" + selector
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %v", ErrResolution, url, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrResolution, url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: release %q does not exist (%s)", ErrNotFound, selector, url)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s returned status %d", ErrResolution, url, resp.StatusCode)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("%w: decode response from %s: %v", ErrResolution, url, err)
	}
	if rel.TagName == "" {
		return nil, fmt.Errorf("%w: release document from %s has no tag name", ErrResolution, url)
	}
	return &rel, nil
}

func assetNames(assets []Asset) []string {
	names := make([]string, 0, len(assets))
	for _, a := range assets {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}
