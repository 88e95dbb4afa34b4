// Package artifact resolves model and tokenizer artifacts from a local
// Hugging Face style cache, fetching them from a remote hub when absent.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"forecastd/internal/common/fsutil"
)

// Artifact is a resolved on-disk artifact directory.
type Artifact struct {
	Locator string
	Path    string
}

// Source resolves artifacts by locator. A locator is either a filesystem path
// or a remote repository reference of the form "org/name".
type Source interface {
	ResolveLocal(locator string) (Artifact, bool)
	FetchRemote(ctx context.Context, locator string) (Artifact, error)
}

// NetworkError reports a failed remote fetch.
type NetworkError struct {
	Locator string
	Err     error
}

func (e *NetworkError) Error() string { return "fetch " + e.Locator + ": " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err came from a remote fetch.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Resolve returns the artifact for locator, preferring the local cache.
// fetched is true when the artifact had to be downloaded.
func Resolve(ctx context.Context, src Source, locator string) (a Artifact, fetched bool, err error) {
	if a, ok := src.ResolveLocal(locator); ok {
		return a, false, nil
	}
	a, err = src.FetchRemote(ctx, locator)
	if err != nil {
		return Artifact{}, false, err
	}
	return a, true, nil
}

// HubSource implements Source over a hub-compatible HTTP endpoint and the
// "models--org--name/snapshots/<rev>" cache layout.
type HubSource struct {
	cacheDir   string
	baseURL    string
	files      []string
	httpClient *http.Client
	log        zerolog.Logger
}

// HubConfig configures a HubSource.
type HubConfig struct {
	CacheDir       string
	BaseURL        string
	Files          []string
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

// NewHubSource constructs a HubSource.
func NewHubSource(cfg HubConfig) (*HubSource, error) {
	dir, err := fsutil.ExpandHome(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Downloads can be large; deadlines come from the caller's context.
	return &HubSource{
		cacheDir:   dir,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		files:      append([]string(nil), cfg.Files...),
		httpClient: &http.Client{Transport: tr},
		log:        cfg.Logger,
	}, nil
}

// isPathLocator reports whether locator names a filesystem path.
func isPathLocator(locator string) bool {
	return filepath.IsAbs(locator) || strings.HasPrefix(locator, ".") || strings.HasPrefix(locator, "~")
}

// splitRepo validates an "org/name" reference.
func splitRepo(locator string) (org, name string, err error) {
	parts := strings.Split(locator, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository reference %q", locator)
	}
	return parts[0], parts[1], nil
}

func (s *HubSource) repoDir(org, name string) string {
	return filepath.Join(s.cacheDir, "models--"+org+"--"+name)
}

// ResolveLocal looks the locator up on disk without touching the network.
func (s *HubSource) ResolveLocal(locator string) (Artifact, bool) {
	if isPathLocator(locator) {
		p, err := fsutil.ExpandHome(locator)
		if err != nil || !fsutil.PathExists(p) {
			return Artifact{}, false
		}
		return Artifact{Locator: locator, Path: p}, true
	}
	org, name, err := splitRepo(locator)
	if err != nil {
		return Artifact{}, false
	}
	snapshots := filepath.Join(s.repoDir(org, name), "snapshots")
	entries, err := os.ReadDir(snapshots)
	if err != nil {
		return Artifact{}, false
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		p := filepath.Join(snapshots, d)
		if s.complete(p) {
			return Artifact{Locator: locator, Path: p}, true
		}
	}
	return Artifact{}, false
}

// complete reports whether every configured file exists in dir.
func (s *HubSource) complete(dir string) bool {
	for _, f := range s.files {
		if !fsutil.PathExists(filepath.Join(dir, f)) {
			return false
		}
	}
	return true
}

// FetchRemote downloads every configured file of the artifact into the
// cache under the "main" snapshot.
func (s *HubSource) FetchRemote(ctx context.Context, locator string) (Artifact, error) {
	if isPathLocator(locator) {
		return Artifact{}, &NetworkError{Locator: locator, Err: errors.New("local path not found and cannot be fetched")}
	}
	org, name, err := splitRepo(locator)
	if err != nil {
		return Artifact{}, &NetworkError{Locator: locator, Err: err}
	}
	dest := filepath.Join(s.repoDir(org, name), "snapshots", "main")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create cache dir: %w", err)
	}
	start := time.Now()
	s.log.Info().Str("locator", locator).Str("dest", dest).Msg("artifact fetch start")
	for _, f := range s.files {
		url := s.baseURL + "/" + org + "/" + name + "/resolve/main/" + f
		if err := s.download(ctx, url, filepath.Join(dest, f)); err != nil {
			return Artifact{}, &NetworkError{Locator: locator, Err: err}
		}
	}
	s.log.Info().Str("locator", locator).Dur("dur", time.Since(start)).Msg("artifact fetch done")
	return Artifact{Locator: locator, Path: dest}, nil
}

func (s *HubSource) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: %s: %s", url, resp.Status, strings.TrimSpace(string(b)))
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
