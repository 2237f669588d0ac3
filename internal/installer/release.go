package installer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Release describes a tool published as GitHub release archives.
type Release struct {
	Repo   string // owner/name
	Binary string // executable inside the archive
	// Asset names the archive for a version. An empty version asks for the
	// unversioned name served under releases/latest/download.
	Asset func(version, osName, arch string) string
}

// latestRelease is the subset of the GitHub release JSON we read.
type latestRelease struct {
	TagName string `json:"tag_name"`
}

// assetPlatform maps GOOS/GOARCH onto the names used in release assets.
func assetPlatform(goos, goarch string) (string, string, error) {
	var osName, arch string
	switch goos {
	case "linux":
		osName = "Linux"
	case "darwin":
		osName = "Darwin"
	}
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "arm64"
	}
	if osName == "" || arch == "" {
		return "", "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	return osName, arch, nil
}

// LatestTag returns the tag of the latest release of repo. It asks the GitHub
// API first and falls back to the redirect target of releases/latest, which
// is not subject to API rate limits.
func LatestTag(ctx context.Context, k *Toolkit, repo string) (string, error) {
	tag, apiErr := k.latestFromAPI(ctx, repo)
	if apiErr == nil && tag != "" {
		return tag, nil
	}
	k.Log.Debug("", "release API lookup for %s failed: %v", repo, apiErr)

	tag, err := k.latestFromRedirect(ctx, repo)
	if err != nil {
		return "", errors.Join(apiErr, err)
	}
	return tag, nil
}

func (k *Toolkit) latestFromAPI(ctx context.Context, repo string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimRight(k.GitHubAPI, "/"), repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := k.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("GET %s: HTTP status %d", url, resp.StatusCode)
	}

	var rel latestRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return "", fmt.Errorf("decode release JSON for %s: %w", repo, err)
	}
	if rel.TagName == "" {
		return "", fmt.Errorf("release JSON for %s has no tag", repo)
	}
	return rel.TagName, nil
}

// latestFromRedirect reads the tag from the Location of
// <web>/<repo>/releases/latest, e.g. .../releases/tag/v0.54.2.
func (k *Toolkit) latestFromRedirect(ctx context.Context, repo string) (string, error) {
	url := fmt.Sprintf("%s/%s/releases/latest", strings.TrimRight(k.GitHubWeb, "/"), repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", err
	}

	c := *k.client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := c.Do(req)
	if err != nil {
		return "", fmt.Errorf("HEAD %s: %w", url, err)
	}
	resp.Body.Close()

	loc, err := resp.Location()
	if err != nil {
		return "", fmt.Errorf("HEAD %s: no redirect (HTTP status %d)", url, resp.StatusCode)
	}
	tag := path.Base(loc.Path)
	if tag == "" || tag == "." || tag == "/" || tag == "latest" {
		return "", fmt.Errorf("HEAD %s: cannot read tag from %s", url, loc)
	}
	return tag, nil
}

// InstallRelease downloads the archive for the host, extracts rel.Binary and
// installs it into the user bin directory. The versioned asset is tried first;
// when the tag is unknown or that download fails, the unversioned latest
// asset is used.
func InstallRelease(ctx context.Context, k *Toolkit, step string, rel Release) error {
	osName, arch, err := assetPlatform(k.GOOS, k.GOARCH)
	if err != nil {
		return err
	}

	tmp, err := os.MkdirTemp("", "machine-bootstrap-release-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	web := strings.TrimRight(k.GitHubWeb, "/")
	var archive string
	tag, err := LatestTag(ctx, k, rel.Repo)
	if err != nil {
		k.Log.Warn(step, "could not determine latest %s version: %v", rel.Repo, err)
	} else {
		name := rel.Asset(strings.TrimPrefix(tag, "v"), osName, arch)
		url := fmt.Sprintf("%s/%s/releases/download/%s/%s", web, rel.Repo, tag, name)
		k.Log.Info(step, "downloading %s", url)
		archive = filepath.Join(tmp, name)
		if err := k.download(ctx, url, archive); err != nil {
			k.Log.Warn(step, "versioned download failed: %v", err)
			archive = ""
		}
	}

	if archive == "" {
		name := rel.Asset("", osName, arch)
		url := fmt.Sprintf("%s/%s/releases/latest/download/%s", web, rel.Repo, name)
		k.Log.Info(step, "downloading %s", url)
		archive = filepath.Join(tmp, name)
		if err := k.download(ctx, url, archive); err != nil {
			return fmt.Errorf("download %s: %w", rel.Binary, err)
		}
	}

	dir := filepath.Join(tmp, "extracted")
	if err := Extract(archive, dir); err != nil {
		return err
	}
	bin, err := findBinary(dir, rel.Binary)
	if err != nil {
		return err
	}
	if err := k.EnsureBinDir(); err != nil {
		return err
	}
	return installBinary(bin, filepath.Join(k.BinDir, rel.Binary))
}
