package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// RemoteRelease is one entry of the remote release index.
type RemoteRelease struct {
	Version     string `json:"version"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

type githubRelease struct {
	TagName     string `json:"tag_name"`
	PublishedAt string `json:"published_at"`
	Draft       bool   `json:"draft"`
}

// ReleasesURL returns the release index endpoint for the repository.
func (r *Registry) ReleasesURL() string {
	return fmt.Sprintf("%s/repos/%s/releases", r.releaseAPI, r.repository)
}

// FetchLatestRelease returns the most recent published release, or nil when
// the index cannot be reached or is empty.
func (r *Registry) FetchLatestRelease(ctx context.Context) *RemoteRelease {
	releases := r.FetchAllReleases(ctx)
	if len(releases) == 0 {
		return nil
	}
	latest := releases[0]
	return &latest
}

// FetchAllReleases lists published releases, newest first as served by the
// index. Failures are logged and produce an empty list.
func (r *Registry) FetchAllReleases(ctx context.Context) []RemoteRelease {
	if cached, ok := r.cachedReleases(); ok {
		r.log.Debug().Int("releases", len(cached)).Msg("release index served from cache")
		return cached
	}

	releases, err := r.fetchReleases(ctx)
	if err != nil {
		r.log.Warn().Err(err).Str("repository", r.repository).Msg("fetch release index")
		return []RemoteRelease{}
	}
	r.storeReleases(releases)
	return releases
}

func (r *Registry) fetchReleases(ctx context.Context) ([]RemoteRelease, error) {
	endpoint := r.ReleasesURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "nplserver/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("release query failed: %s", resp.Status)
	}

	var payload []githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode release index: %w", err)
	}

	releases := make([]RemoteRelease, 0, len(payload))
	for _, rel := range payload {
		if rel.Draft || rel.TagName == "" {
			continue
		}
		releases = append(releases, RemoteRelease{Version: rel.TagName, PublishedAt: rel.PublishedAt})
	}
	return releases, nil
}

type releaseCache struct {
	Repository string          `json:"repository"`
	FetchedAt  time.Time       `json:"fetched_at"`
	Releases   []RemoteRelease `json:"releases"`
}

func (r *Registry) cachedReleases() ([]RemoteRelease, bool) {
	if r.cacheFile == "" || r.cacheTTL <= 0 {
		return nil, false
	}
	data, err := os.ReadFile(r.cacheFile)
	if err != nil {
		return nil, false
	}
	var rc releaseCache
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, false
	}
	if rc.Repository != r.repository || r.now().Sub(rc.FetchedAt) > r.cacheTTL {
		return nil, false
	}
	if rc.Releases == nil {
		rc.Releases = []RemoteRelease{}
	}
	return rc.Releases, true
}

func (r *Registry) storeReleases(releases []RemoteRelease) {
	if r.cacheFile == "" || r.cacheTTL <= 0 {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.cacheFile), 0o755); err != nil {
		return
	}
	data, err := json.MarshalIndent(releaseCache{
		Repository: r.repository,
		FetchedAt:  r.now(),
		Releases:   releases,
	}, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(r.cacheFile, data, 0o644); err != nil {
		r.log.Debug().Err(err).Msg("write release cache")
	}
}

// ClearReleaseCache drops any cached release list.
func (r *Registry) ClearReleaseCache() {
	if r.cacheFile == "" {
		return
	}
	if err := os.Remove(r.cacheFile); err != nil && !os.IsNotExist(err) {
		r.log.Debug().Err(err).Msg("remove release cache")
	}
}
