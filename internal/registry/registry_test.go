package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nplserver/internal/paths"
)

func newTestRegistry(t *testing.T, api string) *Registry {
	t.Helper()
	return New(Options{
		Repository:   "acme/npl",
		ReleaseAPI:   api,
		DownloadHost: "https://downloads.example",
		Logger:       zerolog.Nop(),
	})
}

func releaseServer(t *testing.T, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.URL.Path != "/repos/acme/npl/releases" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeBinary(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("bin"), 0o755))
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	root := t.TempDir()
	reg := newTestRegistry(t, "http://unused")

	assert.Empty(t, reg.Load(root))

	require.NoError(t, os.MkdirAll(paths.BinDir(root), 0o755))
	require.NoError(t, os.WriteFile(VersionFilePath(root), []byte("{not json"), 0o644))
	records := reg.Load(root)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSaveCreatesDirectoryAndRoundTrips(t *testing.T) {
	root := filepath.Join(t.TempDir(), "fresh")
	reg := newTestRegistry(t, "http://unused")

	records := []VersionRecord{{Version: "v1.0.0", InstalledPath: "/tmp/a", ReleaseDate: "2024-01-01"}}
	require.NoError(t, reg.Save(root, records))
	assert.Equal(t, records, reg.Load(root))
}

func TestUpsertKeepsOneRecordPerVersion(t *testing.T) {
	root := t.TempDir()
	reg := newTestRegistry(t, "http://unused")

	require.NoError(t, reg.Upsert(root, VersionRecord{Version: "v1.0.0", InstalledPath: "/old"}))
	require.NoError(t, reg.Upsert(root, VersionRecord{Version: "v1.1.0", InstalledPath: "/b"}))
	require.NoError(t, reg.Upsert(root, VersionRecord{Version: "v1.0.0", InstalledPath: "/new"}))

	records := reg.Load(root)
	require.Len(t, records, 2)
	assert.Equal(t, "/new", records[0].InstalledPath)

	require.NoError(t, reg.Reset(root))
	assert.Empty(t, reg.Load(root))
}

func TestResolveSelectedVersion(t *testing.T) {
	assert.Equal(t, LatestVersion, New(Options{}).ResolveSelectedVersion())
	assert.Equal(t, "v2.0.0", New(Options{SelectedVersion: " v2.0.0 "}).ResolveSelectedVersion())
}

func TestFetchReleases(t *testing.T) {
	srv := releaseServer(t, `[
		{"tag_name":"v2.3.0","published_at":"2024-01-01"},
		{"tag_name":"v2.4.0-rc","published_at":"2024-02-01","draft":true},
		{"tag_name":"v2.2.0","published_at":"2023-12-01"}
	]`, nil)
	reg := newTestRegistry(t, srv.URL)

	all := reg.FetchAllReleases(context.Background())
	require.Len(t, all, 2)
	assert.Equal(t, RemoteRelease{Version: "v2.3.0", PublishedAt: "2024-01-01"}, all[0])

	latest := reg.FetchLatestRelease(context.Background())
	require.NotNil(t, latest)
	assert.Equal(t, "v2.3.0", latest.Version)
}

func TestFetchReleasesFailureIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	reg := newTestRegistry(t, srv.URL)

	assert.Nil(t, reg.FetchLatestRelease(context.Background()))
	assert.Empty(t, reg.FetchAllReleases(context.Background()))

	unreachable := newTestRegistry(t, "http://127.0.0.1:1")
	assert.Nil(t, unreachable.FetchLatestRelease(context.Background()))
}

func TestReleaseCacheTTL(t *testing.T) {
	var hits int32
	srv := releaseServer(t, `[{"tag_name":"v1.0.0","published_at":"2024-01-01"}]`, &hits)

	reg := New(Options{
		Repository: "acme/npl",
		ReleaseAPI: srv.URL,
		Logger:     zerolog.Nop(),
		CacheFile:  filepath.Join(t.TempDir(), "release_cache.json"),
		CacheTTL:   time.Hour,
	})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	require.Len(t, reg.FetchAllReleases(context.Background()), 1)
	require.Len(t, reg.FetchAllReleases(context.Background()), 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	now = now.Add(2 * time.Hour)
	require.Len(t, reg.FetchAllReleases(context.Background()), 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	reg.ClearReleaseCache()
	require.Len(t, reg.FetchAllReleases(context.Background()), 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestCheckForUpdates(t *testing.T) {
	srv := releaseServer(t, `[{"tag_name":"v2.3.0","published_at":"2024-01-01"}]`, nil)
	root := t.TempDir()
	reg := newTestRegistry(t, srv.URL)
	binDir := paths.BinDir(root)

	oldPath := filepath.Join(binDir, "language-server-linux-x64-v2.2.0")
	writeBinary(t, oldPath)
	require.NoError(t, reg.Save(root, []VersionRecord{
		{Version: "v2.2.0", InstalledPath: oldPath},
		{Version: "v2.3.0", InstalledPath: filepath.Join(binDir, "missing")},
	}))

	check := reg.CheckForUpdates(context.Background(), root)
	assert.True(t, check.HasUpdate, "a record without a file on disk does not count as installed")
	assert.Equal(t, "v2.3.0", check.LatestVersion)
	assert.Equal(t, "v2.2.0", check.CurrentVersion)

	newPath := filepath.Join(binDir, "language-server-linux-x64-v2.3.0")
	writeBinary(t, newPath)
	require.NoError(t, reg.Upsert(root, VersionRecord{Version: "v2.3.0", InstalledPath: newPath}))

	check = reg.CheckForUpdates(context.Background(), root)
	assert.False(t, check.HasUpdate)
	assert.Equal(t, "v2.3.0", check.CurrentVersion)
}

func TestCheckForUpdatesWhenIndexUnreachable(t *testing.T) {
	root := t.TempDir()
	reg := newTestRegistry(t, "http://127.0.0.1:1")

	check := reg.CheckForUpdates(context.Background(), root)
	assert.False(t, check.HasUpdate)
	assert.Empty(t, check.LatestVersion)
}

func TestBinaryNameForPlatform(t *testing.T) {
	cases := map[[2]string]string{
		{"windows", "amd64"}: "language-server-windows-x64.exe",
		{"darwin", "amd64"}:  "language-server-macos-x64",
		{"darwin", "arm64"}:  "language-server-macos-arm64",
		{"linux", "amd64"}:   "language-server-linux-x64",
		{"linux", "arm64"}:   "language-server-linux-arm64",
	}
	for platform, want := range cases {
		got, err := BinaryNameForPlatform(platform[0], platform[1])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBinaryNameForUnsupportedPlatform(t *testing.T) {
	_, err := BinaryNameForPlatform("freebsd", "riscv64")
	require.Error(t, err)

	var platformErr *UnsupportedPlatformError
	require.ErrorAs(t, err, &platformErr)
	assert.Contains(t, err.Error(), "freebsd")
	assert.Contains(t, err.Error(), "riscv64")
}

func TestTargetPath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("bin", "language-server-linux-x64-v2.3.0"),
		TargetPath("bin", "language-server-linux-x64", "v2.3.0"))
	assert.Equal(t,
		filepath.Join("bin", "language-server-windows-x64-v2.3.0.exe"),
		TargetPath("bin", "language-server-windows-x64.exe", "v2.3.0"))
}

func TestDownloadURLs(t *testing.T) {
	reg := newTestRegistry(t, "http://unused")
	assert.Equal(t,
		"https://downloads.example/acme/npl/releases/latest/download/language-server-linux-x64",
		reg.DownloadURL(LatestVersion, "language-server-linux-x64"))
	assert.Equal(t,
		"https://downloads.example/acme/npl/releases/download/v1.2.0",
		reg.DownloadBaseURL("v1.2.0"))
}

func TestSortFreshest(t *testing.T) {
	records := []VersionRecord{
		{Version: "nightly", ReleaseDate: "2025-01-01"},
		{Version: "v1.10.0", ReleaseDate: "2023-01-01"},
		{Version: "1.9.0", ReleaseDate: "2024-01-01"},
		{Version: "v1.10.0", ReleaseDate: "2023-06-01"},
	}
	sorted := SortFreshest(records)
	assert.Equal(t, "v1.10.0", sorted[0].Version)
	assert.Equal(t, "2023-06-01", sorted[0].ReleaseDate)
	assert.Equal(t, "1.9.0", sorted[2].Version)
	assert.Equal(t, "nightly", sorted[3].Version)

	_, ok := Freshest(nil)
	assert.False(t, ok)
}
