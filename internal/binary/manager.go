package binary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"nplserver/internal/download"
	"nplserver/internal/paths"
	"nplserver/internal/registry"
)

// Downloader fetches a URL into a destination file.
type Downloader interface {
	DownloadFile(ctx context.Context, url, dest string, sink download.ProgressFunc) error
}

// Options configures a Manager.
type Options struct {
	Registry   *registry.Registry
	Downloader Downloader
	Logger     zerolog.Logger
	// GOOS and GOARCH default to the running platform.
	GOOS   string
	GOARCH string
}

// Manager makes sure a validated server binary is present on disk.
type Manager struct {
	reg    *registry.Registry
	dl     Downloader
	log    zerolog.Logger
	goos   string
	goarch string
	chmod  func(string, os.FileMode) error
	group  singleflight.Group
}

// New builds a Manager.
func New(opts Options) *Manager {
	goos, goarch := opts.GOOS, opts.GOARCH
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return &Manager{
		reg:    opts.Registry,
		dl:     opts.Downloader,
		log:    opts.Logger.With().Str("component", "binary").Logger(),
		goos:   goos,
		goarch: goarch,
		chmod:  os.Chmod,
	}
}

// Registry exposes the version registry the manager records installs in.
func (m *Manager) Registry() *registry.Registry {
	return m.reg
}

// Platform returns the os/arch pair binaries are resolved for.
func (m *Manager) Platform() string {
	return m.goos + "/" + m.goarch
}

// DownloadServerBinary returns the path of a validated binary for version,
// downloading it when the registry has no installed copy. An empty version
// uses the registry's selected version.
func (m *Manager) DownloadServerBinary(ctx context.Context, root string, sink download.ProgressFunc, version string) (string, error) {
	rec, err := m.InstallServerBinary(ctx, root, sink, version)
	if err != nil {
		return "", err
	}
	return rec.InstalledPath, nil
}

// InstallServerBinary is DownloadServerBinary returning the version record,
// so callers learn which tag "latest" resolved to.
func (m *Manager) InstallServerBinary(ctx context.Context, root string, sink download.ProgressFunc, version string) (registry.VersionRecord, error) {
	requested := strings.TrimSpace(version)
	if requested == "" {
		requested = m.reg.ResolveSelectedVersion()
	}

	concrete := requested
	releaseDate := ""
	if requested == registry.LatestVersion {
		latest := m.reg.FetchLatestRelease(ctx)
		if latest == nil {
			return registry.VersionRecord{}, fmt.Errorf("%w for %s", ErrReleaseResolution, m.reg.Repository())
		}
		concrete = latest.Version
		releaseDate = latest.PublishedAt
	}

	if rec, ok := m.installedRecord(root, concrete); ok {
		m.log.Debug().Str("version", concrete).Str("path", rec.InstalledPath).Msg("server binary cache hit")
		sink.Report(download.Progress{Message: "Server binary already installed", Increment: 100})
		return rec, nil
	}

	result, err, _ := m.group.Do(concrete, func() (interface{}, error) {
		return m.install(ctx, root, requested, concrete, releaseDate, sink)
	})
	if err != nil {
		return registry.VersionRecord{}, err
	}
	return result.(registry.VersionRecord), nil
}

func (m *Manager) installedRecord(root, version string) (registry.VersionRecord, bool) {
	rec, ok := m.reg.Find(root, version)
	if !ok || !rec.Installed() {
		return registry.VersionRecord{}, false
	}
	return rec, true
}

func (m *Manager) install(ctx context.Context, root, requested, concrete, releaseDate string, sink download.ProgressFunc) (registry.VersionRecord, error) {
	name, err := registry.BinaryNameForPlatform(m.goos, m.goarch)
	if err != nil {
		m.log.Error().Err(err).Str("platform", m.Platform()).Msg("no server binary for platform")
		return registry.VersionRecord{}, &DownloadError{Cause: err}
	}

	binDir := paths.BinDir(root)
	url := m.reg.DownloadURL(requested, name)
	target := registry.TargetPath(binDir, name, concrete)

	release, err := acquireInstallLock(ctx, paths.New(root).InstallLock)
	if err != nil {
		return registry.VersionRecord{}, &DownloadError{Cause: err}
	}
	defer release()

	// Another process may have finished the same install while we waited.
	if rec, ok := m.installedRecord(root, concrete); ok {
		sink.Report(download.Progress{Message: "Server binary already installed", Increment: 100})
		return rec, nil
	}

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return registry.VersionRecord{}, &DownloadError{Cause: fmt.Errorf("prepare binary directory: %w", err)}
	}
	m.DeleteFileIfExists(target)

	if releaseDate == "" {
		releaseDate = m.lookupReleaseDate(ctx, concrete)
	}

	m.log.Info().Str("version", concrete).Str("url", url).Str("target", target).Msg("downloading server binary")
	if err := m.dl.DownloadFile(ctx, url, target, sink); err != nil {
		m.DeleteFileIfExists(target)
		return registry.VersionRecord{}, &DownloadError{Cause: err}
	}
	if err := m.ValidateServerBinary(target); err != nil {
		m.DeleteFileIfExists(target)
		return registry.VersionRecord{}, &DownloadError{Cause: err}
	}

	rec := registry.VersionRecord{Version: concrete, InstalledPath: target, ReleaseDate: releaseDate}
	if err := m.reg.Upsert(root, rec); err != nil {
		return registry.VersionRecord{}, &DownloadError{Cause: err}
	}
	m.log.Info().Str("version", concrete).Str("path", target).Msg("server binary installed")
	return rec, nil
}

func (m *Manager) lookupReleaseDate(ctx context.Context, version string) string {
	for _, rel := range m.reg.FetchAllReleases(ctx) {
		if rel.Version == version {
			return rel.PublishedAt
		}
	}
	return ""
}

// ValidateServerBinary checks that path exists and is executable by its
// owner, adding the executable bits when they are missing.
func (m *Manager) ValidateServerBinary(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBinaryNotFound, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrBinaryNotFound, path)
	}
	if m.goos == "windows" || info.Mode().Perm()&0o100 != 0 {
		return nil
	}

	mode := info.Mode().Perm() | 0o755
	if err := m.chmod(path, mode); err != nil {
		return fmt.Errorf("make %s executable: %w", path, err)
	}
	m.log.Debug().Str("path", path).Str("mode", mode.String()).Msg("marked server binary executable")
	return nil
}

// CleanUnusedBinaries deletes files in the binary directory that no version
// record references and returns their paths. Hidden files such as in-flight
// downloads are left alone. Failures are logged and yield an empty list.
func (m *Manager) CleanUnusedBinaries(ctx context.Context, root string) []string {
	binDir := paths.BinDir(root)
	removed := []string{}

	release, err := acquireInstallLock(ctx, paths.New(root).InstallLock)
	if err != nil {
		m.log.Warn().Err(err).Msg("clean unused binaries")
		return removed
	}
	defer release()

	entries, err := os.ReadDir(binDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.log.Warn().Err(err).Str("dir", binDir).Msg("list binary directory")
		}
		return removed
	}

	tracked := make(map[string]struct{})
	for _, rec := range m.reg.Load(root) {
		if rec.InstalledPath != "" {
			tracked[filepath.Clean(rec.InstalledPath)] = struct{}{}
		}
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == registry.FileName || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(binDir, name)
		if _, ok := tracked[filepath.Clean(path)]; ok {
			continue
		}
		if err := os.Remove(path); err != nil {
			m.log.Warn().Err(err).Str("path", path).Msg("remove unused binary")
			continue
		}
		m.log.Info().Str("path", path).Msg("removed unused binary")
		removed = append(removed, path)
	}
	return removed
}

// DeleteFileIfExists removes path, logging rather than returning failures.
func (m *Manager) DeleteFileIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.log.Warn().Err(err).Str("path", path).Msg("delete file")
	}
}
