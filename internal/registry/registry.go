package registry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nplserver/internal/paths"
)

// FileName is the registry file kept inside the binary directory.
const FileName = "versions.json"

// LatestVersion is the sentinel that selects the newest published release.
const LatestVersion = "latest"

// VersionRecord tracks one installed (or once installed) server version.
type VersionRecord struct {
	Version       string `json:"version"`
	InstalledPath string `json:"installedPath,omitempty"`
	ReleaseDate   string `json:"releaseDate,omitempty"`
}

// Installed reports whether the record points at a file that still exists.
func (r VersionRecord) Installed() bool {
	if r.InstalledPath == "" {
		return false
	}
	ok, err := paths.FileExists(r.InstalledPath)
	return err == nil && ok
}

// Options configures a Registry.
type Options struct {
	Repository      string
	ReleaseAPI      string
	DownloadHost    string
	SelectedVersion string
	HTTPClient      *http.Client
	Logger          zerolog.Logger
	// CacheFile holds the release list between runs; empty disables caching.
	CacheFile string
	CacheTTL  time.Duration
}

// Registry persists version records and talks to the remote release index.
type Registry struct {
	repository   string
	releaseAPI   string
	downloadHost string
	selected     string
	client       *http.Client
	log          zerolog.Logger
	cacheFile    string
	cacheTTL     time.Duration
	now          func() time.Time
}

// New builds a Registry from opts.
func New(opts Options) *Registry {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Registry{
		repository:   strings.Trim(opts.Repository, "/"),
		releaseAPI:   strings.TrimRight(opts.ReleaseAPI, "/"),
		downloadHost: strings.TrimRight(opts.DownloadHost, "/"),
		selected:     strings.TrimSpace(opts.SelectedVersion),
		client:       client,
		log:          opts.Logger.With().Str("component", "registry").Logger(),
		cacheFile:    opts.CacheFile,
		cacheTTL:     opts.CacheTTL,
		now:          time.Now,
	}
}

// VersionFilePath returns the registry file location for root.
func VersionFilePath(root string) string {
	return filepath.Join(paths.BinDir(root), FileName)
}

// Load reads the records stored under root. A missing or unreadable file
// yields an empty list.
func (r *Registry) Load(root string) []VersionRecord {
	path := VersionFilePath(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn().Err(err).Str("path", path).Msg("read version registry")
		}
		return []VersionRecord{}
	}

	var records []VersionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("version registry unparsable, treating as empty")
		return []VersionRecord{}
	}
	if records == nil {
		records = []VersionRecord{}
	}
	return records
}

// Save overwrites the registry file with records.
func (r *Registry) Save(root string, records []VersionRecord) error {
	path := VersionFilePath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare binary directory: %w", err)
	}
	if records == nil {
		records = []VersionRecord{}
	}

	buf, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal version registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".versions-*.json")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write registry temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close registry temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace version registry: %w", err)
	}
	return nil
}

// Upsert stores rec, replacing any record with the same version.
func (r *Registry) Upsert(root string, rec VersionRecord) error {
	records := r.Load(root)
	replaced := false
	for i := range records {
		if records[i].Version == rec.Version {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	return r.Save(root, records)
}

// Reset empties the registry.
func (r *Registry) Reset(root string) error {
	return r.Save(root, []VersionRecord{})
}

// Find returns the record for version, if any.
func (r *Registry) Find(root, version string) (VersionRecord, bool) {
	for _, rec := range r.Load(root) {
		if rec.Version == version {
			return rec, true
		}
	}
	return VersionRecord{}, false
}

// InstalledRecords returns the records whose binaries exist on disk.
func (r *Registry) InstalledRecords(root string) []VersionRecord {
	var installed []VersionRecord
	for _, rec := range r.Load(root) {
		if rec.Installed() {
			installed = append(installed, rec)
		}
	}
	return installed
}

// ResolveSelectedVersion returns the configured version or LatestVersion.
func (r *Registry) ResolveSelectedVersion() string {
	if r.selected == "" {
		return LatestVersion
	}
	return r.selected
}

// Repository returns the owner/repo identifier releases are read from.
func (r *Registry) Repository() string {
	return r.repository
}
