package registry

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// UpdateCheck is the outcome of comparing installed versions to the index.
type UpdateCheck struct {
	HasUpdate      bool   `json:"hasUpdate"`
	LatestVersion  string `json:"latestVersion,omitempty"`
	CurrentVersion string `json:"currentVersion,omitempty"`
	ReleaseDate    string `json:"releaseDate,omitempty"`
}

// CheckForUpdates reports whether the newest remote release differs from
// every installed version. An unreachable index means no update.
func (r *Registry) CheckForUpdates(ctx context.Context, root string) UpdateCheck {
	installed := r.InstalledRecords(root)

	var check UpdateCheck
	if freshest, ok := Freshest(installed); ok {
		check.CurrentVersion = freshest.Version
	}

	latest := r.FetchLatestRelease(ctx)
	if latest == nil {
		return check
	}
	check.LatestVersion = latest.Version
	check.ReleaseDate = latest.PublishedAt

	for _, rec := range installed {
		if rec.Version == latest.Version {
			return check
		}
	}
	check.HasUpdate = true
	r.log.Info().
		Str("latest", latest.Version).
		Str("current", check.CurrentVersion).
		Msg("server update available")
	return check
}

// Freshest returns the newest record: highest semantic version first, then
// latest release date, then the most recently added entry.
func Freshest(records []VersionRecord) (VersionRecord, bool) {
	if len(records) == 0 {
		return VersionRecord{}, false
	}
	sorted := SortFreshest(records)
	return sorted[0], true
}

// SortFreshest returns a copy of records ordered newest first.
func SortFreshest(records []VersionRecord) []VersionRecord {
	type indexed struct {
		rec VersionRecord
		idx int
	}
	items := make([]indexed, len(records))
	for i, rec := range records {
		items[i] = indexed{rec: rec, idx: i}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if c := compareVersions(a.rec.Version, b.rec.Version); c != 0 {
			return c > 0
		}
		if a.rec.ReleaseDate != b.rec.ReleaseDate {
			return a.rec.ReleaseDate > b.rec.ReleaseDate
		}
		return a.idx > b.idx
	})

	out := make([]VersionRecord, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out
}

// compareVersions orders valid semantic versions above anything else.
func compareVersions(a, b string) int {
	ca, cb := canonical(a), canonical(b)
	switch {
	case ca != "" && cb != "":
		return semver.Compare(ca, cb)
	case ca != "":
		return 1
	case cb != "":
		return -1
	default:
		return 0
	}
}

func canonical(version string) string {
	v := strings.TrimSpace(version)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
