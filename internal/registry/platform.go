package registry

import (
	"fmt"
	"path/filepath"
	"strings"
)

// UnsupportedPlatformError reports an os/arch pair without a published binary.
type UnsupportedPlatformError struct {
	OS   string
	Arch string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s", e.OS, e.Arch)
}

var platformBinaries = map[string]string{
	"windows/amd64": "language-server-windows-x64.exe",
	"darwin/amd64":  "language-server-macos-x64",
	"darwin/arm64":  "language-server-macos-arm64",
	"linux/amd64":   "language-server-linux-x64",
	"linux/arm64":   "language-server-linux-arm64",
}

// BinaryNameForPlatform maps a GOOS/GOARCH pair to the release asset name.
func BinaryNameForPlatform(goos, goarch string) (string, error) {
	name, ok := platformBinaries[goos+"/"+goarch]
	if !ok {
		return "", &UnsupportedPlatformError{OS: goos, Arch: goarch}
	}
	return name, nil
}

// TargetPath returns where a binary for version is installed inside binDir.
// The version is appended to the asset name ahead of any ".exe" suffix.
func TargetPath(binDir, binaryName, version string) string {
	ext := filepath.Ext(binaryName)
	if ext != ".exe" {
		ext = ""
	}
	base := strings.TrimSuffix(binaryName, ext)
	return filepath.Join(binDir, base+"-"+sanitizeVersion(version)+ext)
}

func sanitizeVersion(version string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, version)
}

// DownloadBaseURL returns the release download prefix for version. The
// "latest" sentinel uses the host's latest-release alias.
func (r *Registry) DownloadBaseURL(version string) string {
	if version == "" || version == LatestVersion {
		return fmt.Sprintf("%s/%s/releases/latest/download", r.downloadHost, r.repository)
	}
	return fmt.Sprintf("%s/%s/releases/download/%s", r.downloadHost, r.repository, version)
}

// DownloadURL returns the asset URL for binaryName at version.
func (r *Registry) DownloadURL(version, binaryName string) string {
	return r.DownloadBaseURL(version) + "/" + binaryName
}
