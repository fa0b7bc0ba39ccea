package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	binDirName       = "bin"
	logsDirName      = "logs"
	configFileName   = "config.yaml"
	releaseCacheName = "release_cache.json"
	installLockName  = "install.lock"
)

// RootEnv overrides the per-user storage root when set.
const RootEnv = "NPL_SERVER_HOME"

// StoragePaths captures canonical locations inside the tool's private storage.
type StoragePaths struct {
	Root         string
	BinDir       string
	LogsDir      string
	ConfigFile   string
	ReleaseCache string
	InstallLock  string
}

// Resolve determines the storage root using the optional --root flag, the
// NPL_SERVER_HOME environment variable, or the per-user default.
func Resolve(rootFlag string) (StoragePaths, error) {
	var (
		root string
		err  error
	)

	switch {
	case rootFlag != "":
		root, err = filepath.Abs(rootFlag)
	default:
		root, err = DefaultRoot()
	}
	if err != nil {
		return StoragePaths{}, fmt.Errorf("resolve storage root: %w", err)
	}

	return New(root), nil
}

// New lays out the storage hierarchy below root without touching the disk.
func New(root string) StoragePaths {
	return StoragePaths{
		Root:         root,
		BinDir:       BinDir(root),
		LogsDir:      filepath.Join(root, logsDirName),
		ConfigFile:   filepath.Join(root, configFileName),
		ReleaseCache: filepath.Join(root, releaseCacheName),
		InstallLock:  filepath.Join(root, installLockName),
	}
}

// BinDir returns the directory holding server binaries and the version file.
func BinDir(root string) string {
	return filepath.Join(root, binDirName)
}

// DefaultRoot determines the per-user storage directory.
func DefaultRoot() (string, error) {
	if override, ok := os.LookupEnv(RootEnv); ok && override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", RootEnv, err)
		}
		return abs, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "NPLServer"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "NPLServer"), nil
		}
		return filepath.Join(home, "AppData", "Local", "NPLServer"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "nplserver"), nil
		}
		return filepath.Join(home, ".local", "share", "nplserver"), nil
	}
}

// EnsureDirs creates the root, bin and logs directories.
func (p StoragePaths) EnsureDirs() error {
	for _, dir := range []string{p.Root, p.BinDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
