// Package update keeps the installed language server current.
package update

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"nplserver/internal/binary"
	"nplserver/internal/download"
	"nplserver/internal/registry"
)

// Decider answers yes/no questions, typically by asking the user.
type Decider interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm calls f.
func (f DeciderFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Options configures a Manager.
type Options struct {
	Binaries *binary.Manager
	// Decider approves downloads of new versions. Nil declines every update.
	Decider Decider
	Logger  zerolog.Logger
}

// Manager checks the release index and installs newer servers on approval.
type Manager struct {
	binaries *binary.Manager
	reg      *registry.Registry
	decider  Decider
	log      zerolog.Logger
}

// New builds a Manager.
func New(opts Options) *Manager {
	return &Manager{
		binaries: opts.Binaries,
		reg:      opts.Binaries.Registry(),
		decider:  opts.Decider,
		log:      opts.Logger.With().Str("component", "update").Logger(),
	}
}

// CheckForUpdates installs the newest release when one is available and the
// decider approves. It reports whether an update was installed; every failure
// is logged and reported as false.
func (m *Manager) CheckForUpdates(ctx context.Context, root string, sink download.ProgressFunc) bool {
	check := m.reg.CheckForUpdates(ctx, root)
	if !check.HasUpdate {
		m.log.Debug().Str("latest", check.LatestVersion).Msg("no server update available")
		return false
	}
	if m.decider == nil {
		m.log.Info().Str("latest", check.LatestVersion).Msg("server update available but no decider configured")
		return false
	}

	current := check.CurrentVersion
	if current == "" {
		current = "none"
	}
	prompt := fmt.Sprintf("NPL language server %s is available (installed: %s). Download it now?", check.LatestVersion, current)
	approved, err := m.decider.Confirm(ctx, prompt)
	if err != nil {
		m.log.Warn().Err(err).Msg("update prompt failed")
		return false
	}
	if !approved {
		m.log.Info().Str("latest", check.LatestVersion).Msg("server update declined")
		return false
	}

	path, err := m.binaries.DownloadServerBinary(ctx, root, sink, check.LatestVersion)
	if err != nil {
		m.log.Error().Err(err).Str("version", check.LatestVersion).Msg("server update failed")
		return false
	}
	m.log.Info().Str("version", check.LatestVersion).Str("path", path).Msg("server updated")
	return true
}

// GetLatestServerBinary returns the binary the launcher should run. A pinned
// version is resolved directly. Otherwise, when servers are already installed
// an update check runs first and the freshest installed binary is returned;
// with nothing installed the latest release is downloaded without asking.
func (m *Manager) GetLatestServerBinary(ctx context.Context, root string, sink download.ProgressFunc) (string, error) {
	if selected := m.reg.ResolveSelectedVersion(); selected != registry.LatestVersion {
		return m.binaries.DownloadServerBinary(ctx, root, sink, selected)
	}

	if len(m.reg.InstalledRecords(root)) == 0 {
		m.log.Info().Msg("no server installed, downloading latest")
		return m.binaries.DownloadServerBinary(ctx, root, sink, registry.LatestVersion)
	}

	m.CheckForUpdates(ctx, root, sink)

	freshest, ok := registry.Freshest(m.reg.InstalledRecords(root))
	if !ok {
		return m.binaries.DownloadServerBinary(ctx, root, sink, registry.LatestVersion)
	}
	if err := m.binaries.ValidateServerBinary(freshest.InstalledPath); err != nil {
		return "", err
	}
	return freshest.InstalledPath, nil
}
