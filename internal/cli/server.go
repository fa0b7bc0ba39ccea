package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"nplserver/internal/download"
	"nplserver/internal/registry"
	"nplserver/internal/tui"
)

const installTimeout = 10 * time.Minute

func newServerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage installed language server binaries",
	}

	cmd.AddCommand(newServerInstallCmd(opts))
	cmd.AddCommand(newServerListCmd(opts))
	cmd.AddCommand(newServerReleasesCmd(opts))
	cmd.AddCommand(newServerCheckUpdateCmd(opts))
	cmd.AddCommand(newServerCleanCmd(opts))
	cmd.AddCommand(newServerResetCmd(opts))

	return cmd
}

type installResult struct {
	Version string `json:"version"`
	Path    string `json:"path"`
}

func newServerInstallCmd(opts *rootOptions) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download a server binary unless it is already installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if version == "" {
				version = a.cfg.SelectedVersion()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), installTimeout)
			defer cancel()

			var rec registry.VersionRecord
			title := fmt.Sprintf("Installing NPL language server %s", version)
			err = a.withProgress(cmd.ErrOrStderr(), title, func(sink download.ProgressFunc) error {
				var err error
				rec, err = a.binaries.InstallServerBinary(ctx, a.paths.Root, sink, version)
				return err
			})
			if err != nil {
				return err
			}

			res := installResult{Version: rec.Version, Path: rec.InstalledPath}
			if opts.outputJSON {
				return writeJSON(cmd, res)
			}
			cmd.Printf("Installed %s at %s\n", res.Version, res.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "Release tag to install (default: configured version or latest)")
	return cmd
}

type listEntry struct {
	Version     string `json:"version"`
	Path        string `json:"path"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	Status      string `json:"status"`
}

func newServerListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded server versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entries := listEntries(a.registry.Load(a.paths.Root))
			if opts.outputJSON {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				cmd.Println("(no server versions recorded)")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			writeHeader(tw, "VERSION", "RELEASED", "PATH", "STATUS")
			for _, e := range entries {
				// Styled cells go last so escape codes don't skew alignment.
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					e.Version, tui.NonEmptyOrDash(e.ReleaseDate), e.Path, tui.StatusStyle(e.Status).Render(e.Status))
			}
			return tw.Flush()
		},
	}
}

// listEntries orders records freshest first and marks the one a launch
// would pick as "latest".
func listEntries(records []registry.VersionRecord) []listEntry {
	sorted := registry.SortFreshest(records)
	entries := make([]listEntry, 0, len(sorted))
	marked := false
	for _, rec := range sorted {
		status := "missing"
		if rec.Installed() {
			status = "installed"
			if !marked {
				status = "latest"
				marked = true
			}
		}
		entries = append(entries, listEntry{
			Version:     rec.Version,
			Path:        rec.InstalledPath,
			ReleaseDate: rec.ReleaseDate,
			Status:      status,
		})
	}
	return entries
}

type releaseEntry struct {
	Version     string `json:"version"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Status      string `json:"status"`
}

func newServerReleasesCmd(opts *rootOptions) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "releases",
		Short: "List releases published in the remote index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if refresh {
				a.registry.ClearReleaseCache()
			}

			installed := make(map[string]bool)
			for _, rec := range a.registry.InstalledRecords(a.paths.Root) {
				installed[rec.Version] = true
			}

			var releases []registry.RemoteRelease
			a.withStatus(cmd.ErrOrStderr(), "Fetching releases", func() {
				releases = a.registry.FetchAllReleases(cmd.Context())
			})
			entries := make([]releaseEntry, 0, len(releases))
			for _, rel := range releases {
				status := "available"
				if installed[rel.Version] {
					status = "installed"
				}
				entries = append(entries, releaseEntry{Version: rel.Version, PublishedAt: rel.PublishedAt, Status: status})
			}

			if opts.outputJSON {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				cmd.Printf("(no releases found for %s)\n", a.registry.Repository())
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			writeHeader(tw, "VERSION", "PUBLISHED", "STATUS")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Version, tui.NonEmptyOrDash(e.PublishedAt), tui.StatusStyle(e.Status).Render(e.Status))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the cached release list")
	return cmd
}

type updateResult struct {
	registry.UpdateCheck
	Installed bool `json:"installed"`
}

func newServerCheckUpdateCmd(opts *rootOptions) *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "check-update",
		Short: "Check for a newer server release and offer to install it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), installTimeout)
			defer cancel()

			var res updateResult
			a.withStatus(cmd.ErrOrStderr(), "Checking for updates", func() {
				res.UpdateCheck = a.registry.CheckForUpdates(ctx, a.paths.Root)
			})
			if !opts.outputJSON {
				if res.HasUpdate {
					cmd.Printf("%s %s (installed: %s)\n", tui.StatusStyle("update").Render("Update available:"), res.LatestVersion, tui.NonEmptyOrDash(res.CurrentVersion))
				} else {
					cmd.Printf("Up to date (%s)\n", tui.NonEmptyOrDash(res.CurrentVersion))
				}
			}

			if res.HasUpdate {
				updater := a.updater(a.decider(cmd, assumeYes))
				title := fmt.Sprintf("Updating NPL language server to %s", res.LatestVersion)
				err = a.withProgress(cmd.ErrOrStderr(), title, func(sink download.ProgressFunc) error {
					res.Installed = updater.CheckForUpdates(ctx, a.paths.Root, sink)
					return nil
				})
				if err != nil {
					return err
				}
			}

			if opts.outputJSON {
				return writeJSON(cmd, res)
			}
			if res.Installed {
				cmd.Printf("Installed %s\n", res.LatestVersion)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Install an available update without asking")
	return cmd
}

func newServerCleanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete binaries that are not recorded in the version registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			removed := a.binaries.CleanUnusedBinaries(cmd.Context(), a.paths.Root)
			return printRemoved(cmd, opts, removed)
		},
	}
}

func newServerResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget every recorded version and delete the installed binaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.registry.Reset(a.paths.Root); err != nil {
				return err
			}
			a.registry.ClearReleaseCache()
			removed := a.binaries.CleanUnusedBinaries(cmd.Context(), a.paths.Root)
			return printRemoved(cmd, opts, removed)
		},
	}
}

func printRemoved(cmd *cobra.Command, opts *rootOptions, removed []string) error {
	if removed == nil {
		removed = []string{}
	}
	if opts.outputJSON {
		return writeJSON(cmd, map[string][]string{"removed": removed})
	}
	if len(removed) == 0 {
		cmd.Println("Nothing to remove")
		return nil
	}
	for _, path := range removed {
		cmd.Printf("%s %s\n", tui.StatusStyle("removed").Render("removed"), path)
	}
	return nil
}

func writeHeader(w io.Writer, columns ...string) {
	for i, c := range columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, tui.HeaderStyle.Render(c))
	}
	fmt.Fprintln(w)
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
