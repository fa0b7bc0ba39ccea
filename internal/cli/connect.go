package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nplserver/internal/download"
	"nplserver/internal/launcher"
	"nplserver/internal/process"
	"nplserver/internal/tui"
)

type connectInfo struct {
	Source        string `json:"source"`
	Address       string `json:"address,omitempty"`
	BinaryPath    string `json:"binaryPath,omitempty"`
	PID           int    `json:"pid,omitempty"`
	ServerName    string `json:"serverName,omitempty"`
	ServerVersion string `json:"serverVersion,omitempty"`
}

func newConnectCmd(opts *rootOptions) *cobra.Command {
	var (
		wait      bool
		assumeYes bool
		rootURI   string
	)
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Reuse a running server or start one and report how it was reached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			l := a.launcher(a.decider(cmd, assumeYes), process.StartOptions{RootURI: rootURI})
			defer l.Close()

			var conn *launcher.Connection
			err = a.withProgress(cmd.ErrOrStderr(), "Starting NPL language server", func(sink download.ProgressFunc) error {
				var err error
				conn, err = l.Connect(ctx, sink)
				return err
			})
			if err != nil {
				return err
			}
			defer conn.Streams.Close()

			info := a.describe(conn)
			if opts.outputJSON {
				if err := writeJSON(cmd, info); err != nil {
					return err
				}
			} else {
				printConnectInfo(cmd, info)
			}

			if wait && conn.Session != nil {
				return waitForExit(ctx, cmd, conn.Session)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Keep a started server running until it exits or the command is interrupted")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Install updates found while resolving the binary without asking")
	cmd.Flags().StringVar(&rootURI, "root-uri", "", "Workspace root URI sent in the initialize request")
	return cmd
}

func (a *app) describe(conn *launcher.Connection) connectInfo {
	info := connectInfo{Source: string(conn.Source), BinaryPath: conn.BinaryPath}
	if conn.Source == launcher.SourceExisting {
		info.Address = a.locator.Address()
	}
	if conn.Session != nil {
		info.PID = conn.Session.PID
	}
	if init := conn.Init(); init != nil {
		info.ServerName = init.ServerName()
		info.ServerVersion = init.ServerVersion()
	}
	return info
}

func printConnectInfo(cmd *cobra.Command, info connectInfo) {
	switch info.Source {
	case string(launcher.SourceExisting):
		cmd.Printf("%s reusing server at %s\n", tui.StatusStyle("ready").Render("ready"), info.Address)
	default:
		cmd.Printf("%s started %s (pid %d)\n", tui.StatusStyle("ready").Render("ready"), info.BinaryPath, info.PID)
		if info.ServerName != "" {
			cmd.Printf("  server: %s %s\n", info.ServerName, tui.NonEmptyOrDash(info.ServerVersion))
		}
	}
}

func waitForExit(ctx context.Context, cmd *cobra.Command, session *process.Session) error {
	select {
	case <-ctx.Done():
		return nil
	case <-session.Done():
		if err := session.ExitErr(); err != nil {
			return fmt.Errorf("language server exited: %w", err)
		}
		cmd.Println("language server exited")
		return nil
	}
}
