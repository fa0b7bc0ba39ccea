package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nplserver/internal/download"
	"nplserver/internal/process"
	"nplserver/internal/tui"
	"nplserver/internal/update"
)

func newStdioCmd(opts *rootOptions) *cobra.Command {
	var (
		assumeYes bool
		rootURI   string
	)
	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Bridge stdin/stdout to a language server for editor integrations",
		Long: "Reuses a server listening on the configured port or starts a managed one,\n" +
			"then relays protocol frames between this process's stdio and the server.\n" +
			"Progress and logs go to stderr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// stdin belongs to the protocol client; never prompt.
			var decider update.Decider
			if assumeYes {
				decider = tui.AutoDecider{Answer: true}
			}
			l := a.launcher(decider, process.StartOptions{RootURI: rootURI})
			defer l.Close()

			var sink download.ProgressFunc
			var status *tui.StatusWriter
			switch tui.DetectMode(cmd.ErrOrStderr(), opts.noProgress, false) {
			case tui.ModeTUI:
				status = tui.NewStatusWriter(cmd.ErrOrStderr())
				status.Update("Connecting to NPL language server")
				sink = status.StatusSink()
			case tui.ModePlain:
				if !opts.noProgress {
					sink = tui.LineSink(cmd.ErrOrStderr())
				}
			}
			conn, err := l.Connect(ctx, sink)
			if status != nil {
				status.Stop()
			}
			if err != nil {
				return err
			}
			defer conn.Streams.Close()

			a.log.Info().Str("source", string(conn.Source)).Msg("bridging stdio to language server")
			return newBridge(conn.Streams, conn.Init(), a.log).Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Install updates found while resolving the binary without asking")
	cmd.Flags().StringVar(&rootURI, "root-uri", "", "Workspace root URI sent in the initialize request")
	return cmd
}
