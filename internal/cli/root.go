package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	root       string
	configPath string
	outputJSON bool
	logLevel   string
	verbose    bool
	noProgress bool
	metrics    bool
}

// Execute runs the root cobra command.
func Execute() {
	cmd := newRootCmd()
	cmd.SetOut(os.Stdout)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "nplserver",
		Short:         "Install, update and launch the NPL language server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.root, "root", "", "Storage directory for binaries, logs and config")
	flags.StringVar(&opts.configPath, "config", "", "Config file (.yaml, .json or .toml); defaults to <root>/config.yaml")
	flags.BoolVar(&opts.outputJSON, "json", false, "Output machine-readable JSON")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Also write logs to stderr")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Disable the interactive progress display")
	flags.BoolVar(&opts.metrics, "metrics", false, "Write download and server spawn metrics to stderr on exit")

	cmd.AddCommand(newServerCmd(opts))
	cmd.AddCommand(newConnectCmd(opts))

	stdioCmd := newStdioCmd(opts)
	cmd.AddCommand(stdioCmd)
	// stdout carries protocol frames; JSON output doesn't apply.
	if f := stdioCmd.InheritedFlags().Lookup("json"); f != nil {
		f.Hidden = true
	}

	return cmd
}
