package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nplserver/internal/binary"
	"nplserver/internal/config"
	"nplserver/internal/connection"
	"nplserver/internal/download"
	"nplserver/internal/launcher"
	"nplserver/internal/logx"
	"nplserver/internal/paths"
	"nplserver/internal/process"
	"nplserver/internal/registry"
	"nplserver/internal/telemetry"
	"nplserver/internal/tui"
	"nplserver/internal/update"
)

const (
	metricsFlushTimeout   = 5 * time.Second
	backgroundUpdateGrace = 2 * time.Minute
)

// app is the set of managers one command invocation works with.
type app struct {
	opts      *rootOptions
	paths     paths.StoragePaths
	cfg       config.Config
	log       zerolog.Logger
	logCloser io.Closer
	shutdown  telemetry.ShutdownFunc

	registry  *registry.Registry
	engine    *download.Engine
	binaries  *binary.Manager
	locator   *connection.Locator
	processes *process.Manager

	// prompting is set once an interactive decider is handed out; huh and
	// the progress program cannot share the terminal.
	prompting bool
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	sp, err := paths.Resolve(opts.root)
	if err != nil {
		return nil, err
	}
	if err := sp.EnsureDirs(); err != nil {
		return nil, err
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = sp.ConfigFile
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logger, closer, err := newLogger(cmd, sp, cfg.LogLevel, opts.verbose)
	if err != nil {
		return nil, err
	}

	results := cfg.Validate()
	for _, r := range results {
		logger.Warn().Str("level", r.Level).Msg(r.Message)
	}
	if config.HasErrors(results) {
		closer.Close()
		return nil, fmt.Errorf("invalid config %s: %s", configPath, firstError(results))
	}

	meters, shutdown, err := telemetry.Init(telemetry.Options{Enabled: opts.metrics, Writer: cmd.ErrOrStderr()})
	if err != nil {
		closer.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	reg := registry.New(registry.Options{
		Repository:      cfg.Repository,
		ReleaseAPI:      cfg.ReleaseAPI,
		DownloadHost:    cfg.DownloadHost,
		SelectedVersion: cfg.SelectedVersion(),
		HTTPClient:      httpClient,
		Logger:          logger,
		CacheFile:       sp.ReleaseCache,
		CacheTTL:        cfg.ReleaseCacheTTLValue(),
	})
	engine := download.New(download.Options{
		MaxRedirects:  cfg.MaxRedirects,
		Logger:        logger,
		MeterProvider: meters,
	})

	return &app{
		opts:      opts,
		paths:     sp,
		cfg:       cfg,
		log:       logger,
		logCloser: closer,
		shutdown:  shutdown,
		registry:  reg,
		engine:    engine,
		binaries: binary.New(binary.Options{
			Registry:   reg,
			Downloader: engine,
			Logger:     logger,
		}),
		locator: connection.NewLocator(cfg.Port, cfg.ConnectTimeoutValue(), logger),
		processes: process.NewManager(process.Options{
			Logger:           logger,
			HandshakeTimeout: cfg.HandshakeTimeoutValue(),
			MeterProvider:    meters,
		}),
	}, nil
}

func newLogger(cmd *cobra.Command, sp paths.StoragePaths, level string, verbose bool) (zerolog.Logger, io.Closer, error) {
	fileLogger, closer, err := logx.New(sp.LogsDir, level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	if !verbose {
		return fileLogger, closer, nil
	}
	file, ok := closer.(io.Writer)
	if !ok {
		return fileLogger, closer, nil
	}
	return logx.Multi(level, file, logx.ConsoleWriter(cmd.ErrOrStderr())), closer, nil
}

func firstError(results []config.ValidationResult) string {
	for _, r := range results {
		if r.Level == "error" {
			return r.Message
		}
	}
	return ""
}

// Close flushes metrics and releases the log file.
func (a *app) Close() {
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsFlushTimeout)
		if err := a.shutdown(ctx); err != nil {
			a.log.Warn().Err(err).Msg("flush metrics")
		}
		cancel()
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

func (a *app) updater(decider update.Decider) *update.Manager {
	return update.New(update.Options{
		Binaries: a.binaries,
		Decider:  decider,
		Logger:   a.log,
	})
}

// launcher builds a Launcher whose foreground and background update checks
// share decider.
func (a *app) launcher(decider update.Decider, start process.StartOptions) *launcher.Launcher {
	updates := a.updater(decider)
	return launcher.New(launcher.Options{
		Root:              a.paths.Root,
		Locator:           a.locator,
		Binaries:          updates,
		Updater:           updates,
		Processes:         a.processes,
		Start:             start,
		BackgroundUpdates: a.cfg.AutoUpdateEnabled(),
		BackgroundGrace:   backgroundUpdateGrace,
		Logger:            a.log,
	})
}

// decider picks how update prompts are answered: --yes approves, an
// interactive terminal asks, anything else declines.
func (a *app) decider(cmd *cobra.Command, assumeYes bool) update.Decider {
	switch {
	case assumeYes:
		return tui.AutoDecider{Answer: true}
	case a.opts.outputJSON || a.opts.noProgress:
		return nil
	case tui.IsTerminal(cmd.InOrStdin()) && tui.IsTerminal(cmd.ErrOrStderr()):
		a.prompting = true
		return tui.NewConfirmDecider()
	default:
		return nil
	}
}

// withProgress runs work with a progress display suited to out.
func (a *app) withProgress(out io.Writer, title string, work func(download.ProgressFunc) error) error {
	switch tui.DetectMode(out, a.opts.noProgress || a.prompting, a.opts.outputJSON) {
	case tui.ModeTUI:
		return tui.RunWithWork(out, tui.NewProgressModel(title), work)
	case tui.ModePlain:
		return work(tui.LineSink(out))
	default:
		return work(nil)
	}
}

// withStatus shows a spinner with msg on interactive terminals while fn runs.
func (a *app) withStatus(out io.Writer, msg string, fn func()) {
	if tui.DetectMode(out, a.opts.noProgress, a.opts.outputJSON) != tui.ModeTUI {
		fn()
		return
	}
	sw := tui.NewStatusWriter(out)
	sw.Update(msg)
	defer sw.Stop()
	fn()
}
