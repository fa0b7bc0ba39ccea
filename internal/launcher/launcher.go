// Package launcher produces a connection to a language server, reusing a
// running one when possible and starting a managed one otherwise.
package launcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nplserver/internal/download"
	"nplserver/internal/jsonrpc"
	"nplserver/internal/process"
	"nplserver/internal/stream"
)

// Locator finds an already running server.
type Locator interface {
	ConnectToExistingServer(ctx context.Context) (stream.Pair, bool)
}

// BinaryResolver returns a runnable server binary.
type BinaryResolver interface {
	GetLatestServerBinary(ctx context.Context, root string, sink download.ProgressFunc) (string, error)
}

// Updater checks for and installs newer servers.
type Updater interface {
	CheckForUpdates(ctx context.Context, root string, sink download.ProgressFunc) bool
}

// Starter runs a server process.
type Starter interface {
	Start(ctx context.Context, binaryPath string, opts process.StartOptions) (*process.Session, error)
	Stop()
}

// Source says where a connection came from.
type Source string

const (
	// SourceExisting is a reused server reached over TCP.
	SourceExisting Source = "tcp"
	// SourceSpawned is a server started by this process over stdio.
	SourceSpawned Source = "stdio"
)

// Connection is a ready channel to a language server.
type Connection struct {
	Streams    stream.Pair
	Source     Source
	BinaryPath string
	Session    *process.Session
}

// Init returns the initialize answer for spawned servers; reused servers
// have not been initialized by us and return nil.
func (c *Connection) Init() *jsonrpc.InitializeOutcome {
	if c.Session == nil {
		return nil
	}
	return &c.Session.Init
}

// Options configures a Launcher.
type Options struct {
	Root      string
	Locator   Locator
	Binaries  BinaryResolver
	Updater   Updater
	Processes Starter
	Start     process.StartOptions
	// BackgroundUpdates runs an update check after reusing a server.
	BackgroundUpdates bool
	// BackgroundGrace is how long Close lets a running update finish
	// before cancelling it.
	BackgroundGrace time.Duration
	Logger          zerolog.Logger
}

// Launcher wires server discovery, binary resolution and process start together.
type Launcher struct {
	root              string
	locator           Locator
	binaries          BinaryResolver
	updater           Updater
	processes         Starter
	start             process.StartOptions
	backgroundUpdates bool
	backgroundGrace   time.Duration
	log               zerolog.Logger

	mu       sync.Mutex
	bgCancel []context.CancelFunc
	bg       sync.WaitGroup
}

// New builds a Launcher.
func New(opts Options) *Launcher {
	return &Launcher{
		root:              opts.Root,
		locator:           opts.Locator,
		binaries:          opts.Binaries,
		updater:           opts.Updater,
		processes:         opts.Processes,
		start:             opts.Start,
		backgroundUpdates: opts.BackgroundUpdates,
		backgroundGrace:   opts.BackgroundGrace,
		log:               opts.Logger.With().Str("component", "launcher").Logger(),
	}
}

// Connect looks for a running server first and only falls back to
// resolving a binary and spawning it when none answers.
func (l *Launcher) Connect(ctx context.Context, sink download.ProgressFunc) (*Connection, error) {
	if pair, ok := l.locator.ConnectToExistingServer(ctx); ok {
		l.log.Info().Msg("reusing running language server")
		if l.backgroundUpdates && l.updater != nil {
			l.checkUpdatesInBackground()
		}
		return &Connection{Streams: pair, Source: SourceExisting}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := l.binaries.GetLatestServerBinary(ctx, l.root, sink)
	if err != nil {
		return nil, fmt.Errorf("obtain server binary: %w", err)
	}

	session, err := l.processes.Start(ctx, path, l.start)
	if err != nil {
		return nil, fmt.Errorf("start language server: %w", err)
	}
	return &Connection{
		Streams:    session.Streams,
		Source:     SourceSpawned,
		BinaryPath: path,
		Session:    session,
	}, nil
}

func (l *Launcher) checkUpdatesInBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.bgCancel = append(l.bgCancel, cancel)
	l.mu.Unlock()

	l.bg.Add(1)
	go func() {
		defer l.bg.Done()
		defer cancel()
		if l.updater.CheckForUpdates(ctx, l.root, nil) {
			l.log.Info().Msg("newer server installed; it will be used on the next start")
		}
	}()
}

// Close waits up to the background grace period for update checks, cancels
// whatever is still running and stops any server this launcher started.
func (l *Launcher) Close() {
	l.awaitBackground(l.backgroundGrace)

	l.mu.Lock()
	cancels := l.bgCancel
	l.bgCancel = nil
	l.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	l.bg.Wait()
	l.processes.Stop()
}

func (l *Launcher) awaitBackground(grace time.Duration) {
	if grace <= 0 {
		return
	}
	done := make(chan struct{})
	go func() {
		l.bg.Wait()
		close(done)
	}()
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		l.log.Warn().Dur("grace", grace).Msg("background update still running; cancelling")
	}
}
