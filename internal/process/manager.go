package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"nplserver/internal/jsonrpc"
	"nplserver/internal/logx"
	"nplserver/internal/stream"
)

const (
	// DefaultHandshakeTimeout bounds the wait for the initialize response.
	DefaultHandshakeTimeout = 15 * time.Second
	// DefaultStopGrace is how long a terminated server gets before it is killed.
	DefaultStopGrace = 2 * time.Second
	// StdioFlag asks the server to speak over its standard streams.
	StdioFlag = "--stdio"
)

// Options configures a Manager.
type Options struct {
	Logger           zerolog.Logger
	HandshakeTimeout time.Duration
	StopGrace        time.Duration
	// MeterProvider receives spawn metrics; nil uses the global provider.
	MeterProvider metric.MeterProvider
}

// StartOptions describes one server launch.
type StartOptions struct {
	// Args replaces the default "--stdio" argument list when set.
	Args []string
	// Env entries are appended to the current environment.
	Env []string
	Dir string
	// RootURI is sent as rootUri in the initialize request.
	RootURI string
}

// Manager owns at most one language server process at a time.
type Manager struct {
	log     zerolog.Logger
	timeout time.Duration
	grace   time.Duration
	metrics *metrics

	startMu sync.Mutex

	mu      sync.Mutex
	current *handle
	state   State
}

type handle struct {
	cmd     *exec.Cmd
	stdin   *os.File
	stdout  *os.File
	stderr  *logx.LineWriter
	done    chan struct{}
	waitErr error
}

func (h *handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Session is a ready server and the streams to talk to it. The initialize
// exchange has already happened; Init holds the server's answer.
type Session struct {
	Streams stream.Pair
	PID     int
	Init    jsonrpc.InitializeOutcome

	h *handle
}

// Done is closed when the server process exits.
func (s *Session) Done() <-chan struct{} {
	return s.h.done
}

// ExitErr returns the process exit error once Done is closed.
func (s *Session) ExitErr() error {
	select {
	case <-s.h.done:
		return s.h.waitErr
	default:
		return nil
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}

// NewManager builds a Manager.
func NewManager(opts Options) *Manager {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	grace := opts.StopGrace
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	return &Manager{
		log:     opts.Logger.With().Str("component", "process").Logger(),
		timeout: timeout,
		grace:   grace,
		metrics: newMetrics(opts.MeterProvider),
		state:   StateIdle,
	}
}

// State returns the lifecycle state of the tracked process.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Start launches binaryPath, performs the initialize handshake and returns
// the ready session. Any previously started server is stopped first.
// Cancelling ctx aborts the handshake and kills the new process.
func (m *Manager) Start(ctx context.Context, binaryPath string, opts StartOptions) (*Session, error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.Stop()

	started := time.Now()
	h, err := m.spawn(binaryPath, opts)
	if err != nil {
		m.setState(StateFailed)
		m.metrics.recordSpawn(ctx, "spawn_error", 0)
		m.log.Error().Err(err).Str("path", binaryPath).Msg("spawn language server")
		return nil, err
	}

	m.mu.Lock()
	m.current = h
	m.state = StateSpawned
	m.mu.Unlock()
	go m.watch(h)

	m.log.Info().Str("path", binaryPath).Int("pid", h.cmd.Process.Pid).Msg("language server spawned")

	outcome, reader, err := m.handshake(ctx, h, opts.RootURI)
	if err != nil {
		state, result := StateFailed, "handshake_error"
		var exitErr *PrematureExitError
		switch {
		case errors.Is(err, ErrInitializationTimeout):
			state, result = StateTimedOut, "timeout"
		case errors.As(err, &exitErr):
			result = "premature_exit"
		case ctx.Err() != nil:
			result = "canceled"
		}
		m.release(h)
		m.setState(state)
		m.metrics.recordSpawn(ctx, result, time.Since(started))
		m.log.Error().Err(err).Str("result", result).Msg("language server did not become ready")
		return nil, err
	}

	elapsed := time.Since(started)
	m.setState(StateReady)
	m.metrics.recordSpawn(ctx, "ready", elapsed)
	m.log.Info().
		Int("pid", h.cmd.Process.Pid).
		Str("server", outcome.ServerName()).
		Str("server_version", outcome.ServerVersion()).
		Dur("handshake", elapsed).
		Msg("language server ready")

	return &Session{
		Streams: stream.Pair{
			Reader: readCloser{Reader: reader, Closer: h.stdout},
			Writer: h.stdin,
		},
		PID:  h.cmd.Process.Pid,
		Init: outcome,
		h:    h,
	}, nil
}

func (m *Manager) spawn(binaryPath string, opts StartOptions) (*handle, error) {
	args := opts.Args
	if len(args) == 0 {
		args = []string{StdioFlag}
	}

	cmd := exec.Command(binaryPath, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Path: binaryPath, Err: fmt.Errorf("stdin pipe: %w", err)}
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		inR.Close()
		inW.Close()
		return nil, &SpawnError{Path: binaryPath, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr := logx.NewLineWriter(m.log, zerolog.InfoLevel, "stderr")
	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = stderr
	cmd.WaitDelay = m.grace

	if err := cmd.Start(); err != nil {
		inR.Close()
		inW.Close()
		outR.Close()
		outW.Close()
		return nil, &SpawnError{Path: binaryPath, Err: err}
	}
	// The child holds its own copies now.
	inR.Close()
	outW.Close()

	h := &handle{
		cmd:    cmd,
		stdin:  inW,
		stdout: outR,
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		h.stderr.Flush()
		h.waitErr = err
		close(h.done)
	}()
	return h, nil
}

// watch marks a ready server as exited when its process goes away.
func (m *Manager) watch(h *handle) {
	<-h.done

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != h {
		return
	}
	if m.state == StateReady {
		m.state = StateExited
		m.current = nil
		m.log.Warn().Err(h.waitErr).Msg("language server exited")
	}
}

// Stop terminates the tracked server, if any. Termination errors are logged
// and otherwise ignored.
func (m *Manager) Stop() {
	m.mu.Lock()
	h := m.current
	m.current = nil
	if h != nil {
		m.state = StateExited
	}
	m.mu.Unlock()

	if h == nil {
		return
	}
	m.terminate(h)
}

func (m *Manager) release(h *handle) {
	m.mu.Lock()
	if m.current == h {
		m.current = nil
	}
	m.mu.Unlock()

	m.terminate(h)
	_ = h.stdout.Close()
}

func (m *Manager) terminate(h *handle) {
	_ = h.stdin.Close()
	if h.exited() {
		return
	}

	pid := h.cmd.Process.Pid
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		m.log.Debug().Err(err).Int("pid", pid).Msg("terminate language server")
		_ = h.cmd.Process.Kill()
	}

	select {
	case <-h.done:
		m.log.Info().Int("pid", pid).Msg("language server stopped")
		return
	case <-time.After(m.grace):
	}

	if err := h.cmd.Process.Kill(); err != nil {
		m.log.Debug().Err(err).Int("pid", pid).Msg("kill language server")
	}
	select {
	case <-h.done:
		m.log.Info().Int("pid", pid).Msg("language server killed")
	case <-time.After(m.grace):
		m.log.Warn().Int("pid", pid).Msg("language server did not exit after kill")
	}
}

func exitError(waitErr error) *PrematureExitError {
	if waitErr == nil {
		return &PrematureExitError{Code: 0}
	}
	var ee *exec.ExitError
	if !errors.As(waitErr, &ee) {
		return &PrematureExitError{Code: -1}
	}
	out := &PrematureExitError{Code: ee.ExitCode()}
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		out.Signal = ws.Signal().String()
	}
	return out
}
