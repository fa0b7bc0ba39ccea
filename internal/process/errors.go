package process

import (
	"errors"
	"fmt"
)

var (
	// ErrInitializationTimeout means the server did not answer initialize in time.
	ErrInitializationTimeout = errors.New("language server initialization timed out")
	// ErrHandshakeFailed means the server answered initialize with an error or
	// broke the framing.
	ErrHandshakeFailed = errors.New("language server handshake failed")
)

// SpawnError reports a failure to start the server process.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn language server %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// PrematureExitError reports a server that exited before becoming ready.
// Code is -1 when the process was killed by a signal.
type PrematureExitError struct {
	Code   int
	Signal string
}

func (e *PrematureExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("language server exited before initialization (signal %s)", e.Signal)
	}
	return fmt.Sprintf("language server exited before initialization (code %d)", e.Code)
}
