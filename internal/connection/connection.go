// Package connection reuses a language server that is already listening on
// the local TCP port.
package connection

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"nplserver/internal/stream"
)

const (
	// DefaultPort is used when no valid port is configured.
	DefaultPort = 5007
	// DefaultTimeout bounds a single connection attempt.
	DefaultTimeout = 5 * time.Second
)

// Locator dials localhost to find a running server.
type Locator struct {
	host    string
	port    int
	timeout time.Duration
	log     zerolog.Logger
}

// NewLocator builds a Locator. Invalid ports and timeouts fall back to defaults.
func NewLocator(port int, timeout time.Duration, logger zerolog.Logger) *Locator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Locator{
		host:    "localhost",
		port:    ResolvePort(port),
		timeout: timeout,
		log:     logger.With().Str("component", "connection").Logger(),
	}
}

// ResolvePort returns port when it is a valid TCP port, otherwise DefaultPort.
func ResolvePort(port int) int {
	if port < 1 || port > 65535 {
		return DefaultPort
	}
	return port
}

// Address returns the dialed host:port.
func (p *Locator) Address() string {
	return net.JoinHostPort(p.host, strconv.Itoa(p.port))
}

// ConnectToExistingServer dials the configured port. It returns ok=false when
// nothing accepts the connection in time; that is the normal "no server" case.
func (p *Locator) ConnectToExistingServer(ctx context.Context) (stream.Pair, bool) {
	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", p.Address())
	if err != nil {
		p.log.Debug().Err(err).Str("addr", p.Address()).Msg("no existing server")
		return stream.Pair{}, false
	}
	p.log.Info().Str("addr", p.Address()).Msg("connected to existing server")
	return stream.FromConn(conn), true
}
