package cli

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nplserver/internal/jsonrpc"
	"nplserver/internal/stream"
)

// drainTimeout bounds how long server output is still relayed after the
// client closed its side.
const drainTimeout = 2 * time.Second

// bridge relays frames between a protocol client and a server connection.
// When the server already answered initialize, the client's initialize
// request is answered from init and its initialized notification is dropped.
// Otherwise every frame passes through unchanged.
type bridge struct {
	server stream.Pair
	init   *jsonrpc.InitializeOutcome
	log    zerolog.Logger
}

func newBridge(server stream.Pair, init *jsonrpc.InitializeOutcome, logger zerolog.Logger) *bridge {
	if init != nil && !init.Answered() {
		init = nil
	}
	return &bridge{
		server: server,
		init:   init,
		log:    logger.With().Str("component", "bridge").Logger(),
	}
}

// Run blocks until the server side closes, the client side closes, or ctx
// is done.
func (b *bridge) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	serverDone := make(chan error, 1)
	started := make(chan struct{})
	var once sync.Once
	startServer := func() {
		once.Do(func() {
			close(started)
			go func() {
				_, err := io.Copy(out, b.server.Reader)
				serverDone <- err
			}()
		})
	}

	clientDone := make(chan error, 1)
	go func() {
		if b.init == nil {
			startServer()
			_, err := io.Copy(b.server.Writer, in)
			clientDone <- err
			return
		}
		clientDone <- b.forwardClient(in, out, startServer)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverDone:
		b.log.Debug().Err(err).Msg("server closed the connection")
		return quiet(err)
	case err := <-clientDone:
		b.log.Debug().Err(err).Msg("client closed the connection")
		b.server.Writer.Close()
		if err = quiet(err); err != nil {
			return err
		}
	}

	select {
	case <-started:
	default:
		return nil
	}
	select {
	case err := <-serverDone:
		return quiet(err)
	case <-time.After(drainTimeout):
		return nil
	case <-ctx.Done():
		return nil
	}
}

// forwardClient copies client frames to the server. answered runs once the
// client's initialize request has been answered.
func (b *bridge) forwardClient(in io.Reader, out io.Writer, answered func()) error {
	fr := jsonrpc.NewReader(in)
	initAnswered, initializedDropped := false, false
	for {
		body, err := fr.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		msg, err := jsonrpc.Decode(body)
		if err == nil {
			switch {
			case !initAnswered && msg.Method == jsonrpc.MethodInitialize && msg.IsRequest():
				resp := jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: msg.ID, Result: b.init.Raw}
				if err := jsonrpc.WriteMessage(out, resp); err != nil {
					return err
				}
				initAnswered = true
				b.log.Debug().Msg("answered client initialize from handshake result")
				answered()
				continue
			case initAnswered && !initializedDropped && msg.Method == jsonrpc.MethodInitialized && msg.IsNotification():
				initializedDropped = true
				continue
			}
		}

		if _, err := b.server.Writer.Write(jsonrpc.Frame(body)); err != nil {
			return err
		}
	}
}

func quiet(err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
