package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"nplserver/internal/jsonrpc"
	"nplserver/internal/logx"
)

const initializeRequestID int64 = 1

// exitSettle is how long a read failure waits for the process exit status
// so the failure can be reported as a premature exit.
const exitSettle = 500 * time.Millisecond

type handshakeResult struct {
	outcome jsonrpc.InitializeOutcome
	replay  []byte
	err     error
}

// handshake sends initialize and waits for the answer. The returned reader
// yields every server frame not consumed by the handshake, followed by the
// rest of stdout.
func (m *Manager) handshake(ctx context.Context, h *handle, rootURI string) (jsonrpc.InitializeOutcome, io.Reader, error) {
	m.setState(StateAwaitingHandshake)

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	source := io.TeeReader(h.stdout, logx.NewLineWriter(m.log, zerolog.DebugLevel, "stdout"))
	fr := jsonrpc.NewReader(source)

	results := make(chan handshakeResult, 1)
	go func() { results <- readHandshake(fr) }()

	req := jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      initializeRequestID,
		Method:  jsonrpc.MethodInitialize,
		Params:  jsonrpc.NewInitializeParams(rootURI),
	}
	if err := jsonrpc.WriteMessage(h.stdin, req); err != nil {
		if exited := waitExit(h, exitSettle); exited != nil {
			return jsonrpc.InitializeOutcome{}, nil, exited
		}
		return jsonrpc.InitializeOutcome{}, nil, fmt.Errorf("%w: send initialize: %v", ErrHandshakeFailed, err)
	}

	select {
	case res := <-results:
		if res.err != nil {
			if exited := waitExit(h, exitSettle); exited != nil {
				return jsonrpc.InitializeOutcome{}, nil, exited
			}
			return jsonrpc.InitializeOutcome{}, nil, res.err
		}
		initialized := jsonrpc.Notification{
			JSONRPC: jsonrpc.Version,
			Method:  jsonrpc.MethodInitialized,
			Params:  struct{}{},
		}
		if err := jsonrpc.WriteMessage(h.stdin, initialized); err != nil {
			return jsonrpc.InitializeOutcome{}, nil, fmt.Errorf("%w: send initialized: %v", ErrHandshakeFailed, err)
		}
		pending := append(res.replay, fr.Buffered()...)
		if len(res.replay) > 0 {
			m.log.Debug().Int("bytes", len(res.replay)).Msg("replaying frames received during handshake")
		}
		return res.outcome, io.MultiReader(bytes.NewReader(pending), source), nil

	case <-h.done:
		return jsonrpc.InitializeOutcome{}, nil, exitError(h.waitErr)

	case <-timer.C:
		return jsonrpc.InitializeOutcome{}, nil, fmt.Errorf("%w after %s", ErrInitializationTimeout, m.timeout)

	case <-ctx.Done():
		return jsonrpc.InitializeOutcome{}, nil, fmt.Errorf("language server handshake: %w", ctx.Err())
	}
}

func waitExit(h *handle, d time.Duration) error {
	select {
	case <-h.done:
		return exitError(h.waitErr)
	case <-time.After(d):
		return nil
	}
}

func readHandshake(fr *jsonrpc.Reader) handshakeResult {
	var replay bytes.Buffer
	for {
		body, err := fr.ReadMessage()
		if err != nil {
			return handshakeResult{err: fmt.Errorf("%w: %v", ErrHandshakeFailed, err)}
		}

		msg, err := jsonrpc.Decode(body)
		if err != nil {
			replay.Write(jsonrpc.Frame(body))
			continue
		}

		switch {
		case msg.IsResponse() && msg.HasID(initializeRequestID):
			if msg.Error != nil {
				return handshakeResult{err: fmt.Errorf("%w: %v", ErrHandshakeFailed, msg.Error)}
			}
			if !msg.ResultHasField("capabilities") {
				return handshakeResult{err: fmt.Errorf("%w: initialize result has no capabilities", ErrHandshakeFailed)}
			}
			return handshakeResult{outcome: jsonrpc.DecodeInitializeResult(msg.Result), replay: replay.Bytes()}

		case msg.IsNotification() && msg.Method == jsonrpc.MethodInitialized:
			return handshakeResult{replay: replay.Bytes()}

		default:
			replay.Write(jsonrpc.Frame(body))
		}
	}
}
