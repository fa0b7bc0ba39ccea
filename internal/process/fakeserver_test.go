package process

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"nplserver/internal/jsonrpc"
)

// fakeServerEnv switches the test binary into a fake language server.
const fakeServerEnv = "NPLSERVER_FAKE_SERVER"

func TestMain(m *testing.M) {
	if mode := os.Getenv(fakeServerEnv); mode != "" {
		os.Exit(runFakeServer(mode))
	}
	os.Exit(m.Run())
}

func fakeServerOptions(mode string) StartOptions {
	return StartOptions{
		Args: []string{StdioFlag},
		Env:  []string{fakeServerEnv + "=" + mode},
	}
}

func runFakeServer(mode string) int {
	switch mode {
	case "glsp":
		return runGLSPServer()
	case "silent":
		_, _ = io.Copy(io.Discard, os.Stdin)
		time.Sleep(time.Hour)
		return 0
	case "exit":
		fmt.Fprintln(os.Stderr, "fatal: cannot start")
		return 3
	case "chatty":
		return runChattyServer()
	case "reject":
		return runRejectingServer()
	case "notify":
		return runNotifyingServer()
	}
	return 2
}

func runGLSPServer() int {
	commonlog.Configure(0, nil)

	var handler protocol.Handler
	handler = protocol.Handler{
		Initialize: func(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
			version := "0.0.1-test"
			return protocol.InitializeResult{
				Capabilities: handler.CreateServerCapabilities(),
				ServerInfo: &protocol.InitializeResultServerInfo{
					Name:    "fake-npl",
					Version: &version,
				},
			}, nil
		},
		Initialized: func(ctx *glsp.Context, params *protocol.InitializedParams) error {
			return nil
		},
		Shutdown: func(ctx *glsp.Context) error {
			return nil
		},
	}

	if err := server.NewServer(&handler, "fake-npl", false).RunStdio(); err != nil {
		return 1
	}
	return 0
}

// runChattyServer logs before answering initialize, then echoes requests.
func runChattyServer() int {
	r := jsonrpc.NewReader(os.Stdin)
	for {
		body, err := r.ReadMessage()
		if err != nil {
			return 0
		}
		msg, err := jsonrpc.Decode(body)
		if err != nil || !msg.IsRequest() {
			continue
		}
		if msg.Method == jsonrpc.MethodInitialize {
			_ = jsonrpc.WriteMessage(os.Stdout, jsonrpc.Notification{
				JSONRPC: jsonrpc.Version,
				Method:  "window/logMessage",
				Params:  map[string]any{"type": 3, "message": "booting"},
			})
			_ = jsonrpc.WriteMessage(os.Stdout, jsonrpc.Response{
				JSONRPC: jsonrpc.Version,
				ID:      msg.ID,
				Result:  json.RawMessage(`{"capabilities":{"hoverProvider":true}}`),
			})
			continue
		}
		result, _ := json.Marshal(map[string]string{"echo": msg.Method})
		_ = jsonrpc.WriteMessage(os.Stdout, jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: msg.ID, Result: result})
	}
}

func runRejectingServer() int {
	r := jsonrpc.NewReader(os.Stdin)
	body, err := r.ReadMessage()
	if err != nil {
		return 1
	}
	msg, _ := jsonrpc.Decode(body)
	_ = jsonrpc.WriteMessage(os.Stdout, jsonrpc.Response{
		JSONRPC: jsonrpc.Version,
		ID:      msg.ID,
		Error:   &jsonrpc.ResponseError{Code: -32603, Message: "workspace unsupported"},
	})
	_, _ = io.Copy(io.Discard, os.Stdin)
	return 0
}

// runNotifyingServer signals readiness with an initialized notification
// instead of answering initialize, then echoes requests.
func runNotifyingServer() int {
	r := jsonrpc.NewReader(os.Stdin)
	for {
		body, err := r.ReadMessage()
		if err != nil {
			return 0
		}
		msg, err := jsonrpc.Decode(body)
		if err != nil || !msg.IsRequest() {
			continue
		}
		if msg.Method == jsonrpc.MethodInitialize {
			_ = jsonrpc.WriteMessage(os.Stdout, jsonrpc.Notification{
				JSONRPC: jsonrpc.Version,
				Method:  jsonrpc.MethodInitialized,
				Params:  struct{}{},
			})
			continue
		}
		result, _ := json.Marshal(map[string]string{"echo": msg.Method})
		_ = jsonrpc.WriteMessage(os.Stdout, jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: msg.ID, Result: result})
	}
}
