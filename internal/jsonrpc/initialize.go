package jsonrpc

import (
	"encoding/json"
	"os"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Method names used during the lifecycle handshake.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "initialized"
	MethodShutdown    = "shutdown"
	MethodExit        = "exit"
)

// NewInitializeParams builds the parameters sent with the initialize request.
// rootURI may be empty.
func NewInitializeParams(rootURI string) protocol.InitializeParams {
	pid := protocol.Integer(os.Getpid())
	params := protocol.InitializeParams{
		ProcessID:    &pid,
		Capabilities: protocol.ClientCapabilities{},
	}
	if rootURI != "" {
		uri := protocol.DocumentUri(rootURI)
		params.RootURI = &uri
	}
	return params
}

// InitializeOutcome is the server's answer to initialize.
type InitializeOutcome struct {
	// Raw is the result object exactly as the server sent it.
	Raw json.RawMessage
	// Result is the decoded form; nil when the server's result does not fit
	// the 3.16 types.
	Result *protocol.InitializeResult
}

// Answered reports whether the server sent an initialize result. A server
// that signalled readiness with an initialized notification leaves it empty.
func (o InitializeOutcome) Answered() bool {
	return len(o.Raw) > 0
}

// ServerName returns the advertised server name, if any.
func (o InitializeOutcome) ServerName() string {
	if o.Result == nil || o.Result.ServerInfo == nil {
		return ""
	}
	return o.Result.ServerInfo.Name
}

// ServerVersion returns the advertised server version, if any.
func (o InitializeOutcome) ServerVersion() string {
	if o.Result == nil || o.Result.ServerInfo == nil || o.Result.ServerInfo.Version == nil {
		return ""
	}
	return *o.Result.ServerInfo.Version
}

// DecodeInitializeResult keeps raw and decodes it when possible.
func DecodeInitializeResult(raw json.RawMessage) InitializeOutcome {
	out := InitializeOutcome{Raw: raw}
	var result protocol.InitializeResult
	if err := json.Unmarshal(raw, &result); err == nil {
		out.Result = &result
	}
	return out
}
