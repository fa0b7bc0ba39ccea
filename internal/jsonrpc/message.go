package jsonrpc

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Request is an outgoing call that expects a response.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Notification is an outgoing message without an id.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Response answers a request. ID is kept raw so string and numeric ids echo
// back unchanged.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the error member of a failed response.
type ResponseError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	return "jsonrpc error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// Message is a decoded incoming message of any kind.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// Decode parses a frame body.
func Decode(body []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(body, &msg)
	return msg, err
}

func (m Message) hasID() bool {
	return len(m.ID) > 0 && !bytes.Equal(m.ID, []byte("null"))
}

// IsRequest reports whether m is a call expecting a response.
func (m Message) IsRequest() bool {
	return m.Method != "" && m.hasID()
}

// IsNotification reports whether m is a method call without an id.
func (m Message) IsNotification() bool {
	return m.Method != "" && !m.hasID()
}

// IsResponse reports whether m answers an earlier request.
func (m Message) IsResponse() bool {
	return m.Method == "" && m.hasID()
}

// HasID reports whether m carries the numeric id.
func (m Message) HasID(id int64) bool {
	if !m.hasID() {
		return false
	}
	raw := bytes.Trim(m.ID, `"`)
	n, err := strconv.ParseInt(string(raw), 10, 64)
	return err == nil && n == id
}

// ResultHasField reports whether the result object contains key.
func (m Message) ResultHasField(key string) bool {
	if len(m.Result) == 0 {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(m.Result, &fields); err != nil {
		return false
	}
	_, ok := fields[key]
	return ok
}
