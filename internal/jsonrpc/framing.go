// Package jsonrpc implements the Content-Length framed JSON-RPC messages used
// by language servers over stdio.
package jsonrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Version is the JSON-RPC protocol version carried by every message.
const Version = "2.0"

// maxContentLength rejects absurd frame sizes from a misbehaving peer.
const maxContentLength = 64 << 20

// ErrMalformedFrame reports a header block that cannot be parsed.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame encodes body with its Content-Length header.
func Frame(body []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(body))
	buf.Write(body)
	return buf.Bytes()
}

// WriteMessage marshals v and writes it as a single frame.
func WriteMessage(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.Write(Frame(data)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Reader reads frames from a stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Buffered returns bytes read from the underlying stream but not yet consumed.
func (fr *Reader) Buffered() []byte {
	n := fr.r.Buffered()
	if n == 0 {
		return nil
	}
	peeked, _ := fr.r.Peek(n)
	out := make([]byte, len(peeked))
	copy(out, peeked)
	return out
}

// ReadMessage returns the body of the next frame.
func (fr *Reader) ReadMessage() (json.RawMessage, error) {
	contentLength := -1
	sawHeader := false

	for {
		line, err := fr.r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && !sawHeader && line == "" {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if !sawHeader {
				continue
			}
			break
		}
		sawHeader = true

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header line %q", ErrMalformedFrame, line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 || n > maxContentLength {
				return nil, fmt.Errorf("%w: Content-Length %q", ErrMalformedFrame, value)
			}
			contentLength = n
		}
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("%w: missing Content-Length", ErrMalformedFrame)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
