// Package stream defines the duplex byte channel handed to protocol clients.
package stream

import (
	"errors"
	"io"
)

// Pair is a read side and a write side of one logical connection. For a TCP
// connection both halves are the same socket.
type Pair struct {
	Reader io.ReadCloser
	Writer io.WriteCloser
}

// FromConn builds a Pair whose halves share conn.
func FromConn(conn io.ReadWriteCloser) Pair {
	shared := &onceCloser{rwc: conn}
	return Pair{Reader: shared, Writer: shared}
}

// Close closes both halves, closing a shared half only once.
func (p Pair) Close() error {
	var errs []error
	if p.Writer != nil {
		errs = append(errs, p.Writer.Close())
	}
	if p.Reader != nil && !sameCloser(p.Reader, p.Writer) {
		errs = append(errs, p.Reader.Close())
	}
	return errors.Join(errs...)
}

// Valid reports whether both halves are set.
func (p Pair) Valid() bool {
	return p.Reader != nil && p.Writer != nil
}

func sameCloser(r io.ReadCloser, w io.WriteCloser) bool {
	rc, ok1 := r.(*onceCloser)
	wc, ok2 := w.(*onceCloser)
	return ok1 && ok2 && rc == wc
}

type onceCloser struct {
	rwc    io.ReadWriteCloser
	closed bool
}

func (o *onceCloser) Read(p []byte) (int, error)  { return o.rwc.Read(p) }
func (o *onceCloser) Write(p []byte) (int, error) { return o.rwc.Write(p) }

func (o *onceCloser) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	return o.rwc.Close()
}
