package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingConn struct {
	bytes.Buffer
	closes int
}

func (c *countingConn) Close() error {
	c.closes++
	return nil
}

func TestFromConnClosesOnce(t *testing.T) {
	conn := &countingConn{}
	pair := FromConn(conn)
	require.True(t, pair.Valid())

	_, err := pair.Writer.Write([]byte("ping"))
	require.NoError(t, err)
	got, err := io.ReadAll(pair.Reader)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got))

	require.NoError(t, pair.Close())
	require.NoError(t, pair.Close())
	assert.Equal(t, 1, conn.closes)
}

func TestSeparateHalvesBothClosed(t *testing.T) {
	r, w := &countingConn{}, &countingConn{}
	pair := Pair{Reader: r, Writer: w}

	require.NoError(t, pair.Close())
	assert.Equal(t, 1, r.closes)
	assert.Equal(t, 1, w.closes)
}
