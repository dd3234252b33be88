// Package transport implements the full-duplex byte transport the protocol
// layer is built on: blocking, buffered reads and writes over a net.Conn,
// with big-endian framing helpers and poison-on-fault semantics (§4.1).
package transport

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync/atomic"

	"github.com/cedardb/pgwire/pgerr"
)

// DefaultBufferSize matches the buffer size a single TCP segment's worth of
// protocol traffic typically needs without reallocating.
const DefaultBufferSize = 16 * 1024

// Conn wraps a net.Conn with buffered, blocking reads/writes. Once any I/O
// fault occurs, the connection is permanently poisoned: every subsequent
// call fails immediately with the original TransportError without touching
// the network again.
type Conn struct {
	nc     net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	poison atomic.Pointer[pgerr.TransportError]

	onRead  func(n int)
	onWrite func(n int)
}

// New wraps nc. The caller retains ownership of nc's lifecycle (Close).
func New(nc net.Conn) *Conn {
	return &Conn{
		nc: nc,
		r:  bufio.NewReaderSize(nc, DefaultBufferSize),
		w:  bufio.NewWriterSize(nc, DefaultBufferSize),
	}
}

// Raw returns the underlying net.Conn, for operations (TLS upgrade,
// deadlines) the transport layer deliberately does not wrap.
func (c *Conn) Raw() net.Conn { return c.nc }

// SetRaw swaps the underlying net.Conn and its buffers, used when a TLS
// handshake replaces the plaintext connection mid-startup.
func (c *Conn) SetRaw(nc net.Conn) {
	c.nc = nc
	c.r = bufio.NewReaderSize(nc, DefaultBufferSize)
	c.w = bufio.NewWriterSize(nc, DefaultBufferSize)
}

// Poisoned reports whether a prior I/O fault has permanently disabled this
// transport, and returns that fault if so.
func (c *Conn) Poisoned() (*pgerr.TransportError, bool) {
	p := c.poison.Load()
	return p, p != nil
}

func (c *Conn) poisonWith(op string, cause error) *pgerr.TransportError {
	te := pgerr.NewTransportError(op, cause)
	c.poison.CompareAndSwap(nil, te)
	return c.poison.Load()
}

// ReadFull reads exactly len(buf) bytes. A partial read never loses bytes:
// on success buf is fully populated; on failure the connection is poisoned
// and the partial bytes are discarded, since the stream can no longer be
// trusted to resynchronize.
func (c *Conn) ReadFull(buf []byte) error {
	if te, ok := c.Poisoned(); ok {
		return te
	}
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return c.poisonWith("read", err)
	}
	if c.onRead != nil {
		c.onRead(len(buf))
	}
	return nil
}

// SetByteCounters installs hooks invoked with the number of bytes
// transferred on every successful ReadFull/ReadByte (onRead) and Write
// (onWrite); either may be nil to leave that side unobserved. Intended for
// an ambient metrics.Recorder to track bytes transferred without transport
// depending on the metrics package.
func (c *Conn) SetByteCounters(onRead, onWrite func(n int)) {
	c.onRead = onRead
	c.onWrite = onWrite
}

// ReadByte reads a single byte.
func (c *Conn) ReadByte() (byte, error) {
	if te, ok := c.Poisoned(); ok {
		return 0, te
	}
	b, err := c.r.ReadByte()
	if err != nil {
		return 0, c.poisonWith("read", err)
	}
	if c.onRead != nil {
		c.onRead(1)
	}
	return b, nil
}

// ReadUint32 reads a big-endian uint32, as every length field on the wire
// is encoded.
func (c *Conn) ReadUint32() (uint32, error) {
	var buf [4]byte
	if err := c.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// Write buffers buf for the next Flush. The buffer is written through to
// the network early only when it fills; callers must call Flush to
// guarantee delivery.
func (c *Conn) Write(buf []byte) error {
	if te, ok := c.Poisoned(); ok {
		return te
	}
	if _, err := c.w.Write(buf); err != nil {
		return c.poisonWith("write", err)
	}
	if c.onWrite != nil {
		c.onWrite(len(buf))
	}
	return nil
}

// Flush delivers any buffered writes to the network.
func (c *Conn) Flush() error {
	if te, ok := c.Poisoned(); ok {
		return te
	}
	if err := c.w.Flush(); err != nil {
		return c.poisonWith("flush", err)
	}
	return nil
}

// Close closes the underlying net.Conn. It does not itself poison the
// transport with a TransportError — closing is an intentional shutdown, not
// a fault.
func (c *Conn) Close() error {
	return c.nc.Close()
}
