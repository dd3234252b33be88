// Package cancel implements the PostgreSQL cancel-request side channel
// (§4.5, §6): a client that wants to abort a long-running query on an
// existing connection opens a brand new connection and sends a fixed
// 16-byte packet carrying the target's backend PID and secret key, then
// closes it without waiting for a reply. The server never responds to a
// cancel request on this channel — any answer belongs to the original
// connection, not this one.
package cancel

import (
	"encoding/binary"
	"net"

	"github.com/cedardb/pgwire/pgerr"
)

// requestCode is the fixed startup code (in place of a protocol version)
// that identifies this 16-byte packet as a cancel request rather than a
// StartupMessage.
const requestCode = 80877102

// packetLength is the cancel request's fixed wire size: a 4-byte length
// prefix, the 4-byte request code, and two 4-byte int32 fields.
const packetLength = 16

// Request is the (pid, secret) pair BackendKeyData handed the client at
// startup, the only two fields a cancel request carries.
type Request struct {
	BackendPID    int32
	BackendSecret int32
}

// Send dials addr (the same address the original connection was made to,
// using the same network), writes the cancel packet, and closes the
// connection immediately. It does not wait for or expect any response —
// per the protocol, the server closes the channel without replying
// whether or not the cancel had any effect.
func Send(network, addr string, req Request) error {
	nc, err := net.Dial(network, addr)
	if err != nil {
		return pgerr.NewTransportError("cancel.Send: dial", err)
	}
	defer nc.Close()
	return SendOn(nc, req)
}

// SendOn writes the cancel packet on an already-established connection
// (useful when the caller wants to control dial timeouts, TLS, or reuse a
// net.Dialer) and leaves the connection open for the caller to close.
func SendOn(nc net.Conn, req Request) error {
	buf := make([]byte, packetLength)
	binary.BigEndian.PutUint32(buf[0:4], packetLength)
	binary.BigEndian.PutUint32(buf[4:8], requestCode)
	binary.BigEndian.PutUint32(buf[8:12], uint32(req.BackendPID))
	binary.BigEndian.PutUint32(buf[12:16], uint32(req.BackendSecret))

	if _, err := nc.Write(buf); err != nil {
		return pgerr.NewTransportError("cancel.SendOn: write", err)
	}
	return nil
}
