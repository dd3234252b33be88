// Package driver is the adapter-facing contract over the core: open/close,
// execute-with-params, a row iterator, COPY start, and cancellation. It is
// deliberately thin — no connection pooling, no database/sql integration —
// proving the protocol/copyproto/pgtype layers compose into something a
// real caller can drive without reaching into protocol.Conn directly.
package driver

import (
	"context"
	"net"

	"github.com/cedardb/pgwire/cancel"
	"github.com/cedardb/pgwire/copyproto"
	"github.com/cedardb/pgwire/metrics"
	"github.com/cedardb/pgwire/pgerr"
	"github.com/cedardb/pgwire/pgtype"
	"github.com/cedardb/pgwire/protocol"
)

// Conn is one open connection: a dialed socket plus the protocol state
// machine driving it, positioned at protocol.StateReadyIdle once Open
// returns successfully.
type Conn struct {
	pc      *protocol.Conn
	network string
	address string
}

// Open dials address, performs the startup handshake (params plus creds),
// and returns a Conn ready for Query/Exec/BeginCopy.
func Open(ctx context.Context, network, address string, params map[string]string, creds protocol.AuthCredentials) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, pgerr.NewTransportError("driver.Open: dial", err)
	}
	return newConn(nc, network, address, params, creds)
}

func newConn(nc net.Conn, network, address string, params map[string]string, creds protocol.AuthCredentials) (*Conn, error) {
	pc := protocol.Dial(nc)
	if err := pc.Startup(params, creds); err != nil {
		return nil, err
	}
	return &Conn{pc: pc, network: network, address: address}, nil
}

// Close terminates the connection.
func (c *Conn) Close() error { return c.pc.Close() }

// SetMetrics attaches rec as this connection's metrics.Recorder.
func (c *Conn) SetMetrics(rec *metrics.Recorder) { c.pc.SetMetrics(rec) }

// Types exposes the registry this Conn encodes/decodes values with, so a
// caller can register additional codecs before issuing queries.
func (c *Conn) Types() *pgtype.Registry { return c.pc.Types }

// State reports the connection's current protocol state.
func (c *Conn) State() protocol.State { return c.pc.State() }

// Cancel dials a fresh connection to this Conn's address and fires a
// CancelRequest for it. The protocol requires the cancel channel never be
// the connection being cancelled (§4.5), so this always opens a new socket
// rather than reusing c's.
func (c *Conn) Cancel(ctx context.Context) error {
	var d net.Dialer
	nc, err := d.DialContext(ctx, c.network, c.address)
	if err != nil {
		return pgerr.NewTransportError("driver.Cancel: dial", err)
	}
	defer nc.Close()
	return cancel.SendOn(nc, c.pc.CancelRequest())
}

// Query runs sql through the simple query protocol, returning one *Rows
// per ;-separated statement the server executed.
func (c *Conn) Query(sql string) ([]*Rows, error) {
	qr, err := c.pc.SimpleQuery(sql)
	if err != nil {
		return nil, err
	}
	out := make([]*Rows, len(qr.Statements))
	for i, st := range qr.Statements {
		out[i] = newRows(st.RowDescription, st.Rows, st.Tag, c.pc.Types)
	}
	return out, nil
}

// Exec runs sql once through the extended query protocol with params bound
// positionally by paramOIDs, applying the connection's prepare-threshold
// promotion policy (§4.6) across repeated calls with identical sql.
func (c *Conn) Exec(sql string, paramOIDs []uint32, params [][]byte) (*Rows, error) {
	res, err := c.pc.ExecutePrepared(sql, paramOIDs, params, nil)
	if err != nil {
		return nil, err
	}
	return newRows(res.RowDescription, res.Rows, res.Tag, c.pc.Types), nil
}

// BeginCopy runs sql and, if the server answers with CopyInResponse or
// CopyOutResponse, returns the copyproto.Session straddling the COPY
// sub-protocol; the caller drives it with copyproto's RowWriter, ByteSink,
// ReaderSource, or Sink, whichever shape fits.
func (c *Conn) BeginCopy(sql string) (*copyproto.Session, error) {
	return c.pc.BeginCopy(sql)
}
