package protocol

import (
	"github.com/cedardb/pgwire/copyproto"
	"github.com/cedardb/pgwire/message"
	"github.com/cedardb/pgwire/pgerr"
)

// BeginCopy runs sql through the simple query protocol and, if the server
// responds with CopyInResponse or CopyOutResponse instead of a row result,
// returns a copyproto.Session straddling the COPY sub-protocol (§4.7). Any
// other response yields an error and no session: an ErrorResponse is
// returned as its ServerError once the connection is back at ReadyForQuery;
// after a NoticeResponse the rest of the reply is read as an ordinary
// SimpleQuery result and a StateError is returned; any other message is a
// ProtocolViolation that closes the connection.
func (c *Conn) BeginCopy(sql string) (*copyproto.Session, error) {
	var session *copyproto.Session
	err := c.guard("BeginCopy", func() error {
		if err := c.requireState("BeginCopy", StateReadyIdle); err != nil {
			return err
		}

		if err := c.send(&message.Query{SQL: sql}); err != nil {
			return c.fail(err)
		}
		if err := c.t.Flush(); err != nil {
			return c.fail(err)
		}

		msg, err := c.recv()
		if err != nil {
			return c.fail(err)
		}

		switch m := msg.(type) {
		case *message.CopyResponse:
			if m.In {
				c.setState(StateCopyIn)
				session = copyproto.New((*copyConn)(c), copyproto.DirectionIn, m)
				session.SetCompletionHook(func(rowCount int64) { c.metrics.CopyRows("in", rowCount) })
			} else {
				c.setState(StateCopyOut)
				session = copyproto.New((*copyConn)(c), copyproto.DirectionOut, m)
				session.SetCompletionHook(func(rowCount int64) { c.metrics.CopyRows("out", rowCount) })
			}
			return nil
		case *message.ErrorOrNotice:
			if m.IsError {
				_ = c.drainToReady()
				return m.ToServerError()
			}
			if err := c.finishNonCopy(); err != nil {
				return err
			}
			return pgerr.NewStateError("BeginCopy", "query did not start a COPY")
		default:
			return c.fail(pgerr.NewProtocolViolation("expected CopyInResponse/CopyOutResponse, got something else", nil))
		}
	})
	return session, err
}

// finishNonCopy drains and discards an ordinary (non-COPY) simple-query
// result after a notice was seen immediately following the Query message;
// used only in the unusual case where BeginCopy's caller's sql didn't
// actually trigger COPY.
func (c *Conn) finishNonCopy() error {
	_, err := c.readSimpleQueryResults()
	return err
}

// drainToReady reads messages until ReadyForQuery, used to resynchronize
// after BeginCopy discovers the query was not in fact a COPY.
func (c *Conn) drainToReady() error {
	for {
		msg, err := c.recv()
		if err != nil {
			return c.fail(err)
		}
		switch m := msg.(type) {
		case *message.CommandComplete:
			c.lastCopyTag = m.Tag
		case *message.ReadyForQuery:
			c.mu.Lock()
			c.txStatus = TxStatus(m.Status)
			c.mu.Unlock()
			c.setState(StateReadyIdle)
			return nil
		}
	}
}

// rejectUnexpectedCopy handles a CopyInResponse/CopyOutResponse arriving in
// response to a statement run through the generic query facade (SimpleQuery
// or ExecutePrepared), which don't speak the COPY sub-protocol. Per §8
// scenario 6, this must not poison the connection: for copy-in it cancels
// the exchange with CopyFail and drains the server's resulting error down
// to ReadyForQuery; for copy-out it discards the CopyData stream down to
// CopyDone and drains the rest the same way BeginCopy's ReadCopyMessage
// does. Either way it returns a non-fatal StateError and leaves the
// connection in StateReadyIdle.
func (c *Conn) rejectUnexpectedCopy(m *message.CopyResponse, op string) error {
	const reason = "pgwire: COPY issued through the generic query facade; use BeginCopy instead"

	if m.In {
		if err := c.send(&message.CopyFail{Reason: reason}); err != nil {
			return c.fail(err)
		}
		if err := c.t.Flush(); err != nil {
			return c.fail(err)
		}
		if err := c.awaitCopyEnd(); err != nil && c.State() != StateReadyIdle {
			return err
		}
	} else {
		for {
			msg, err := c.recv()
			if err != nil {
				return c.fail(err)
			}
			if _, ok := msg.(*message.CopyDone); ok {
				break
			}
		}
		if err := c.drainToReady(); err != nil {
			return err
		}
	}

	return pgerr.NewStateError(op, "COPY response received; use BeginCopy for COPY statements")
}

// copyConn adapts *Conn to copyproto's wireConn interface without exposing
// that interface (or the message package) to copyproto package callers.
type copyConn Conn

func (cc *copyConn) conn() *Conn { return (*Conn)(cc) }

// LastCopyTag returns the most recent "COPY n" CommandComplete tag this
// Conn observed while ending a COPY sub-protocol exchange.
func (cc *copyConn) LastCopyTag() string { return cc.conn().lastCopyTag }

func (cc *copyConn) WriteCopyData(data []byte) error {
	c := cc.conn()
	if err := c.send(&message.CopyData{Data: data}); err != nil {
		return err
	}
	return c.t.Flush()
}

func (cc *copyConn) WriteCopyDone() error {
	c := cc.conn()
	if err := c.send(&message.CopyDone{}); err != nil {
		return err
	}
	if err := c.t.Flush(); err != nil {
		return err
	}
	return c.awaitCopyEnd()
}

func (cc *copyConn) WriteCopyFail(reason string) error {
	c := cc.conn()
	if err := c.send(&message.CopyFail{Reason: reason}); err != nil {
		return err
	}
	if err := c.t.Flush(); err != nil {
		return err
	}
	return c.awaitCopyEnd()
}

// awaitCopyEnd reads messages after a CopyDone/CopyFail has been sent for
// copy-in, until the terminal CommandComplete/ErrorResponse and
// ReadyForQuery. The CommandComplete tag is stored for LastCopyTag, from
// which the copyproto.Session parses the row count; an ErrorResponse is
// held and returned once ReadyForQuery has restored StateReadyIdle.
func (c *Conn) awaitCopyEnd() error {
	for {
		msg, err := c.recv()
		if err != nil {
			return c.fail(err)
		}
		switch m := msg.(type) {
		case *message.CommandComplete:
			c.lastCopyTag = m.Tag
		case *message.ErrorOrNotice:
			if m.IsError {
				c.lastCopyErr = m.ToServerError()
			}
		case *message.ReadyForQuery:
			c.mu.Lock()
			c.txStatus = TxStatus(m.Status)
			c.mu.Unlock()
			c.setState(StateReadyIdle)
			if c.lastCopyErr != nil {
				err := c.lastCopyErr
				c.lastCopyErr = nil
				return err
			}
			return nil
		}
	}
}

// ReadCopyMessage returns the next CopyData message for a copy-out
// session. When the server's CopyDone arrives, it drains the remaining
// CommandComplete/ReadyForQuery that end the simple-query cycle, restores
// ReadyIdle, and only then hands the CopyDone back to the caller — a
// caller that sees CopyDone from ReadCopyMessage never needs to drain
// anything itself.
func (cc *copyConn) ReadCopyMessage() (any, error) {
	c := cc.conn()
	for {
		msg, err := c.recv()
		if err != nil {
			return nil, c.fail(err)
		}
		switch m := msg.(type) {
		case *message.CopyData:
			return m, nil
		case *message.CopyDone:
			if err := c.drainToReady(); err != nil {
				return nil, err
			}
			return m, nil
		case *message.ErrorOrNotice:
			if m.IsError {
				_ = c.drainToReady()
				return nil, m.ToServerError()
			}
		case *message.ParameterStatus:
			c.mu.Lock()
			c.parameters[m.Name] = m.Value
			c.mu.Unlock()
		default:
			return nil, c.fail(pgerr.NewProtocolViolation("unexpected message during copy-out", nil))
		}
	}
}
