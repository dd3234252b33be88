package protocol

import (
	"github.com/sirupsen/logrus"

	"github.com/cedardb/pgwire/message"
	"github.com/cedardb/pgwire/pgerr"
)

// StatementResult is one statement's worth of simple-query output. The
// server may run several ;-separated statements for a single Query message,
// each producing its own StatementResult, all under one final
// ReadyForQuery.
type StatementResult struct {
	RowDescription *message.RowDescription
	Rows          [][][]byte
	Tag           string
	EmptyQuery    bool
}

// QueryResult collects every StatementResult a single simple-query Query
// message produced.
type QueryResult struct {
	Statements []StatementResult
}

// SimpleQuery runs sql through the simple query protocol (§4.6): one Query
// message, then a read loop collecting RowDescription/DataRow*/
// CommandComplete groups (or EmptyQueryResponse) per statement until the
// matching ReadyForQuery. A ServerError is sticky: reading continues (since
// the server still owes a ReadyForQuery) but SimpleQuery returns it once
// that arrives.
func (c *Conn) SimpleQuery(sql string) (*QueryResult, error) {
	var result *QueryResult
	err := c.guard("SimpleQuery", func() error {
		if err := c.requireState("SimpleQuery", StateReadyIdle); err != nil {
			return err
		}
		c.setState(StateSimpleQuery)

		if err := c.send(&message.Query{SQL: sql}); err != nil {
			return c.fail(err)
		}
		if err := c.t.Flush(); err != nil {
			return c.fail(err)
		}

		r, err := c.readSimpleQueryResults()
		result = r
		return err
	})
	return result, err
}

func (c *Conn) readSimpleQueryResults() (*QueryResult, error) {
	qr := &QueryResult{}
	var cur StatementResult
	var firstErr error

	for {
		msg, err := c.recv()
		if err != nil {
			return nil, c.fail(err)
		}
		switch m := msg.(type) {
		case *message.RowDescription:
			cur = StatementResult{RowDescription: m}
		case *message.DataRow:
			cur.Rows = append(cur.Rows, m.Values)
		case *message.CommandComplete:
			cur.Tag = m.Tag
			qr.Statements = append(qr.Statements, cur)
			cur = StatementResult{}
		case *message.EmptyQueryResponse:
			qr.Statements = append(qr.Statements, StatementResult{EmptyQuery: true})
			cur = StatementResult{}
		case *message.ErrorOrNotice:
			if m.IsError {
				if firstErr == nil {
					firstErr = m.ToServerError()
				}
			} else {
				logrus.Debugf("pgwire: notice: %s", m.Message)
			}
		case *message.ReadyForQuery:
			c.mu.Lock()
			c.txStatus = TxStatus(m.Status)
			c.mu.Unlock()
			c.setState(StateReadyIdle)
			if firstErr != nil {
				return nil, firstErr
			}
			return qr, nil
		case *message.CopyResponse:
			return nil, c.rejectUnexpectedCopy(m, "SimpleQuery")
		default:
			return nil, c.fail(pgerr.NewProtocolViolation("unexpected message during simple query", nil))
		}
	}
}
