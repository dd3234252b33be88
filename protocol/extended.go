package protocol

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cedardb/pgwire/message"
	"github.com/cedardb/pgwire/pgerr"
)

// unnamedStatementName and unnamedPortalName are the wire's spelling of
// "unnamed" (an empty string).
const (
	unnamedStatementName = ""
	unnamedPortalName    = ""
)

// ExecuteResult is what one Bind+Execute cycle of the extended query
// protocol produces.
type ExecuteResult struct {
	RowDescription *message.RowDescription
	Rows           [][][]byte
	Tag            string
	Suspended      bool // true if Execute's row limit cut the result short
}

// ExecutePrepared runs sql with params through the extended query protocol,
// applying the prepare-threshold promotion policy (§4.6): the first
// prepareThreshold-1 executions of identical SQL text re-Parse an unnamed
// statement each time; on the Nth execution the statement is promoted to a
// named, server-cached prepared statement that later executions reuse
// without re-Parsing.
func (c *Conn) ExecutePrepared(sql string, paramOIDs []uint32, params [][]byte, resultFormats []message.FieldFormat) (*ExecuteResult, error) {
	var result *ExecuteResult
	err := c.guard("ExecutePrepared", func() error {
		if err := c.requireState("ExecutePrepared", StateReadyIdle); err != nil {
			return err
		}
		c.setState(StateExtendedQuery)

		stmt, err := c.resolveStatement(sql, paramOIDs)
		if err != nil {
			return c.fail(err)
		}

		if err := c.send(&message.Bind{
			Portal:        unnamedPortalName,
			Statement:     stmt.Name,
			Params:        params,
			ResultFormats: resultFormats,
		}); err != nil {
			return c.fail(err)
		}
		if err := c.send(&message.Execute{Portal: unnamedPortalName}); err != nil {
			return c.fail(err)
		}
		if err := c.send(&message.Sync{}); err != nil {
			return c.fail(err)
		}
		if err := c.t.Flush(); err != nil {
			return c.fail(err)
		}

		r, err := c.readExtendedQueryResult(stmt.RowDesc)
		result = r
		return err
	})
	return result, err
}

// resolveStatement implements the promotion policy: it returns a
// PreparedStatement ready to Bind against, issuing Parse and Describe only
// when no cached named statement can be reused.
func (c *Conn) resolveStatement(sql string, paramOIDs []uint32) (*PreparedStatement, error) {
	c.mu.Lock()
	c.parseCounts[sql]++
	count := c.parseCounts[sql]
	threshold := c.prepareThreshold
	c.mu.Unlock()

	if threshold > 0 && count >= threshold {
		name := c.promotedStatementName(sql)
		if cached, ok := c.statements.Get(name); ok && cached.SQL == sql {
			return cached, nil
		}
		stmt, err := c.parseAndDescribe(name, sql, paramOIDs)
		if err != nil {
			return nil, err
		}
		stmt.promoted = true
		if evicted := c.statements.Put(name, stmt); evicted != nil {
			c.closeStatementBestEffort(evicted.Name)
		}
		return stmt, nil
	}

	return c.parseAndDescribe(unnamedStatementName, sql, paramOIDs)
}

// promotedStatementName returns the server-side name this Conn uses for a
// promoted statement, generating and remembering a fresh uuid the first
// time sql is promoted so that later executions of identical SQL text
// resolve to the same cache entry.
func (c *Conn) promotedStatementName(sql string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.promotedNames[sql]; ok {
		return name
	}
	name := "pgwire_" + uuid.New().String()
	c.promotedNames[sql] = name
	return name
}

func (c *Conn) parseAndDescribe(name, sql string, paramOIDs []uint32) (*PreparedStatement, error) {
	if err := c.send(&message.Parse{Statement: name, Query: sql, ParamOIDs: paramOIDs}); err != nil {
		return nil, err
	}
	if err := c.send(&message.Describe{Target: message.TargetStatement, Name: name}); err != nil {
		return nil, err
	}
	if err := c.send(&message.Sync{}); err != nil {
		return nil, err
	}
	if err := c.t.Flush(); err != nil {
		return nil, err
	}

	stmt := &PreparedStatement{Name: name, SQL: sql, ParamOIDs: paramOIDs}
	var firstErr error
	for {
		msg, err := c.recv()
		if err != nil {
			return nil, err
		}
		switch m := msg.(type) {
		case *message.ParseComplete:
		case *message.ParameterDescription:
			stmt.ParamOIDs = m.OIDs
		case *message.RowDescription:
			stmt.RowDesc = m
		case *message.NoData:
			stmt.RowDesc = nil
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
			if firstErr != nil {
				// A non-fatal Parse/Describe error (e.g. a syntax error) ends
				// the extended-query sequence here rather than continuing to
				// Bind/Execute; the connection must come back to ReadyIdle
				// itself, since no later ReadyForQuery will do it.
				c.setState(StateReadyIdle)
				return nil, firstErr
			}
			return stmt, nil
		default:
			return nil, pgerr.NewProtocolViolation("unexpected message during parse/describe", nil)
		}
	}
}

func (c *Conn) readExtendedQueryResult(rowDesc *message.RowDescription) (*ExecuteResult, error) {
	res := &ExecuteResult{RowDescription: rowDesc}
	var firstErr error

	for {
		msg, err := c.recv()
		if err != nil {
			return nil, c.fail(err)
		}
		switch m := msg.(type) {
		case *message.BindComplete:
		case *message.RowDescription:
			res.RowDescription = m
		case *message.DataRow:
			res.Rows = append(res.Rows, m.Values)
		case *message.CommandComplete:
			res.Tag = m.Tag
		case *message.EmptyQueryResponse:
		case *message.PortalSuspended:
			res.Suspended = true
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
			return res, nil
		case *message.CopyResponse:
			return nil, c.rejectUnexpectedCopy(m, "ExecutePrepared")
		default:
			return nil, c.fail(pgerr.NewProtocolViolation("unexpected message during extended query execute", nil))
		}
	}
}

// closeStatementBestEffort sends Close Statement + Sync for an evicted
// cache entry and discards the reply; a failure here is not surfaced, since
// eviction is an internal bookkeeping action, not a caller-visible one
// (§4.6 "cache eviction").
func (c *Conn) closeStatementBestEffort(name string) {
	if err := c.send(&message.Close{Target: message.TargetStatement, Name: name}); err != nil {
		return
	}
	if err := c.send(&message.Sync{}); err != nil {
		return
	}
	if err := c.t.Flush(); err != nil {
		return
	}
	for {
		msg, err := c.recv()
		if err != nil {
			return
		}
		if _, ok := msg.(*message.ReadyForQuery); ok {
			return
		}
	}
}
