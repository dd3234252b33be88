package protocol

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cedardb/pgwire/copyproto"
	"github.com/cedardb/pgwire/pgerr"
)

func copyInResponse(format byte, colFormats ...int16) []byte {
	buf, off := appendHeader(nil, 'G')
	buf = append(buf, format)
	buf = i16(buf, int16(len(colFormats)))
	for _, f := range colFormats {
		buf = i16(buf, f)
	}
	return patchLength(buf, off)
}

func copyOutResponse(format byte, colFormats ...int16) []byte {
	buf, off := appendHeader(nil, 'H')
	buf = append(buf, format)
	buf = i16(buf, int16(len(colFormats)))
	for _, f := range colFormats {
		buf = i16(buf, f)
	}
	return patchLength(buf, off)
}

func copyDataMsg(data string) []byte {
	buf, off := appendHeader(nil, 'd')
	buf = append(buf, data...)
	return patchLength(buf, off)
}

func copyDoneMsg() []byte {
	buf, off := appendHeader(nil, 'c')
	return patchLength(buf, off)
}

func parseComplete() []byte {
	buf, off := appendHeader(nil, '1')
	return patchLength(buf, off)
}

func bindComplete() []byte {
	buf, off := appendHeader(nil, '2')
	return patchLength(buf, off)
}

func noData() []byte {
	buf, off := appendHeader(nil, 'n')
	return patchLength(buf, off)
}

func closeComplete() []byte {
	buf, off := appendHeader(nil, '3')
	return patchLength(buf, off)
}

// TestExecutePreparedPromotesAfterThreshold exercises the prepare-threshold
// policy: the first prepareThreshold-1 executions issue Parse every time
// (unnamed statement); the Nth execution promotes to a named statement,
// which a later execution of identical SQL must reuse without a new Parse.
func TestExecutePreparedPromotesAfterThreshold(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := Dial(client)
	c.setState(StateReadyIdle)
	c.prepareThreshold = 2

	sql := "select $1::int4"
	done := make(chan struct{})

	go func() {
		defer close(done)
		buf := make([]byte, 8192)

		// Execution 1: below threshold, unnamed statement: Parse+Describe+Sync
		// then Bind+Execute+Sync.
		server.Read(buf)
		writeAll(t, server, parseComplete(), noData(), readyForQuery(byte(TxIdle)))
		server.Read(buf)
		writeAll(t, server, bindComplete(), commandComplete("SELECT 1"), readyForQuery(byte(TxIdle)))

		// Execution 2: at threshold, promotes: Parse+Describe+Sync for the
		// named statement, then Bind+Execute+Sync.
		server.Read(buf)
		writeAll(t, server, parseComplete(), noData(), readyForQuery(byte(TxIdle)))
		server.Read(buf)
		writeAll(t, server, bindComplete(), commandComplete("SELECT 1"), readyForQuery(byte(TxIdle)))

		// Execution 3: already promoted and cached: only Bind+Execute+Sync,
		// no Parse/Describe round trip.
		server.Read(buf)
		writeAll(t, server, bindComplete(), commandComplete("SELECT 1"), readyForQuery(byte(TxIdle)))
	}()

	for i := 0; i < 3; i++ {
		res, err := c.ExecutePrepared(sql, nil, [][]byte{[]byte("1")}, nil)
		require.NoError(t, err, "execution %d", i)
		require.Equal(t, "SELECT 1", res.Tag)
		require.Equal(t, StateReadyIdle, c.State())
	}

	<-done
}

// TestExecutePreparedRejectsCopyWithoutPoisoning covers §8 scenario 6: a
// statement run through the generic extended-query facade that turns out to
// be a COPY must fail with a non-fatal StateError, not close the connection.
func TestExecutePreparedRejectsCopyWithoutPoisoning(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := Dial(client)
	c.setState(StateReadyIdle)

	go func() {
		buf := make([]byte, 8192)
		server.Read(buf) // Parse+Describe+Sync
		writeAll(t, server, parseComplete(), noData(), readyForQuery(byte(TxIdle)))

		server.Read(buf) // Bind+Execute+Sync
		writeAll(t, server, bindComplete(), copyInResponse(0))

		server.Read(buf) // CopyFail
		writeAll(t, server,
			errorResponse("57014", "COPY canceled"),
			readyForQuery(byte(TxIdle)),
		)
	}()

	_, err := c.ExecutePrepared("copy t from stdin", nil, nil, nil)
	require.Error(t, err)

	var stateErr *pgerr.StateError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, StateReadyIdle, c.State())
}

// TestParseErrorDoesNotPoisonConnection covers the fatal/non-fatal dispatch
// in Conn.fail (§7): a plain ERROR-severity ServerError during Parse/Describe
// is recoverable at the statement level and must leave the connection at
// StateReadyIdle, usable for a subsequent statement, rather than poisoning
// it the way a transport fault or protocol violation would.
func TestParseErrorDoesNotPoisonConnection(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := Dial(client)
	c.setState(StateReadyIdle)

	go func() {
		buf := make([]byte, 8192)
		server.Read(buf) // Parse+Describe+Sync
		writeAll(t, server,
			errorResponse("42601", "syntax error"),
			readyForQuery(byte(TxIdle)),
		)
	}()

	_, err := c.ExecutePrepared("bogus sql", nil, nil, nil)
	require.Error(t, err)

	var serverErr *pgerr.ServerError
	require.ErrorAs(t, err, &serverErr)
	require.False(t, pgerr.IsFatal(err))
	require.Equal(t, StateReadyIdle, c.State())

	go func() {
		buf := make([]byte, 8192)
		server.Read(buf) // Parse+Describe+Sync
		writeAll(t, server, parseComplete(), noData(), readyForQuery(byte(TxIdle)))

		server.Read(buf) // Bind+Execute+Sync
		writeAll(t, server, bindComplete(), commandComplete("SELECT 1"), readyForQuery(byte(TxIdle)))
	}()
	res, err := c.ExecutePrepared("select 1", nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", res.Tag)
}

func TestBeginCopyInRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := Dial(client)
	c.setState(StateReadyIdle)

	serverSawDone := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		server.Read(buf) // Query message
		writeAll(t, server, copyInResponse(0))

		server.Read(buf) // one CopyData chunk ("a\tb\n")
		server.Read(buf) // CopyDone
		close(serverSawDone)

		writeAll(t, server, commandComplete("COPY 1"), readyForQuery(byte(TxIdle)))
	}()

	session, err := c.BeginCopy("COPY t FROM STDIN")
	require.NoError(t, err)
	require.Equal(t, StateCopyIn, c.State())

	rw := copyproto.NewRowWriter(session)
	require.NoError(t, rw.WriteRow([]string{"a", "b"}))
	require.NoError(t, rw.Close())

	<-serverSawDone
	require.Equal(t, copyproto.StateEndedOK, session.State())
	require.Equal(t, int64(1), session.RowCount())
	require.Equal(t, StateReadyIdle, c.State())
}

func TestBeginCopyOutRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := Dial(client)
	c.setState(StateReadyIdle)

	go func() {
		buf := make([]byte, 4096)
		server.Read(buf) // Query message

		writeAll(t, server,
			copyOutResponse(0),
			copyDataMsg("1\thello\n"),
			copyDataMsg("2\tworld\n"),
			copyDoneMsg(),
			commandComplete("COPY 2"),
			readyForQuery(byte(TxIdle)),
		)
	}()

	session, err := c.BeginCopy("COPY t TO STDOUT")
	require.NoError(t, err)
	require.Equal(t, StateCopyOut, c.State())

	sink := copyproto.NewSink(session)
	all, err := io.ReadAll(sink)
	require.NoError(t, err)
	require.Equal(t, "1\thello\n2\tworld\n", string(all))
	require.Equal(t, copyproto.StateEndedOK, session.State())
	require.Equal(t, int64(2), session.RowCount())
	require.Equal(t, StateReadyIdle, c.State())
}
