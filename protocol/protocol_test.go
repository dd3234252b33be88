package protocol

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cedardb/pgwire/pgerr"
)

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := newLRUCache(2)
	c.Put("a", &PreparedStatement{Name: "a"})
	c.Put("b", &PreparedStatement{Name: "b"})
	evicted := c.Put("c", &PreparedStatement{Name: "c"})
	require.NotNil(t, evicted)
	require.Equal(t, "a", evicted.Name)

	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.True(t, ok)
}

func TestLRUCacheGetRefreshesRecency(t *testing.T) {
	c := newLRUCache(2)
	c.Put("a", &PreparedStatement{Name: "a"})
	c.Put("b", &PreparedStatement{Name: "b"})
	c.Get("a") // a is now most recently used
	evicted := c.Put("c", &PreparedStatement{Name: "c"})
	require.NotNil(t, evicted)
	require.Equal(t, "b", evicted.Name)
}

// The helpers below build raw backend-message bytes by hand, since the
// message package intentionally never implements encoders for backend
// message types (a real client only ever decodes them); these tests play
// the server side of the wire to exercise Conn's read loops.

func appendHeader(buf []byte, kind byte) (out []byte, lenOffset int) {
	out = append(buf, kind)
	lenOffset = len(out)
	out = append(out, 0, 0, 0, 0)
	return out, lenOffset
}

func patchLength(buf []byte, lenOffset int) []byte {
	binary.BigEndian.PutUint32(buf[lenOffset:lenOffset+4], uint32(len(buf)-lenOffset))
	return buf
}

func cstr(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

func i16(buf []byte, v int16) []byte { return append(buf, byte(v>>8), byte(v)) }
func i32(buf []byte, v int32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func authOK() []byte {
	buf, off := appendHeader(nil, 'R')
	buf = i32(buf, 0)
	return patchLength(buf, off)
}

func backendKeyData(pid, secret int32) []byte {
	buf, off := appendHeader(nil, 'K')
	buf = i32(buf, pid)
	buf = i32(buf, secret)
	return patchLength(buf, off)
}

func parameterStatus(name, value string) []byte {
	buf, off := appendHeader(nil, 'S')
	buf = cstr(buf, name)
	buf = cstr(buf, value)
	return patchLength(buf, off)
}

func readyForQuery(status byte) []byte {
	buf, off := appendHeader(nil, 'Z')
	buf = append(buf, status)
	return patchLength(buf, off)
}

func rowDescriptionOneCol(name string, oid uint32) []byte {
	buf, off := appendHeader(nil, 'T')
	buf = i16(buf, 1)
	buf = cstr(buf, name)
	buf = i32(buf, 0)
	buf = i16(buf, 0)
	buf = append(buf, byte(oid>>24), byte(oid>>16), byte(oid>>8), byte(oid))
	buf = i16(buf, 4)
	buf = i32(buf, -1)
	buf = i16(buf, 0)
	return patchLength(buf, off)
}

func dataRowOneCol(val string) []byte {
	buf, off := appendHeader(nil, 'D')
	buf = i16(buf, 1)
	buf = i32(buf, int32(len(val)))
	buf = append(buf, val...)
	return patchLength(buf, off)
}

func commandComplete(tag string) []byte {
	buf, off := appendHeader(nil, 'C')
	buf = cstr(buf, tag)
	return patchLength(buf, off)
}

func errorResponse(sqlstate, msg string) []byte {
	buf, off := appendHeader(nil, 'E')
	buf = append(buf, 'S')
	buf = cstr(buf, "ERROR")
	buf = append(buf, 'C')
	buf = cstr(buf, sqlstate)
	buf = append(buf, 'M')
	buf = cstr(buf, msg)
	buf = append(buf, 0)
	return patchLength(buf, off)
}

func writeAll(t *testing.T, conn net.Conn, chunks ...[]byte) {
	t.Helper()
	for _, c := range chunks {
		_, err := conn.Write(c)
		require.NoError(t, err)
	}
}

func TestStartupTrivialAuth(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		buf := make([]byte, 4096)
		server.Read(buf) // drain the startup message

		writeAll(t, server,
			authOK(),
			parameterStatus("server_version", "16.0"),
			parameterStatus("client_encoding", "UTF8"),
			backendKeyData(42, 99),
			readyForQuery(byte(TxIdle)),
		)
	}()

	c := Dial(client)
	err := c.Startup(map[string]string{"database": "postgres"}, AuthCredentials{User: "tester"})
	require.NoError(t, err)
	require.Equal(t, StateReadyIdle, c.State())

	pid, secret := c.BackendKey()
	require.Equal(t, int32(42), pid)
	require.Equal(t, int32(99), secret)

	v, ok := c.ParameterStatus("server_version")
	require.True(t, ok)
	require.Equal(t, "16.0", v)
}

func TestStartupAcceptsUTF8Alias(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		buf := make([]byte, 4096)
		server.Read(buf) // drain the startup message

		writeAll(t, server,
			authOK(),
			parameterStatus("client_encoding", "unicode-1-1-utf-8"),
			backendKeyData(1, 1),
			readyForQuery(byte(TxIdle)),
		)
	}()

	c := Dial(client)
	err := c.Startup(map[string]string{"database": "postgres"}, AuthCredentials{User: "tester"})
	require.NoError(t, err)
	require.Equal(t, StateReadyIdle, c.State())
}

func TestStartupRejectsNonUTF8Encoding(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		buf := make([]byte, 4096)
		server.Read(buf) // drain the startup message

		writeAll(t, server,
			authOK(),
			parameterStatus("client_encoding", "LATIN1"),
			backendKeyData(1, 1),
			readyForQuery(byte(TxIdle)),
		)
	}()

	c := Dial(client)
	err := c.Startup(map[string]string{"database": "postgres"}, AuthCredentials{User: "tester"})
	require.Error(t, err)

	var encErr *pgerr.UnsupportedEncoding
	require.ErrorAs(t, err, &encErr)
	require.Equal(t, "LATIN1", encErr.Encoding)
}

func TestSimpleQuerySingleStatement(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := Dial(client)
	c.setState(StateReadyIdle)

	go func() {
		buf := make([]byte, 4096)
		server.Read(buf) // Query message

		writeAll(t, server,
			rowDescriptionOneCol("n", 23),
			dataRowOneCol("1"),
			dataRowOneCol("2"),
			commandComplete("SELECT 2"),
			readyForQuery(byte(TxIdle)),
		)
	}()

	res, err := c.SimpleQuery("select * from t")
	require.NoError(t, err)
	require.Len(t, res.Statements, 1)
	require.Equal(t, "SELECT 2", res.Statements[0].Tag)
	require.Len(t, res.Statements[0].Rows, 2)
	require.Equal(t, StateReadyIdle, c.State())
}

func TestSimpleQueryRejectsCopyInWithoutPoisoning(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := Dial(client)
	c.setState(StateReadyIdle)

	go func() {
		buf := make([]byte, 4096)
		server.Read(buf) // Query message
		writeAll(t, server, copyInResponse(0))

		server.Read(buf) // CopyFail
		writeAll(t, server,
			errorResponse("57014", "COPY canceled"),
			readyForQuery(byte(TxIdle)),
		)
	}()

	_, err := c.SimpleQuery("copy t from stdin")
	require.Error(t, err)

	var stateErr *pgerr.StateError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, StateReadyIdle, c.State())

	// the connection must remain usable afterward
	go func() {
		buf := make([]byte, 4096)
		server.Read(buf)
		writeAll(t, server, commandComplete("SELECT 1"), readyForQuery(byte(TxIdle)))
	}()
	res, err := c.SimpleQuery("select 1")
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", res.Statements[0].Tag)
}

func TestSimpleQueryRejectsCopyOutWithoutPoisoning(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := Dial(client)
	c.setState(StateReadyIdle)

	go func() {
		buf := make([]byte, 4096)
		server.Read(buf) // Query message
		writeAll(t, server,
			copyOutResponse(0),
			copyDataMsg("1\n"),
			copyDataMsg("2\n"),
			copyDoneMsg(),
			commandComplete("COPY 2"),
			readyForQuery(byte(TxIdle)),
		)
	}()

	_, err := c.SimpleQuery("copy t to stdout")
	require.Error(t, err)

	var stateErr *pgerr.StateError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, StateReadyIdle, c.State())
}

func TestSimpleQueryServerErrorIsSticky(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := Dial(client)
	c.setState(StateReadyIdle)

	go func() {
		buf := make([]byte, 4096)
		server.Read(buf)

		writeAll(t, server,
			errorResponse("22012", "division by zero"),
			readyForQuery(byte(TxIdle)),
		)
	}()

	_, err := c.SimpleQuery("select 1/0")
	require.Error(t, err)
	require.Equal(t, StateReadyIdle, c.State())
}
