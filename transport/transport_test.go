package transport

import (
	"net"
	"os"
	"testing"
	"time"

	toxiclient "github.com/Shopify/toxiproxy/v2/client"
	"github.com/stretchr/testify/require"

	"github.com/cedardb/pgwire/pgerr"
)

// TestReadFullExact verifies that a partial read never loses bytes: every
// byte written by the peer before it closes is delivered to the caller
// before the eventual fault is reported.
func TestReadFullExact(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	go func() {
		server.Write([]byte{1, 2, 3, 4})
		server.Close()
	}()

	c := New(client)
	buf := make([]byte, 4)
	require.NoError(t, c.ReadFull(buf))
	require.Equal(t, []byte{1, 2, 3, 4}, buf)
}

// TestByteCountersObserveReadsAndWrites verifies SetByteCounters' hooks
// fire with the exact byte counts ReadFull/Write move.
func TestByteCountersObserveReadsAndWrites(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		server.Write([]byte{1, 2, 3, 4})
	}()

	c := New(client)
	var read, written int
	c.SetByteCounters(func(n int) { read += n }, func(n int) { written += n })

	buf := make([]byte, 4)
	require.NoError(t, c.ReadFull(buf))
	require.Equal(t, 4, read)

	require.NoError(t, c.Write([]byte{9, 9, 9}))
	require.Equal(t, 3, written)
}

// TestPoisonAfterFault verifies that once an I/O fault occurs, the
// connection is permanently poisoned and every subsequent call fails fast
// with the same TransportError without touching the network again.
func TestPoisonAfterFault(t *testing.T) {
	server, client := net.Pipe()
	server.Close()

	c := New(client)
	buf := make([]byte, 4)
	err := c.ReadFull(buf)
	require.Error(t, err)

	var te *pgerr.TransportError
	require.ErrorAs(t, err, &te)

	_, poisoned := c.Poisoned()
	require.True(t, poisoned)

	// A second, unrelated call must fail immediately with the same fault,
	// not attempt the network operation again.
	err2 := c.Write([]byte{9})
	require.ErrorIs(t, err2, err)
}

// TestToxiproxyFaultInjection proves TransportError classification against
// a real TCP connection severed mid-stream by a toxiproxy "reset_peer"
// toxic. It requires a running toxiproxy instance (TOXIPROXY_ADDR) fronting
// a real echo listener (TOXIPROXY_UPSTREAM); it is skipped otherwise, the
// same way the rest of the pack gates environment-dependent integration
// tests.
func TestToxiproxyFaultInjection(t *testing.T) {
	addr := os.Getenv("TOXIPROXY_ADDR")
	upstream := os.Getenv("TOXIPROXY_UPSTREAM")
	if addr == "" || upstream == "" {
		t.Skip("set TOXIPROXY_ADDR and TOXIPROXY_UPSTREAM to run toxiproxy-backed transport tests")
	}

	tc := toxiclient.NewClient(addr)
	proxy, err := tc.CreateProxy("pgwire-transport-test", "localhost:0", upstream)
	require.NoError(t, err)
	defer proxy.Delete()

	_, err = proxy.AddToxic("reset", "reset_peer", "downstream", 1.0, toxiclient.Attributes{
		"timeout": 0,
	})
	require.NoError(t, err)

	nc, err := net.DialTimeout("tcp", proxy.Listen, 2*time.Second)
	require.NoError(t, err)
	defer nc.Close()

	c := New(nc)
	buf := make([]byte, 4)
	err = c.ReadFull(buf)
	require.Error(t, err)

	var te *pgerr.TransportError
	require.ErrorAs(t, err, &te)
}
