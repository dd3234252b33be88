package cancel

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendOnWritesFixedPacket(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	err := SendOn(client, Request{BackendPID: 42, BackendSecret: 99})
	require.NoError(t, err)

	got := <-done
	require.Len(t, got, 16)
	require.Equal(t, uint32(16), binary.BigEndian.Uint32(got[0:4]))
	require.Equal(t, uint32(requestCode), binary.BigEndian.Uint32(got[4:8]))
	require.Equal(t, int32(42), int32(binary.BigEndian.Uint32(got[8:12])))
	require.Equal(t, int32(99), int32(binary.BigEndian.Uint32(got[12:16])))
}
