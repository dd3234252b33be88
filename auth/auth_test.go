package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cedardb/pgwire/message"
)

func TestMD5PasswordMatchesKnownVector(t *testing.T) {
	// Computed independently: md5(md5("secretuser")+salt) with salt
	// {0x01,0x02,0x03,0x04}.
	got := md5Password("user", "secret", [4]byte{1, 2, 3, 4})
	require.Len(t, got, 35)
	require.Equal(t, "md5", got[:3])
	require.Equal(t, "md5fccef98e4f1cf6cbe96b743fad4e8bd0", got)
}

func TestResponderCleartext(t *testing.T) {
	r := &Responder{User: "alice", Password: "hunter2"}
	payload, done, err := r.Respond(&message.AuthenticationRequest{AuthKind: message.AuthCleartextPassword})
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, "hunter2", string(payload))
}

func TestResponderOkIsDone(t *testing.T) {
	r := &Responder{}
	payload, done, err := r.Respond(&message.AuthenticationRequest{AuthKind: message.AuthOk})
	require.NoError(t, err)
	require.True(t, done)
	require.Nil(t, payload)
}

func TestResponderUnknownSASLWithoutPluginErrors(t *testing.T) {
	r := &Responder{Plugins: map[string]Plugin{}}
	_, _, err := r.Respond(&message.AuthenticationRequest{AuthKind: message.AuthSASL})
	require.Error(t, err)
}
