package message

import (
	"github.com/cedardb/pgwire/pgerr"
	"github.com/cedardb/pgwire/transport"
)

// ProtocolVersion3 is the only protocol version this core speaks.
const ProtocolVersion3 int32 = 0x00030000

const (
	sslRequestCode    int32 = 80877103
	gssEncRequestCode int32 = 80877104
)

// StartupMessage is the very first message sent on a new connection: a
// length-prefixed, kind-byte-less int32 protocol version followed by
// NUL-terminated key/value pairs (user, database, ...), terminated by an
// empty key.
type StartupMessage struct {
	Parameters map[string]string
}

func (m *StartupMessage) Encode(buf []byte) ([]byte, error) {
	lenOffset := len(buf)
	buf = append(buf, 0, 0, 0, 0)
	buf = appendInt32(buf, ProtocolVersion3)
	for k, v := range m.Parameters {
		buf = appendCString(buf, k)
		buf = appendCString(buf, v)
	}
	buf = append(buf, 0)
	return patchLength(buf, lenOffset), nil
}

// ReadStartup reads a raw startup-phase packet (length + body, no kind
// byte) and dispatches it to SSLRequest, GSSEncRequest, or a decoded
// StartupMessage based on the leading int32.
func ReadStartup(t *transport.Conn, maxSize uint32) (any, error) {
	length, err := t.ReadUint32()
	if err != nil {
		return nil, err
	}
	if length < 4 {
		return nil, pgerr.NewProtocolViolation("startup packet length must be at least 4", nil)
	}
	if length > maxSize {
		return nil, pgerr.NewProtocolViolation("startup packet length exceeds configured maximum", nil)
	}
	payload := make([]byte, length-4)
	if err := t.ReadFull(payload); err != nil {
		return nil, err
	}
	r := newReader(payload)
	code, err := r.int32()
	if err != nil {
		return nil, err
	}
	switch code {
	case sslRequestCode:
		return &SSLRequest{}, r.done()
	case gssEncRequestCode:
		return &GSSEncRequest{}, r.done()
	default:
		if code>>16 != 3 {
			return nil, pgerr.NewProtocolViolation("unsupported startup protocol version", nil)
		}
		params := map[string]string{}
		for {
			k, err := r.cstring()
			if err != nil {
				return nil, err
			}
			if k == "" {
				break
			}
			v, err := r.cstring()
			if err != nil {
				return nil, err
			}
			params[k] = v
		}
		return &StartupMessage{Parameters: params}, r.done()
	}
}

// SSLRequest and GSSEncRequest are the two fixed 8-byte requests a client
// may send before the real StartupMessage, each answered with a single 'S'
// or 'N' byte (not a framed message) before the startup sequence resumes.
type SSLRequest struct{}
type GSSEncRequest struct{}

func (m *SSLRequest) Encode(buf []byte) ([]byte, error) {
	buf = append(buf, 0, 0, 0, 8)
	return appendInt32(buf, sslRequestCode), nil
}

func (m *GSSEncRequest) Encode(buf []byte) ([]byte, error) {
	buf = append(buf, 0, 0, 0, 8)
	return appendInt32(buf, gssEncRequestCode), nil
}
