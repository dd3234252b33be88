// Package message implements the PostgreSQL frontend/backend protocol
// version 3.0 message codec (§4.2, §6): one struct and one Encode/Decode
// pair per message kind, read and written as 1-byte kind + 4-byte length +
// payload (length includes itself, excludes the kind byte). The startup
// message, and the two pre-startup requests that share its shape, have no
// kind byte at all.
package message

import (
	"encoding/binary"

	"github.com/cedardb/pgwire/pgerr"
	"github.com/cedardb/pgwire/transport"
)

// Kind is the single leading byte that identifies a regular (non-startup)
// message.
type Kind byte

// Frontend (client-to-server) message kinds.
const (
	KindBind        Kind = 'B'
	KindClose       Kind = 'C'
	KindCopyFail    Kind = 'f'
	KindDescribe    Kind = 'D'
	KindExecute     Kind = 'E'
	KindFlush       Kind = 'H'
	KindParse       Kind = 'P'
	KindPassword    Kind = 'p'
	KindQuery       Kind = 'Q'
	KindSync        Kind = 'S'
	KindTerminate   Kind = 'X'
	KindCopyDataFE  Kind = 'd'
	KindCopyDoneFE  Kind = 'c'
)

// Backend (server-to-client) message kinds. A handful of letters are shared
// with frontend kinds above ('d' CopyData, 'c' CopyDone); direction is
// always known from context (who is reading), never from the byte alone.
const (
	KindAuthentication      Kind = 'R'
	KindBackendKeyData      Kind = 'K'
	KindBindComplete        Kind = '2'
	KindCloseComplete       Kind = '3'
	KindCommandComplete     Kind = 'C'
	KindCopyData            Kind = 'd'
	KindCopyDone            Kind = 'c'
	KindCopyInResponse      Kind = 'G'
	KindCopyOutResponse     Kind = 'H'
	KindDataRow             Kind = 'D'
	KindEmptyQueryResponse  Kind = 'I'
	KindErrorResponse       Kind = 'E'
	KindNoData              Kind = 'n'
	KindNoticeResponse      Kind = 'N'
	KindParameterDescription Kind = 't'
	KindParameterStatus     Kind = 'S'
	KindParseComplete       Kind = '1'
	KindPortalSuspended     Kind = 's'
	KindReadyForQuery       Kind = 'Z'
	KindRowDescription      Kind = 'T'
)

// DefaultMaxMessageSize is the configurable ceiling on a single message's
// length field (§4.2, §6 "max-message-size"). 2^30 matches spec.md's
// default.
const DefaultMaxMessageSize = 1 << 30

// FrontendMessage is any message the client may send.
type FrontendMessage interface {
	frontend()
	Encode(buf []byte) ([]byte, error)
}

// BackendMessage is any message the client may receive.
type BackendMessage interface {
	backend()
}

// appendHeader appends the kind byte and a placeholder int32 length field
// and returns the buffer plus the offset of that field, so the caller can
// patch it in (patchLength) once the payload is known.
func appendHeader(buf []byte, kind Kind) (out []byte, lenOffset int) {
	out = append(buf, byte(kind))
	lenOffset = len(out)
	out = append(out, 0, 0, 0, 0)
	return out, lenOffset
}

func patchLength(buf []byte, lenOffset int) []byte {
	binary.BigEndian.PutUint32(buf[lenOffset:lenOffset+4], uint32(len(buf)-lenOffset))
	return buf
}

// appendInt32/appendUint32/appendInt16/appendCString/appendBytes32 are the primitive wire
// encoders every message's Encode method composes.

func appendInt32(buf []byte, v int32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendUint32(buf []byte, v uint32) []byte {
	return appendInt32(buf, int32(v))
}

func appendInt16(buf []byte, v int16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

// appendBytes32 appends a length-prefixed byte slice using the NULL (-1)
// convention for a nil slice, as every DataRow/Bind parameter field does.
func appendBytes32(buf []byte, b []byte) []byte {
	if b == nil {
		return appendInt32(buf, -1)
	}
	buf = appendInt32(buf, int32(len(b)))
	return append(buf, b...)
}

// reader is a minimal cursor over a decoded message payload, shared by every
// backend message's decode function.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, errShort
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) int16() (int16, error) {
	if r.remaining() < 2 {
		return 0, errShort
	}
	v := int16(binary.BigEndian.Uint16(r.buf[r.pos:]))
	r.pos += 2
	return v, nil
}

func (r *reader) uint16() (uint16, error) {
	v, err := r.int16()
	return uint16(v), err
}

func (r *reader) int32() (int32, error) {
	if r.remaining() < 4 {
		return 0, errShort
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	v, err := r.int32()
	return uint32(v), err
}

func (r *reader) bytesN(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errShort
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// bytes32 reads a length-prefixed field using the -1-means-NULL convention.
func (r *reader) bytes32() ([]byte, error) {
	n, err := r.int32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	return r.bytesN(int(n))
}

func (r *reader) cstring() (string, error) {
	start := r.pos
	for r.pos < len(r.buf) {
		if r.buf[r.pos] == 0 {
			s := string(r.buf[start:r.pos])
			r.pos++
			return s, nil
		}
		r.pos++
	}
	return "", errShort
}

func (r *reader) rest() []byte {
	b := r.buf[r.pos:]
	r.pos = len(r.buf)
	return b
}

func (r *reader) done() error {
	if r.remaining() != 0 {
		return errTrailing
	}
	return nil
}

var errShort = pgerr.NewProtocolViolation("message payload too short for its declared kind", nil)
var errTrailing = pgerr.NewProtocolViolation("message payload has trailing bytes", nil)

// ReadBackend reads one backend message from t, enforcing maxSize on the
// declared length before the payload is read. Parsing is total: a parser
// never returns a partially populated message on success.
func ReadBackend(t *transport.Conn, maxSize uint32) (BackendMessage, error) {
	kindByte, err := t.ReadByte()
	if err != nil {
		return nil, err
	}
	length, err := t.ReadUint32()
	if err != nil {
		return nil, err
	}
	if length < 4 {
		return nil, pgerr.NewProtocolViolation("message length must be at least 4", nil)
	}
	if length > maxSize {
		return nil, pgerr.NewProtocolViolation("message length exceeds configured maximum", nil)
	}
	payload := make([]byte, length-4)
	if err := t.ReadFull(payload); err != nil {
		return nil, err
	}
	return decodeBackend(Kind(kindByte), payload)
}

func decodeBackend(kind Kind, payload []byte) (BackendMessage, error) {
	r := newReader(payload)
	switch kind {
	case KindAuthentication:
		return decodeAuthentication(r)
	case KindBackendKeyData:
		return decodeBackendKeyData(r)
	case KindBindComplete:
		return &BindComplete{}, r.done()
	case KindCloseComplete:
		return &CloseComplete{}, r.done()
	case KindCommandComplete:
		return decodeCommandComplete(r)
	case KindCopyData:
		return &CopyData{Data: r.rest()}, nil
	case KindCopyDone:
		return &CopyDone{}, r.done()
	case KindCopyInResponse:
		return decodeCopyResponse(r, true)
	case KindCopyOutResponse:
		return decodeCopyResponse(r, false)
	case KindDataRow:
		return decodeDataRow(r)
	case KindEmptyQueryResponse:
		return &EmptyQueryResponse{}, r.done()
	case KindErrorResponse:
		return decodeErrorOrNotice(r, true)
	case KindNoData:
		return &NoData{}, r.done()
	case KindNoticeResponse:
		return decodeErrorOrNotice(r, false)
	case KindParameterDescription:
		return decodeParameterDescription(r)
	case KindParameterStatus:
		return decodeParameterStatus(r)
	case KindParseComplete:
		return &ParseComplete{}, r.done()
	case KindPortalSuspended:
		return &PortalSuspended{}, r.done()
	case KindReadyForQuery:
		return decodeReadyForQuery(r)
	case KindRowDescription:
		return decodeRowDescription(r)
	default:
		return nil, pgerr.NewProtocolViolation("unknown backend message kind", nil)
	}
}

// WriteFrontend encodes msg and buffers it on t; it does not flush. Callers
// batch several frontend messages (e.g. Parse, Bind, Describe, Execute,
// Sync) before a single Flush, exactly as the extended-query pipeline does.
func WriteFrontend(t *transport.Conn, msg FrontendMessage) error {
	buf, err := msg.Encode(nil)
	if err != nil {
		return err
	}
	return t.Write(buf)
}
