// Package pgtype implements the type registry and value codecs (§4.3): an
// OID-keyed table of Codecs, each offering up to four capabilities (encode
// and decode, text and binary), with a documented fallback when a
// particular pairing is missing.
package pgtype

import (
	"sync"

	"github.com/cedardb/pgwire/pgerr"
	"github.com/cedardb/pgwire/pgoid"
)

// Format mirrors the wire's text/binary format code, independent of the
// message package so pgtype has no import-cycle dependency on it.
type Format int16

const (
	FormatText   Format = 0
	FormatBinary Format = 1
)

// EncodeTextFunc renders a Go value as the type's text representation.
type EncodeTextFunc func(v any) (string, error)

// DecodeTextFunc parses a type's text representation into a Go value.
type DecodeTextFunc func(src string) (any, error)

// EncodeBinaryFunc renders a Go value as the type's binary wire
// representation.
type EncodeBinaryFunc func(v any) ([]byte, error)

// DecodeBinaryFunc parses a type's binary wire representation into a Go
// value.
type DecodeBinaryFunc func(src []byte) (any, error)

// Codec is everything the registry knows about one OID. Any of the four
// function fields may be nil; Registry.Decode/Encode fall back when a
// requested capability is absent (see those methods).
type Codec struct {
	OID  pgoid.OID
	Name string

	EncodeText   EncodeTextFunc
	DecodeText   DecodeTextFunc
	EncodeBinary EncodeBinaryFunc
	DecodeBinary DecodeBinaryFunc
}

// Registry is the OID-keyed codec table a Connection consults whenever it
// must turn wire bytes into a Go value or vice versa. The zero Registry is
// usable but empty; use NewRegistry for one pre-populated with the scalar
// and array codecs this package ships.
type Registry struct {
	mu     sync.RWMutex
	codecs map[pgoid.OID]*Codec
}

// NewRegistry returns a Registry pre-populated with codecs for the scalar
// types spec.md §4.3 names plus a generic array codec registered against
// every known array OID.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[pgoid.OID]*Codec)}
	for _, c := range defaultScalarCodecs() {
		r.Register(c)
	}
	for _, c := range defaultTemporalCodecs() {
		r.Register(c)
	}
	registerDefaultArrayCodecs(r)
	return r
}

// Register installs c, replacing any existing codec for the same OID. A
// caller can use this to override a default codec (e.g. supply a
// domain-specific numeric representation) or to add support for an OID
// this package does not ship a codec for.
func (r *Registry) Register(c *Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codecs == nil {
		r.codecs = make(map[pgoid.OID]*Codec)
	}
	r.codecs[c.OID] = c
}

// Lookup returns the codec registered for oid, if any.
func (r *Registry) Lookup(oid pgoid.OID) (*Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[oid]
	return c, ok
}

// Decode turns raw wire bytes for oid/format into a Go value.
//
// Fallback policy: if no codec is registered for oid at all, or the codec
// lacks the decoder for the requested format, the raw bytes are returned
// unmodified (as a string for text format, as []byte for binary format) so
// that callers can still observe and forward the value even though this
// registry cannot interpret it.
func (r *Registry) Decode(oid pgoid.OID, format Format, raw []byte) (any, error) {
	if raw == nil {
		return nil, nil
	}
	c, ok := r.Lookup(oid)
	if !ok {
		return fallbackDecode(format, raw), nil
	}
	switch format {
	case FormatBinary:
		if c.DecodeBinary != nil {
			v, err := c.DecodeBinary(raw)
			if err != nil {
				return nil, pgerr.NewValueCodecError(oid, "binary", err)
			}
			return v, nil
		}
	default:
		if c.DecodeText != nil {
			v, err := c.DecodeText(string(raw))
			if err != nil {
				return nil, pgerr.NewValueCodecError(oid, "text", err)
			}
			return v, nil
		}
	}
	return fallbackDecode(format, raw), nil
}

func fallbackDecode(format Format, raw []byte) any {
	if format == FormatBinary {
		cp := make([]byte, len(raw))
		copy(cp, raw)
		return cp
	}
	return string(raw)
}

// Encode turns a Go value into raw wire bytes for oid/format. A nil v
// encodes to a nil slice, which callers write as the wire's NULL (-1
// length) marker.
//
// Fallback policy: if the codec lacks the requested encoder, Encode falls
// back to the *other* format's encoder rather than failing outright (text
// preferred as the universal format); only when neither encoder exists is
// pgerr.ValueCodecError returned.
func (r *Registry) Encode(oid pgoid.OID, format Format, v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	c, ok := r.Lookup(oid)
	if !ok {
		return nil, pgerr.NewValueCodecError(oid, formatName(format), pgerrUnregistered)
	}
	if format == FormatBinary && c.EncodeBinary != nil {
		b, err := c.EncodeBinary(v)
		if err != nil {
			return nil, pgerr.NewValueCodecError(oid, "binary", err)
		}
		return b, nil
	}
	if c.EncodeText != nil {
		s, err := c.EncodeText(v)
		if err != nil {
			return nil, pgerr.NewValueCodecError(oid, "text", err)
		}
		return []byte(s), nil
	}
	if c.EncodeBinary != nil {
		b, err := c.EncodeBinary(v)
		if err != nil {
			return nil, pgerr.NewValueCodecError(oid, "binary", err)
		}
		return b, nil
	}
	return nil, pgerr.NewValueCodecError(oid, formatName(format), pgerrNoEncoder)
}

func formatName(f Format) string {
	if f == FormatBinary {
		return "binary"
	}
	return "text"
}

var pgerrUnregistered = errNoCodec("no codec registered for this oid")
var pgerrNoEncoder = errNoCodec("codec has no encoder in either format")

type errNoCodec string

func (e errNoCodec) Error() string { return string(e) }
