package pgtype

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cedardb/pgwire/pgoid"
)

// registerDefaultArrayCodecs installs a generic one-dimensional array codec
// for every array OID pgoid.IsArray recognizes. Each array codec defers to
// the registry's own codec for its element type, so registering a custom
// scalar codec automatically improves the matching array's fidelity too.
func registerDefaultArrayCodecs(r *Registry) {
	for _, arrayOID := range []pgoid.OID{
		pgoid.BoolArray, pgoid.Int2Array, pgoid.Int4Array, pgoid.Int8Array,
		pgoid.TextArray, pgoid.ByteaArray, pgoid.Float4Array, pgoid.Float8Array,
		pgoid.NumericArray, pgoid.TimestampArray, pgoid.TimestamptzArray, pgoid.DateArray,
	} {
		elemOID, ok := pgoid.IsArray(arrayOID)
		if !ok {
			continue
		}
		r.Register(arrayCodec(r, arrayOID, elemOID))
	}
}

// arrayValue is what array Decode returns and Encode expects: a flat,
// one-dimensional slice of per-element Go values (nil entries are SQL
// NULLs), matching the generic element-codec results of this registry.
type arrayValue = []any

func arrayCodec(r *Registry, arrayOID, elemOID pgoid.OID) *Codec {
	return &Codec{
		OID:  arrayOID,
		Name: "array",
		EncodeText: func(v any) (string, error) {
			return encodeArrayText(r, elemOID, v)
		},
		DecodeText: func(src string) (any, error) {
			return decodeArrayText(r, elemOID, src)
		},
		EncodeBinary: func(v any) ([]byte, error) {
			return encodeArrayBinary(r, elemOID, v)
		},
		DecodeBinary: func(src []byte) (any, error) {
			return decodeArrayBinary(r, elemOID, src)
		},
	}
}

func encodeArrayBinary(r *Registry, elemOID pgoid.OID, v any) ([]byte, error) {
	vals, ok := v.(arrayValue)
	if !ok {
		return nil, fmt.Errorf("expected []any, got %T", v)
	}

	hasNull := int32(0)
	for _, e := range vals {
		if e == nil {
			hasNull = 1
			break
		}
	}

	buf := make([]byte, 0, 20+len(vals)*8)
	buf = appendI32(buf, 1) // ndim: this codec only supports one-dimensional arrays
	buf = appendI32(buf, hasNull)
	buf = appendU32(buf, elemOID)
	buf = appendI32(buf, int32(len(vals)))
	buf = appendI32(buf, 1) // lower bound

	for _, e := range vals {
		enc, err := r.Encode(elemOID, FormatBinary, e)
		if err != nil {
			return nil, err
		}
		if enc == nil {
			buf = appendI32(buf, -1)
			continue
		}
		buf = appendI32(buf, int32(len(enc)))
		buf = append(buf, enc...)
	}
	return buf, nil
}

func decodeArrayBinary(r *Registry, elemOID pgoid.OID, src []byte) (any, error) {
	if len(src) < 12 {
		return nil, fmt.Errorf("array binary payload too short")
	}
	ndim := int32(be32(src[0:]))
	_ = be32(src[4:]) // hasnull flag: informational only, NULLs are also marked per-element by a -1 length
	gotElemOID := be32(src[8:])
	if gotElemOID != elemOID {
		return nil, fmt.Errorf("array element oid %d does not match expected %d", gotElemOID, elemOID)
	}
	pos := 12
	if ndim == 0 {
		return arrayValue{}, nil
	}
	if ndim != 1 {
		return nil, fmt.Errorf("only one-dimensional arrays are supported, got %d dimensions", ndim)
	}
	if len(src) < pos+8 {
		return nil, fmt.Errorf("array binary payload truncated in dimension header")
	}
	n := int32(be32(src[pos:]))
	pos += 8 // dim size + lower bound

	out := make(arrayValue, 0, n)
	for i := int32(0); i < n; i++ {
		if len(src) < pos+4 {
			return nil, fmt.Errorf("array binary payload truncated at element %d", i)
		}
		elLen := int32(be32(src[pos:]))
		pos += 4
		if elLen < 0 {
			out = append(out, nil)
			continue
		}
		if len(src) < pos+int(elLen) {
			return nil, fmt.Errorf("array binary payload truncated in element %d", i)
		}
		v, err := r.Decode(elemOID, FormatBinary, src[pos:pos+int(elLen)])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		pos += int(elLen)
	}
	return out, nil
}

// encodeArrayText/decodeArrayText implement the brace/comma textual array
// format for the unquoted case (no embedded commas, braces, backslashes, or
// quotes in any element's text representation); values needing quoting are
// outside this codec's scope.
func encodeArrayText(r *Registry, elemOID pgoid.OID, v any) (string, error) {
	vals, ok := v.(arrayValue)
	if !ok {
		return "", fmt.Errorf("expected []any, got %T", v)
	}
	parts := make([]string, len(vals))
	for i, e := range vals {
		if e == nil {
			parts[i] = "NULL"
			continue
		}
		enc, err := r.Encode(elemOID, FormatText, e)
		if err != nil {
			return "", err
		}
		parts[i] = string(enc)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

func decodeArrayText(r *Registry, elemOID pgoid.OID, src string) (any, error) {
	s := strings.TrimSpace(src)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, fmt.Errorf("array text must be wrapped in braces")
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return arrayValue{}, nil
	}
	fields := strings.Split(inner, ",")
	out := make(arrayValue, len(fields))
	for i, f := range fields {
		if f == "NULL" {
			out[i] = nil
			continue
		}
		v, err := r.Decode(elemOID, FormatText, []byte(f))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func appendI32(buf []byte, v int32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func be32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}
