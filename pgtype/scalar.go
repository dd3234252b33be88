package pgtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cedardb/pgwire/pgoid"
)

func defaultScalarCodecs() []*Codec {
	return []*Codec{
		boolCodec(),
		int2Codec(),
		int4Codec(),
		int8Codec(),
		float4Codec(),
		float8Codec(),
		textCodec(pgoid.Text, "text"),
		textCodec(pgoid.Varchar, "varchar"),
		byteaCodec(),
		numericCodec(),
	}
}

func boolCodec() *Codec {
	return &Codec{
		OID:  pgoid.Bool,
		Name: "bool",
		EncodeText: func(v any) (string, error) {
			b, ok := v.(bool)
			if !ok {
				return "", fmt.Errorf("expected bool, got %T", v)
			}
			if b {
				return "t", nil
			}
			return "f", nil
		},
		DecodeText: func(src string) (any, error) {
			switch src {
			case "t", "true", "TRUE", "1":
				return true, nil
			case "f", "false", "FALSE", "0":
				return false, nil
			default:
				return nil, fmt.Errorf("invalid bool text %q", src)
			}
		},
		EncodeBinary: func(v any) ([]byte, error) {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("expected bool, got %T", v)
			}
			if b {
				return []byte{1}, nil
			}
			return []byte{0}, nil
		},
		DecodeBinary: func(src []byte) (any, error) {
			if len(src) != 1 {
				return nil, fmt.Errorf("bool binary must be 1 byte, got %d", len(src))
			}
			return src[0] != 0, nil
		},
	}
}

func int2Codec() *Codec {
	return &Codec{
		OID:  pgoid.Int2,
		Name: "int2",
		EncodeText: func(v any) (string, error) {
			n, err := asInt64(v)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(n, 10), nil
		},
		DecodeText: func(src string) (any, error) {
			n, err := strconv.ParseInt(src, 10, 16)
			if err != nil {
				return nil, err
			}
			return int16(n), nil
		},
		EncodeBinary: func(v any) ([]byte, error) {
			n, err := asInt64(v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 2)
			binary.BigEndian.PutUint16(buf, uint16(int16(n)))
			return buf, nil
		},
		DecodeBinary: func(src []byte) (any, error) {
			if len(src) != 2 {
				return nil, fmt.Errorf("int2 binary must be 2 bytes, got %d", len(src))
			}
			return int16(binary.BigEndian.Uint16(src)), nil
		},
	}
}

func int4Codec() *Codec {
	return &Codec{
		OID:  pgoid.Int4,
		Name: "int4",
		EncodeText: func(v any) (string, error) {
			n, err := asInt64(v)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(n, 10), nil
		},
		DecodeText: func(src string) (any, error) {
			n, err := strconv.ParseInt(src, 10, 32)
			if err != nil {
				return nil, err
			}
			return int32(n), nil
		},
		EncodeBinary: func(v any) ([]byte, error) {
			n, err := asInt64(v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, uint32(int32(n)))
			return buf, nil
		},
		DecodeBinary: func(src []byte) (any, error) {
			if len(src) != 4 {
				return nil, fmt.Errorf("int4 binary must be 4 bytes, got %d", len(src))
			}
			return int32(binary.BigEndian.Uint32(src)), nil
		},
	}
}

func int8Codec() *Codec {
	return &Codec{
		OID:  pgoid.Int8,
		Name: "int8",
		EncodeText: func(v any) (string, error) {
			n, err := asInt64(v)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(n, 10), nil
		},
		DecodeText: func(src string) (any, error) {
			return strconv.ParseInt(src, 10, 64)
		},
		EncodeBinary: func(v any) ([]byte, error) {
			n, err := asInt64(v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(n))
			return buf, nil
		},
		DecodeBinary: func(src []byte) (any, error) {
			if len(src) != 8 {
				return nil, fmt.Errorf("int8 binary must be 8 bytes, got %d", len(src))
			}
			return int64(binary.BigEndian.Uint64(src)), nil
		},
	}
}

func float4Codec() *Codec {
	return &Codec{
		OID:  pgoid.Float4,
		Name: "float4",
		EncodeText: func(v any) (string, error) {
			f, err := asFloat64(v)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(f, 'g', -1, 32), nil
		},
		DecodeText: func(src string) (any, error) {
			f, err := strconv.ParseFloat(src, 32)
			if err != nil {
				return nil, err
			}
			return float32(f), nil
		},
		EncodeBinary: func(v any) ([]byte, error) {
			f, err := asFloat64(v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, math.Float32bits(float32(f)))
			return buf, nil
		},
		DecodeBinary: func(src []byte) (any, error) {
			if len(src) != 4 {
				return nil, fmt.Errorf("float4 binary must be 4 bytes, got %d", len(src))
			}
			return math.Float32frombits(binary.BigEndian.Uint32(src)), nil
		},
	}
}

func float8Codec() *Codec {
	return &Codec{
		OID:  pgoid.Float8,
		Name: "float8",
		EncodeText: func(v any) (string, error) {
			f, err := asFloat64(v)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(f, 'g', -1, 64), nil
		},
		DecodeText: func(src string) (any, error) {
			return strconv.ParseFloat(src, 64)
		},
		EncodeBinary: func(v any) ([]byte, error) {
			f, err := asFloat64(v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, math.Float64bits(f))
			return buf, nil
		},
		DecodeBinary: func(src []byte) (any, error) {
			if len(src) != 8 {
				return nil, fmt.Errorf("float8 binary must be 8 bytes, got %d", len(src))
			}
			return math.Float64frombits(binary.BigEndian.Uint64(src)), nil
		},
	}
}

func textCodec(oid pgoid.OID, name string) *Codec {
	return &Codec{
		OID:  oid,
		Name: name,
		EncodeText: func(v any) (string, error) {
			s, ok := v.(string)
			if !ok {
				return "", fmt.Errorf("expected string, got %T", v)
			}
			return s, nil
		},
		DecodeText: func(src string) (any, error) { return src, nil },
		// text types have no distinct binary representation: the binary
		// format for text/varchar is simply the UTF-8 bytes, so the same
		// functions serve both formats.
		EncodeBinary: func(v any) ([]byte, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", v)
			}
			return []byte(s), nil
		},
		DecodeBinary: func(src []byte) (any, error) { return string(src), nil },
	}
}

func byteaCodec() *Codec {
	return &Codec{
		OID:  pgoid.Bytea,
		Name: "bytea",
		EncodeText: func(v any) (string, error) {
			b, err := asBytes(v)
			if err != nil {
				return "", err
			}
			return encodeByteaHex(b), nil
		},
		DecodeText: func(src string) (any, error) {
			if strings.HasPrefix(src, `\x`) {
				return decodeByteaHex(src)
			}
			return decodeByteaEscape(src)
		},
		EncodeBinary: func(v any) ([]byte, error) {
			return asBytes(v)
		},
		DecodeBinary: func(src []byte) (any, error) {
			cp := make([]byte, len(src))
			copy(cp, src)
			return cp, nil
		},
	}
}

func encodeByteaHex(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 2+len(b)*2)
	out[0], out[1] = '\\', 'x'
	for i, c := range b {
		out[2+i*2] = hextable[c>>4]
		out[3+i*2] = hextable[c&0xf]
	}
	return string(out)
}

func decodeByteaHex(src string) ([]byte, error) {
	if len(src) < 2 || src[0] != '\\' || src[1] != 'x' {
		return nil, fmt.Errorf("bytea text must use the hex format (\\x...)")
	}
	hex := src[2:]
	if len(hex)%2 != 0 {
		return nil, fmt.Errorf("bytea hex payload has odd length")
	}
	out := make([]byte, len(hex)/2)
	for i := range out {
		hi, err := hexDigit(hex[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexDigit(hex[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

// decodeByteaEscape decodes PostgreSQL's bytea "escape" text format: a
// backslash followed by three octal digits encodes one byte, "\\" encodes a
// literal backslash, and any other byte passes through unchanged.
func decodeByteaEscape(src string) ([]byte, error) {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		c := src[i]
		if c != '\\' {
			out = append(out, c)
			i++
			continue
		}
		if i+1 >= len(src) {
			return nil, fmt.Errorf("bytea escape text ends with a trailing backslash")
		}
		if src[i+1] == '\\' {
			out = append(out, '\\')
			i += 2
			continue
		}
		if i+4 <= len(src) && isOctalDigit(src[i+1]) && isOctalDigit(src[i+2]) && isOctalDigit(src[i+3]) {
			v := (src[i+1]-'0')*64 + (src[i+2]-'0')*8 + (src[i+3] - '0')
			out = append(out, v)
			i += 4
			continue
		}
		return nil, fmt.Errorf("bytea escape text has an invalid escape sequence at byte %d", i)
	}
	return out, nil
}

func isOctalDigit(c byte) bool { return c >= '0' && c <= '7' }

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected an integer type, got %T", v)
	}
}

func asFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	default:
		return 0, fmt.Errorf("expected a float type, got %T", v)
	}
}

func asBytes(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("expected []byte, got %T", v)
	}
	return b, nil
}
