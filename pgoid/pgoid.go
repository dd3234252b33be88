// Package pgoid names the PostgreSQL type OIDs the registry understands.
// The scalar constants are the same ones the teacher depends on
// (github.com/lib/pq/oid) for exactly this purpose; the array OIDs are
// PostgreSQL's own stable pg_type values, which lib/pq's generated oid
// package does not expose under friendly names.
package pgoid

import "github.com/lib/pq/oid"

// OID is the wire's 32-bit type identifier (§ Glossary).
type OID = uint32

const (
	Bool      OID = OID(oid.T_bool)
	Bytea     OID = OID(oid.T_bytea)
	Int8      OID = OID(oid.T_int8)
	Int2      OID = OID(oid.T_int2)
	Int4      OID = OID(oid.T_int4)
	Text      OID = OID(oid.T_text)
	Float4    OID = OID(oid.T_float4)
	Float8    OID = OID(oid.T_float8)
	Numeric   OID = OID(oid.T_numeric)
	Date      OID = OID(oid.T_date)
	Time      OID = OID(oid.T_time)
	Timestamp OID = OID(oid.T_timestamp)
	Varchar   OID = OID(oid.T_varchar)
	Interval  OID = OID(oid.T_interval)

	// Timestamptz and Timetz carry a zone component on the wire.
	Timestamptz OID = OID(oid.T_timestamptz)
	Timetz      OID = OID(oid.T_timetz)

	// Array OIDs. PostgreSQL assigns these deterministically next to their
	// element type in pg_type, independent of any client library's naming.
	BoolArray        OID = 1000
	Int2Array        OID = 1005
	Int4Array        OID = 1007
	TextArray        OID = 1009
	ByteaArray       OID = 1001
	Int8Array        OID = 1016
	Float4Array      OID = 1021
	Float8Array      OID = 1022
	NumericArray     OID = 1231
	TimestampArray   OID = 1115
	TimestamptzArray OID = 1185
	DateArray        OID = 1182
)

// IsArray reports whether oid names an array type this registry knows
// about, and if so returns the element type's OID.
func IsArray(o OID) (elem OID, ok bool) {
	switch o {
	case BoolArray:
		return Bool, true
	case Int2Array:
		return Int2, true
	case Int4Array:
		return Int4, true
	case Int8Array:
		return Int8, true
	case TextArray:
		return Text, true
	case ByteaArray:
		return Bytea, true
	case Float4Array:
		return Float4, true
	case Float8Array:
		return Float8, true
	case NumericArray:
		return Numeric, true
	case TimestampArray:
		return Timestamp, true
	case TimestamptzArray:
		return Timestamptz, true
	case DateArray:
		return Date, true
	default:
		return 0, false
	}
}
