package pgtype

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/require"

	"github.com/cedardb/pgwire/pgoid"
)

func TestInt4BinaryRoundTrip(t *testing.T) {
	r := NewRegistry()
	enc, err := r.Encode(pgoid.Int4, FormatBinary, int32(-42))
	require.NoError(t, err)
	require.Len(t, enc, 4)

	dec, err := r.Decode(pgoid.Int4, FormatBinary, enc)
	require.NoError(t, err)
	require.Equal(t, int32(-42), dec)
}

func TestBoolTextRoundTrip(t *testing.T) {
	r := NewRegistry()
	enc, err := r.Encode(pgoid.Bool, FormatText, true)
	require.NoError(t, err)
	require.Equal(t, "t", string(enc))

	dec, err := r.Decode(pgoid.Bool, FormatText, enc)
	require.NoError(t, err)
	require.Equal(t, true, dec)
}

func TestByteaHexRoundTrip(t *testing.T) {
	r := NewRegistry()
	want := []byte{0x00, 0xDE, 0xAD, 0xBE, 0xEF}
	enc, err := r.Encode(pgoid.Bytea, FormatText, want)
	require.NoError(t, err)
	require.Equal(t, `\x00deadbeef`, string(enc))

	dec, err := r.Decode(pgoid.Bytea, FormatText, enc)
	require.NoError(t, err)
	require.Equal(t, want, dec)
}

func TestByteaEscapeTextDecode(t *testing.T) {
	r := NewRegistry()
	src := []byte(`\101\102C\\`)
	want := []byte{'A', 'B', 'C', '\\'}

	dec, err := r.Decode(pgoid.Bytea, FormatText, src)
	require.NoError(t, err)
	require.Equal(t, want, dec)
}

func numericOf(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestNumericBinaryRoundTrip(t *testing.T) {
	r := NewRegistry()
	cases := []string{"0", "1", "-1", "123.456", "0.0001", "100000", "-42.5", "3.14159265358979"}
	for _, s := range cases {
		d := numericOf(t, s)
		enc, err := r.Encode(pgoid.Numeric, FormatBinary, d)
		require.NoError(t, err, s)

		dec, err := r.Decode(pgoid.Numeric, FormatBinary, enc)
		require.NoError(t, err, s)
		gotDec, ok := dec.(*apd.Decimal)
		require.True(t, ok)
		require.Zero(t, gotDec.Cmp(d), "round trip of %s produced %s", s, gotDec.Text('f'))
	}
}

func TestNumericBinaryNaN(t *testing.T) {
	r := NewRegistry()
	d := &apd.Decimal{Form: apd.NaN}
	enc, err := r.Encode(pgoid.Numeric, FormatBinary, d)
	require.NoError(t, err)

	dec, err := r.Decode(pgoid.Numeric, FormatBinary, enc)
	require.NoError(t, err)
	gotDec, ok := dec.(*apd.Decimal)
	require.True(t, ok)
	require.Equal(t, apd.NaN, gotDec.Form)
}

func TestInt4ArrayBinaryRoundTrip(t *testing.T) {
	r := NewRegistry()
	vals := arrayValue{int32(1), int32(2), nil, int32(4)}
	enc, err := r.Encode(pgoid.Int4Array, FormatBinary, vals)
	require.NoError(t, err)

	dec, err := r.Decode(pgoid.Int4Array, FormatBinary, enc)
	require.NoError(t, err)
	require.Equal(t, vals, dec)
}

func TestTextArrayTextRoundTrip(t *testing.T) {
	r := NewRegistry()
	vals := arrayValue{"foo", "bar", nil}
	enc, err := r.Encode(pgoid.TextArray, FormatText, vals)
	require.NoError(t, err)
	require.Equal(t, "{foo,bar,NULL}", string(enc))

	dec, err := r.Decode(pgoid.TextArray, FormatText, enc)
	require.NoError(t, err)
	require.Equal(t, vals, dec)
}

func TestDecodeUnregisteredOIDFallsBackToRaw(t *testing.T) {
	r := NewRegistry()
	dec, err := r.Decode(999999, FormatText, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "hello", dec)
}
