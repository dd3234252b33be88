package pgtype

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cedardb/pgwire/pgoid"
	"github.com/cedardb/pgwire/pgtime"
)

func TestDateBinaryRoundTrip(t *testing.T) {
	r := NewRegistry()
	d := pgtime.LocalDate{Year: 2023, Month: time.November, Day: 2}
	enc, err := r.Encode(pgoid.Date, FormatBinary, d)
	require.NoError(t, err)

	dec, err := r.Decode(pgoid.Date, FormatBinary, enc)
	require.NoError(t, err)
	require.Equal(t, d, dec)
}

func TestTimestampTextRoundTrip(t *testing.T) {
	r := NewRegistry()
	ldt := pgtime.LocalDateTime{
		Date: pgtime.LocalDate{Year: 2024, Month: time.February, Day: 29},
		Time: pgtime.LocalTime{Hour: 8, Minute: 15, Second: 0, Micro: 250000},
	}
	enc, err := r.Encode(pgoid.Timestamp, FormatText, ldt)
	require.NoError(t, err)
	require.Equal(t, "2024-02-29 08:15:00.250000", string(enc))

	dec, err := r.Decode(pgoid.Timestamp, FormatText, enc)
	require.NoError(t, err)
	require.Equal(t, ldt, dec)
}

func TestTimestamptzBinaryRoundTrip(t *testing.T) {
	r := NewRegistry()
	inst := pgtime.FromTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	enc, err := r.Encode(pgoid.Timestamptz, FormatBinary, inst)
	require.NoError(t, err)

	dec, err := r.Decode(pgoid.Timestamptz, FormatBinary, enc)
	require.NoError(t, err)
	gotInst, ok := dec.(pgtime.Instant)
	require.True(t, ok)
	require.Equal(t, inst.UnixMicros(), gotInst.UnixMicros())
}

func TestTimestamptzTextWithOffset(t *testing.T) {
	r := NewRegistry()
	dec, err := r.Decode(pgoid.Timestamptz, FormatText, []byte("2024-06-01 10:00:00-05"))
	require.NoError(t, err)
	inst, ok := dec.(pgtime.Instant)
	require.True(t, ok)

	wantUTC := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	require.Equal(t, pgtime.FromTime(wantUTC).UnixMicros(), inst.UnixMicros())
}
