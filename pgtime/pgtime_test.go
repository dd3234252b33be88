package pgtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMicrosSincePGEpochRoundTrip(t *testing.T) {
	i := FromTime(time.Date(2024, 3, 15, 12, 30, 0, 500000, time.UTC))
	micros := MicrosSincePGEpoch(i)
	back := InstantFromPGMicros(micros)
	require.Equal(t, i.UnixMicros(), back.UnixMicros())
}

func TestDateSincePGEpochRoundTrip(t *testing.T) {
	d := LocalDate{Year: 2000, Month: time.January, Day: 1}
	days, err := DaysSincePGEpoch(d)
	require.NoError(t, err)
	require.Equal(t, int32(0), days)

	back := DateFromPGDays(days)
	require.Equal(t, d, back)

	d2 := LocalDate{Year: 1999, Month: time.December, Day: 31}
	days2, err := DaysSincePGEpoch(d2)
	require.NoError(t, err)
	require.Equal(t, int32(-1), days2)
}

func TestLocalDateTimeMicrosRoundTrip(t *testing.T) {
	ldt := LocalDateTime{
		Date: LocalDate{Year: 2024, Month: time.July, Day: 4},
		Time: LocalTime{Hour: 23, Minute: 59, Second: 59, Micro: 999999},
	}
	micros, err := ldt.MicrosSincePGEpoch()
	require.NoError(t, err)

	back := LocalDateTimeFromPGMicros(micros)
	require.Equal(t, ldt, back)
}

func TestLocalDateTimeMicrosBeforeEpoch(t *testing.T) {
	ldt := LocalDateTime{
		Date: LocalDate{Year: 1970, Month: time.January, Day: 1},
		Time: LocalTime{Hour: 0, Minute: 0, Second: 0, Micro: 0},
	}
	micros, err := ldt.MicrosSincePGEpoch()
	require.NoError(t, err)
	require.True(t, micros < 0)

	back := LocalDateTimeFromPGMicros(micros)
	require.Equal(t, ldt, back)
}

// TestHistoricalSubMinuteOffset exercises Europe/Paris's pre-1911 LMT
// offset (0:09:21 east of Greenwich), which a naive minute-granularity zone
// table would round away. A LocalDateTime resolved against that zone must
// produce an Instant reflecting the true sub-minute offset.
func TestHistoricalSubMinuteOffset(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata not available in this environment: %v", err)
	}
	ldt := LocalDateTime{
		Date: LocalDate{Year: 1900, Month: time.June, Day: 15},
		Time: LocalTime{Hour: 12, Minute: 0, Second: 0},
	}
	inst := ldt.ToInstant(loc)

	asUTC := inst.In(time.UTC)
	// Paris LMT was UTC+0:09:21 at the time, so noon local was 11:50:39 UTC.
	require.Equal(t, 11, asUTC.Time.Hour)
	require.Equal(t, 50, asUTC.Time.Minute)
	require.Equal(t, 39, asUTC.Time.Second)
}

func TestLocalTimeMicrosOfDayRoundTrip(t *testing.T) {
	lt := LocalTime{Hour: 13, Minute: 45, Second: 30, Micro: 123456}
	v := lt.MicrosOfDay()
	require.Equal(t, lt, LocalTimeFromMicrosOfDay(v))
}
