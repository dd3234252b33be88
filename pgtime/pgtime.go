// Package pgtime implements the temporal conversion engine (§4.4): it keeps
// an absolute Instant strictly separate from the zone-less wall-clock types
// (LocalDateTime, LocalDate, LocalTime), and only ever combines the two when
// the caller supplies an explicit *time.Location. Nothing in this package
// reaches for time.Local or time.Now.
package pgtime

import (
	"fmt"
	"time"

	"github.com/cedardb/pgwire/pgerr"
)

// pgEpoch is the wire's reference instant for timestamp/timestamptz/date:
// midnight UTC on 2000-01-01, not the Unix epoch.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Instant is an absolute point in time, represented as microseconds since
// the Unix epoch (UTC). It carries no notion of "local" anything; two
// Instants can always be compared or subtracted without a Location.
type Instant struct {
	micros int64
}

// FromUnixMicros builds an Instant from a Unix-epoch microsecond count.
func FromUnixMicros(micros int64) Instant { return Instant{micros: micros} }

// FromTime builds an Instant from a time.Time, discarding its Location
// (an Instant has no zone; only In reintroduces one).
func FromTime(t time.Time) Instant {
	return Instant{micros: t.Unix()*1_000_000 + int64(t.Nanosecond())/1000}
}

// UnixMicros returns the microsecond count since the Unix epoch.
func (i Instant) UnixMicros() int64 { return i.micros }

// In materializes i as wall-clock components in loc. This is the only way
// to obtain a LocalDateTime from an Instant; the caller must say which zone.
func (i Instant) In(loc *time.Location) LocalDateTime {
	t := time.Unix(i.micros/1_000_000, (i.micros%1_000_000)*1000).In(loc)
	return localDateTimeFromTime(t)
}

// String renders i in RFC3339 UTC, for logging only.
func (i Instant) String() string {
	return i.In(time.UTC).StdTime(time.UTC).Format(time.RFC3339Nano)
}

// MicrosSincePGEpoch converts i to the wire's timestamptz representation:
// microseconds since 2000-01-01 00:00:00 UTC.
func MicrosSincePGEpoch(i Instant) int64 {
	return i.micros - epochOffsetMicros
}

// InstantFromPGMicros is the inverse of MicrosSincePGEpoch.
func InstantFromPGMicros(v int64) Instant {
	return Instant{micros: v + epochOffsetMicros}
}

var epochOffsetMicros = pgEpoch.Unix() * 1_000_000

// LocalDate is a zone-less calendar date.
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DaysSincePGEpoch converts d to the wire's date representation: whole days
// since 2000-01-01, treating d as if it were UTC (it has no zone to begin
// with).
func DaysSincePGEpoch(d LocalDate) (int32, error) {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	days := (t.Unix() - pgEpoch.Unix()) / 86400
	if days > int64(maxInt32) || days < int64(minInt32) {
		return 0, pgerr.NewTemporalDecodeError("date", fmt.Errorf("day count %d out of int32 range", days))
	}
	return int32(days), nil
}

// DateFromPGDays is the inverse of DaysSincePGEpoch.
func DateFromPGDays(days int32) LocalDate {
	t := pgEpoch.AddDate(0, 0, int(days))
	return LocalDate{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

const maxInt32 = 1<<31 - 1
const minInt32 = -1 << 31

// LocalTime is a zone-less time of day with microsecond precision.
type LocalTime struct {
	Hour, Minute, Second, Micro int
}

// MicrosOfDay converts t to the wire's `time` representation: microseconds
// since midnight.
func (t LocalTime) MicrosOfDay() int64 {
	return int64(t.Hour)*3_600_000_000 + int64(t.Minute)*60_000_000 + int64(t.Second)*1_000_000 + int64(t.Micro)
}

// LocalTimeFromMicrosOfDay is the inverse of LocalTime.MicrosOfDay.
func LocalTimeFromMicrosOfDay(v int64) LocalTime {
	micro := v % 1_000_000
	v /= 1_000_000
	sec := v % 60
	v /= 60
	minute := v % 60
	v /= 60
	hour := v
	return LocalTime{Hour: int(hour), Minute: int(minute), Second: int(sec), Micro: int(micro)}
}

// LocalDateTime is a zone-less calendar date and time of day: the value a
// PostgreSQL `timestamp` (without time zone) column holds.
type LocalDateTime struct {
	Date LocalDate
	Time LocalTime
}

func localDateTimeFromTime(t time.Time) LocalDateTime {
	return LocalDateTime{
		Date: LocalDate{Year: t.Year(), Month: t.Month(), Day: t.Day()},
		Time: LocalTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Micro: t.Nanosecond() / 1000},
	}
}

// StdTime reifies ldt against loc. This is the only way to turn a
// LocalDateTime into anything zone-aware; callers needing an absolute
// Instant should then call ToInstant, not assume loc was UTC.
func (ldt LocalDateTime) StdTime(loc *time.Location) time.Time {
	return time.Date(ldt.Date.Year, ldt.Date.Month, ldt.Date.Day,
		ldt.Time.Hour, ldt.Time.Minute, ldt.Time.Second, ldt.Time.Micro*1000, loc)
}

// ToInstant resolves ldt against loc, accounting for that zone's offset
// (including sub-minute historical offsets, e.g. Europe/Paris LMT before
// 1911) at that specific wall-clock moment.
func (ldt LocalDateTime) ToInstant(loc *time.Location) Instant {
	return FromTime(ldt.StdTime(loc))
}

// MicrosSincePGEpoch converts ldt to the wire's `timestamp` (without time
// zone) representation: microseconds since 2000-01-01 00:00:00, computed
// purely on the wall-clock components with no zone involved at all.
func (ldt LocalDateTime) MicrosSincePGEpoch() (int64, error) {
	days, err := DaysSincePGEpoch(ldt.Date)
	if err != nil {
		return 0, err
	}
	return int64(days)*86_400_000_000 + ldt.Time.MicrosOfDay(), nil
}

// LocalDateTimeFromPGMicros is the inverse of
// LocalDateTime.MicrosSincePGEpoch.
func LocalDateTimeFromPGMicros(v int64) LocalDateTime {
	const microsPerDay = 86_400_000_000
	days := v / microsPerDay
	rem := v % microsPerDay
	if rem < 0 {
		rem += microsPerDay
		days--
	}
	return LocalDateTime{
		Date: DateFromPGDays(int32(days)),
		Time: LocalTimeFromMicrosOfDay(rem),
	}
}
