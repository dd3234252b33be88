package pgtype

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cedardb/pgwire/pgoid"
	"github.com/cedardb/pgwire/pgtime"
)

// Temporal codecs decode to pgtime's zone-less/absolute types rather than
// time.Time directly, so a caller materializing a `timestamp` column must
// supply the *time.Location it means by doing so explicitly (§4.4) — this
// registry never guesses one.

func defaultTemporalCodecs() []*Codec {
	return []*Codec{
		dateCodec(),
		timestampCodec(),
		timestamptzCodec(),
	}
}

func dateCodec() *Codec {
	return &Codec{
		OID:  pgoid.Date,
		Name: "date",
		EncodeText: func(v any) (string, error) {
			d, err := asLocalDate(v)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day), nil
		},
		DecodeText: func(src string) (any, error) {
			var y, m, day int
			if _, err := fmt.Sscanf(src, "%d-%d-%d", &y, &m, &day); err != nil {
				return nil, fmt.Errorf("invalid date text %q: %w", src, err)
			}
			return pgtime.LocalDate{Year: y, Month: time.Month(m), Day: day}, nil
		},
		EncodeBinary: func(v any) ([]byte, error) {
			d, err := asLocalDate(v)
			if err != nil {
				return nil, err
			}
			days, err := pgtime.DaysSincePGEpoch(d)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, uint32(days))
			return buf, nil
		},
		DecodeBinary: func(src []byte) (any, error) {
			if len(src) != 4 {
				return nil, fmt.Errorf("date binary must be 4 bytes, got %d", len(src))
			}
			days := int32(binary.BigEndian.Uint32(src))
			return pgtime.DateFromPGDays(days), nil
		},
	}
}

func timestampCodec() *Codec {
	return &Codec{
		OID:  pgoid.Timestamp,
		Name: "timestamp",
		EncodeText: func(v any) (string, error) {
			ldt, err := asLocalDateTime(v)
			if err != nil {
				return "", err
			}
			return formatLocalDateTime(ldt), nil
		},
		DecodeText: func(src string) (any, error) {
			return parseLocalDateTime(src)
		},
		EncodeBinary: func(v any) ([]byte, error) {
			ldt, err := asLocalDateTime(v)
			if err != nil {
				return nil, err
			}
			micros, err := ldt.MicrosSincePGEpoch()
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(micros))
			return buf, nil
		},
		DecodeBinary: func(src []byte) (any, error) {
			if len(src) != 8 {
				return nil, fmt.Errorf("timestamp binary must be 8 bytes, got %d", len(src))
			}
			micros := int64(binary.BigEndian.Uint64(src))
			return pgtime.LocalDateTimeFromPGMicros(micros), nil
		},
	}
}

// timestamptzCodec decodes to a pgtime.Instant: an absolute moment with no
// embedded zone. The wire carries no zone information for timestamptz
// either — the server has already normalized to UTC — so a caller must
// still supply a *time.Location (pgtime.Instant.In) to render it locally.
func timestamptzCodec() *Codec {
	return &Codec{
		OID:  pgoid.Timestamptz,
		Name: "timestamptz",
		EncodeText: func(v any) (string, error) {
			inst, err := asInstant(v)
			if err != nil {
				return "", err
			}
			ldt := inst.In(time.UTC)
			return formatLocalDateTime(ldt) + "+00", nil
		},
		DecodeText: func(src string) (any, error) {
			ldt, loc, err := parseLocalDateTimeWithZone(src)
			if err != nil {
				return nil, err
			}
			return ldt.ToInstant(loc), nil
		},
		EncodeBinary: func(v any) ([]byte, error) {
			inst, err := asInstant(v)
			if err != nil {
				return nil, err
			}
			micros := pgtime.MicrosSincePGEpoch(inst)
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(micros))
			return buf, nil
		},
		DecodeBinary: func(src []byte) (any, error) {
			if len(src) != 8 {
				return nil, fmt.Errorf("timestamptz binary must be 8 bytes, got %d", len(src))
			}
			micros := int64(binary.BigEndian.Uint64(src))
			return pgtime.InstantFromPGMicros(micros), nil
		},
	}
}

func asLocalDate(v any) (pgtime.LocalDate, error) {
	d, ok := v.(pgtime.LocalDate)
	if !ok {
		return pgtime.LocalDate{}, fmt.Errorf("expected pgtime.LocalDate, got %T", v)
	}
	return d, nil
}

func asLocalDateTime(v any) (pgtime.LocalDateTime, error) {
	ldt, ok := v.(pgtime.LocalDateTime)
	if !ok {
		return pgtime.LocalDateTime{}, fmt.Errorf("expected pgtime.LocalDateTime, got %T", v)
	}
	return ldt, nil
}

func asInstant(v any) (pgtime.Instant, error) {
	inst, ok := v.(pgtime.Instant)
	if !ok {
		return pgtime.Instant{}, fmt.Errorf("expected pgtime.Instant, got %T", v)
	}
	return inst, nil
}

func formatLocalDateTime(ldt pgtime.LocalDateTime) string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d",
		ldt.Date.Year, int(ldt.Date.Month), ldt.Date.Day,
		ldt.Time.Hour, ldt.Time.Minute, ldt.Time.Second, ldt.Time.Micro)
}

func parseLocalDateTime(src string) (pgtime.LocalDateTime, error) {
	var y, mo, d, h, mi, s, micro int
	_, err := fmt.Sscanf(src, "%d-%d-%d %d:%d:%d.%d", &y, &mo, &d, &h, &mi, &s, &micro)
	if err != nil {
		// fractional seconds are optional on the wire.
		_, err2 := fmt.Sscanf(src, "%d-%d-%d %d:%d:%d", &y, &mo, &d, &h, &mi, &s)
		if err2 != nil {
			return pgtime.LocalDateTime{}, fmt.Errorf("invalid timestamp text %q: %w", src, err)
		}
	}
	return pgtime.LocalDateTime{
		Date: pgtime.LocalDate{Year: y, Month: time.Month(mo), Day: d},
		Time: pgtime.LocalTime{Hour: h, Minute: mi, Second: s, Micro: micro},
	}, nil
}

func parseLocalDateTimeWithZone(src string) (pgtime.LocalDateTime, *time.Location, error) {
	// PostgreSQL's text timestamptz format always carries a numeric
	// +HH or +HH:MM offset suffix; this core only round-trips the offsets
	// it itself produces (always +00 over text, since the wire value is
	// already UTC-normalized), so a fixed-offset Location built from the
	// suffix is sufficient here.
	n := len(src)
	splitAt := -1
	for i := n - 1; i >= 0; i-- {
		if src[i] == '+' || src[i] == '-' {
			splitAt = i
			break
		}
		if src[i] == ' ' {
			break
		}
	}
	if splitAt < 0 {
		ldt, err := parseLocalDateTime(src)
		return ldt, time.UTC, err
	}
	ldt, err := parseLocalDateTime(src[:splitAt])
	if err != nil {
		return pgtime.LocalDateTime{}, nil, err
	}
	offsetStr := src[splitAt:]
	sign := 1
	if offsetStr[0] == '-' {
		sign = -1
	}
	var oh, om int
	if _, err := fmt.Sscanf(offsetStr[1:], "%d:%d", &oh, &om); err != nil {
		if _, err := fmt.Sscanf(offsetStr[1:], "%d", &oh); err != nil {
			return pgtime.LocalDateTime{}, nil, fmt.Errorf("invalid timestamptz offset %q", offsetStr)
		}
	}
	loc := time.FixedZone(offsetStr, sign*(oh*3600+om*60))
	return ldt, loc, nil
}
