package pgtype

import (
	"fmt"
	"time"
)

// PostgreSQL's epoch for date/timestamp binary values is 2000-01-01, not
// the Unix epoch.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const microsPerDay = int64(24 * time.Hour / time.Microsecond)

// Interval represents a PostgreSQL "interval" value. Months and days are
// kept separate from microseconds because they are not fixed-duration
// (a month is calendar-dependent) — collapsing them into a single
// time.Duration would silently lose or fabricate precision, per the
// design notes' preference for explicit structure over a misleading
// stdlib type.
type Interval struct {
	Microseconds int64
	Days         int32
	Months       int32
}

// Timetz represents a PostgreSQL "time with time zone" value: a
// time-of-day plus a zone offset, with no associated calendar date.
type Timetz struct {
	Microseconds int64 // since midnight
	OffsetSecs   int32 // seconds east of UTC, PostgreSQL's sign convention negated on the wire
}

var dateCodec = &scalarCodec{
	oid: OIDDate, name: "date", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		t, err := asTime(v)
		if err != nil {
			return nil, err
		}
		days := int32(t.UTC().Sub(pgEpoch).Hours() / 24)
		return pgioAppendInt32(dst, days), nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 4 {
			return nil, fmt.Errorf("pgtype: date: invalid length %d", len(src))
		}
		days := int32(beUint32(src))
		return pgEpoch.AddDate(0, 0, int(days)), nil
	},
}

var timestampCodec = &scalarCodec{
	oid: OIDTimestamp, name: "timestamp", binary: true,
	encodeFn: encodeTimestamp,
	decodeFn: decodeTimestamp,
}

var timestamptzCodec = &scalarCodec{
	oid: OIDTimestamptz, name: "timestamptz", binary: true,
	encodeFn: encodeTimestamp,
	decodeFn: func(src []byte) (any, error) {
		v, err := decodeTimestamp(src)
		if err != nil {
			return nil, err
		}
		return v.(time.Time).UTC(), nil
	},
}

func asTime(v any) (time.Time, error) {
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("pgtype: expected time.Time, got %T", v)
	}
	return t, nil
}

func encodeTimestamp(v any, dst []byte) ([]byte, error) {
	t, err := asTime(v)
	if err != nil {
		return nil, err
	}
	micros := t.UTC().Sub(pgEpoch).Microseconds()
	return pgioAppendInt64(dst, micros), nil
}

func decodeTimestamp(src []byte) (any, error) {
	if len(src) != 8 {
		return nil, fmt.Errorf("pgtype: timestamp: invalid length %d", len(src))
	}
	micros := int64(beUint64(src))
	return pgEpoch.Add(time.Duration(micros) * time.Microsecond), nil
}

var timeCodec = &scalarCodec{
	oid: OIDTime, name: "time", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		d, ok := v.(time.Duration)
		if !ok {
			return nil, fmt.Errorf("pgtype: time: expected time.Duration, got %T", v)
		}
		return pgioAppendInt64(dst, d.Microseconds()), nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 8 {
			return nil, fmt.Errorf("pgtype: time: invalid length %d", len(src))
		}
		micros := int64(beUint64(src))
		return time.Duration(micros) * time.Microsecond, nil
	},
}

var timetzCodec = &scalarCodec{
	oid: OIDTimetz, name: "timetz", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		tz, ok := v.(Timetz)
		if !ok {
			return nil, fmt.Errorf("pgtype: timetz: expected pgtype.Timetz, got %T", v)
		}
		dst = pgioAppendInt64(dst, tz.Microseconds)
		dst = pgioAppendInt32(dst, -tz.OffsetSecs)
		return dst, nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 12 {
			return nil, fmt.Errorf("pgtype: timetz: invalid length %d", len(src))
		}
		micros := int64(beUint64(src[0:8]))
		zone := int32(beUint32(src[8:12]))
		return Timetz{Microseconds: micros, OffsetSecs: -zone}, nil
	},
}

var intervalCodec = &scalarCodec{
	oid: OIDInterval, name: "interval", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		iv, ok := v.(Interval)
		if !ok {
			return nil, fmt.Errorf("pgtype: interval: expected pgtype.Interval, got %T", v)
		}
		dst = pgioAppendInt64(dst, iv.Microseconds)
		dst = pgioAppendInt32(dst, iv.Days)
		dst = pgioAppendInt32(dst, iv.Months)
		return dst, nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 16 {
			return nil, fmt.Errorf("pgtype: interval: invalid length %d", len(src))
		}
		micros := int64(beUint64(src[0:8]))
		days := int32(beUint32(src[8:12]))
		months := int32(beUint32(src[12:16]))
		return Interval{Microseconds: micros, Days: days, Months: months}, nil
	},
}
