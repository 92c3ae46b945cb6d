package pgtype

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/mickamy/pgwire/internal/wire"
)

// scalarCodec implements Codec for a fixed-layout built-in type via a pair
// of plain functions, avoiding a distinct named type per built-in.
type scalarCodec struct {
	oid       uint32
	name      string
	binary    bool
	encodeFn  func(value any, dst []byte) ([]byte, error)
	decodeFn  func(src []byte) (any, error)
}

func (c *scalarCodec) OID() uint32             { return c.oid }
func (c *scalarCodec) Name() string            { return c.name }
func (c *scalarCodec) HasBinaryFormat() bool   { return c.binary }
func (c *scalarCodec) Encode(v any, dst []byte) ([]byte, error) { return c.encodeFn(v, dst) }
func (c *scalarCodec) Decode(src []byte) (any, error)            { return c.decodeFn(src) }

func asBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("pgtype: bool: expected bool, got %T", v)
	}
	return b, nil
}

var boolCodec = &scalarCodec{
	oid: OIDBool, name: "bool", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		b, err := asBool(v)
		if err != nil {
			return nil, err
		}
		if b {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 1 {
			return nil, fmt.Errorf("pgtype: bool: invalid length %d", len(src))
		}
		return src[0] != 0, nil
	},
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
		return 0, fmt.Errorf("pgtype: expected integer, got %T", v)
	}
}

var int2Codec = &scalarCodec{
	oid: OIDInt2, name: "int2", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		n, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, fmt.Errorf("pgtype: int2: value %d out of range", n)
		}
		return pgioAppendInt16(dst, int16(n)), nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 2 {
			return nil, fmt.Errorf("pgtype: int2: invalid length %d", len(src))
		}
		n, _ := wire.GetInt16(src)
		return n, nil
	},
}

var int4Codec = &scalarCodec{
	oid: OIDInt4, name: "int4", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		n, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("pgtype: int4: value %d out of range", n)
		}
		return pgioAppendInt32(dst, int32(n)), nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 4 {
			return nil, fmt.Errorf("pgtype: int4: invalid length %d", len(src))
		}
		n, _ := wire.GetInt32(src)
		return n, nil
	},
}

var int8Codec = &scalarCodec{
	oid: OIDInt8, name: "int8", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		n, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		return pgioAppendInt64(dst, n), nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 8 {
			return nil, fmt.Errorf("pgtype: int8: invalid length %d", len(src))
		}
		return int64(beUint64(src)), nil
	},
}

func asFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	default:
		return 0, fmt.Errorf("pgtype: expected float, got %T", v)
	}
}

var float4Codec = &scalarCodec{
	oid: OIDFloat4, name: "float4", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		f, err := asFloat64(v)
		if err != nil {
			return nil, err
		}
		return pgioAppendUint32(dst, math.Float32bits(float32(f))), nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 4 {
			return nil, fmt.Errorf("pgtype: float4: invalid length %d", len(src))
		}
		bits := beUint32(src)
		return float64(math.Float32frombits(bits)), nil
	},
}

var float8Codec = &scalarCodec{
	oid: OIDFloat8, name: "float8", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		f, err := asFloat64(v)
		if err != nil {
			return nil, err
		}
		return pgioAppendUint64(dst, math.Float64bits(f)), nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 8 {
			return nil, fmt.Errorf("pgtype: float8: invalid length %d", len(src))
		}
		bits := beUint64(src)
		return math.Float64frombits(bits), nil
	},
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("pgtype: expected string, got %T", v)
	}
}

// newTextLikeCodec builds a codec for any of text/varchar/bpchar/name/xml,
// which all share the trivial "bytes are the value" binary format.
func newTextLikeCodec(oid uint32, name string) *scalarCodec {
	return &scalarCodec{
		oid: oid, name: name, binary: true,
		encodeFn: func(v any, dst []byte) ([]byte, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			return append(dst, s...), nil
		},
		decodeFn: func(src []byte) (any, error) {
			return string(src), nil
		},
	}
}

var (
	textCodec    = newTextLikeCodec(OIDText, "text")
	varcharCodec = newTextLikeCodec(OIDVarchar, "varchar")
	bpcharCodec  = newTextLikeCodec(OIDBpchar, "bpchar")
	nameCodec    = newTextLikeCodec(OIDName, "name")
	xmlCodec     = newTextLikeCodec(OIDXML, "xml")
	jsonCodec    = newTextLikeCodec(OIDJSON, "json")
	jsonbPrefixedCodec = &scalarCodec{
		oid: OIDJSONB, name: "jsonb", binary: true,
		// jsonb's binary format is a single version byte (always 1)
		// followed by the JSON text itself.
		encodeFn: func(v any, dst []byte) ([]byte, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			dst = append(dst, 1)
			return append(dst, s...), nil
		},
		decodeFn: func(src []byte) (any, error) {
			if len(src) < 1 {
				return nil, fmt.Errorf("pgtype: jsonb: empty value")
			}
			if src[0] != 1 {
				return nil, fmt.Errorf("pgtype: jsonb: unsupported version byte %d", src[0])
			}
			return string(src[1:]), nil
		},
	}
)

var byteaCodec = &scalarCodec{
	oid: OIDBytea, name: "bytea", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("pgtype: bytea: expected []byte, got %T", v)
		}
		return append(dst, b...), nil
	},
	decodeFn: func(src []byte) (any, error) {
		return append([]byte(nil), src...), nil
	},
}

var charCodec = &scalarCodec{
	oid: OIDChar, name: "char", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		switch c := v.(type) {
		case byte:
			return append(dst, c), nil
		case string:
			if len(c) != 1 {
				return nil, fmt.Errorf("pgtype: char: expected 1 byte, got %d", len(c))
			}
			return append(dst, c[0]), nil
		default:
			return nil, fmt.Errorf("pgtype: char: expected byte, got %T", v)
		}
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 1 {
			return nil, fmt.Errorf("pgtype: char: invalid length %d", len(src))
		}
		return src[0], nil
	},
}

var oidCodec = &scalarCodec{
	oid: OIDOID, name: "oid", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		switch n := v.(type) {
		case uint32:
			return pgioAppendUint32(dst, n), nil
		case int64:
			return pgioAppendUint32(dst, uint32(n)), nil
		default:
			return nil, fmt.Errorf("pgtype: oid: expected uint32, got %T", v)
		}
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 4 {
			return nil, fmt.Errorf("pgtype: oid: invalid length %d", len(src))
		}
		return beUint32(src), nil
	},
}

var uuidCodec = &scalarCodec{
	oid: OIDUUID, name: "uuid", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		switch u := v.(type) {
		case uuid.UUID:
			return append(dst, u[:]...), nil
		case string:
			parsed, err := uuid.Parse(u)
			if err != nil {
				return nil, fmt.Errorf("pgtype: uuid: %w", err)
			}
			return append(dst, parsed[:]...), nil
		default:
			return nil, fmt.Errorf("pgtype: uuid: expected uuid.UUID or string, got %T", v)
		}
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 16 {
			return nil, fmt.Errorf("pgtype: uuid: invalid length %d", len(src))
		}
		var u uuid.UUID
		copy(u[:], src)
		return u, nil
	},
}

var voidCodec = &scalarCodec{
	oid: OIDVoid, name: "void", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) { return dst, nil },
	decodeFn: func(src []byte) (any, error) { return nil, nil },
}

var moneyCodec = &scalarCodec{
	oid: OIDMoney, name: "money", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		n, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		return pgioAppendInt64(dst, n), nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 8 {
			return nil, fmt.Errorf("pgtype: money: invalid length %d", len(src))
		}
		return int64(beUint64(src)), nil
	},
}
