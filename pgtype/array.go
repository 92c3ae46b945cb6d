package pgtype

import (
	"fmt"
)

// arrayHasNullFlag is the only bit ever set in a wire array's flags word;
// PostgreSQL defines no other flag values.
const arrayHasNullFlag = 1

// Array is the decoded shape of any PostgreSQL array value: element
// values in row-major order plus the dimension bounds needed to
// reconstruct the server's indexing (arrays need not be 1-based).
type Array struct {
	Dims   []ArrayDim
	Values []any // nil entries are SQL NULL elements
}

// ArrayDim is one dimension's length and lower bound, as PostgreSQL
// stores it (arrays default to a lower bound of 1, but slices and
// explicit bound syntax can make it anything).
type ArrayDim struct {
	Length     int32
	LowerBound int32
}

// arrayCodec wraps an element Codec to encode/decode any dimensionality
// of array built from that element type: one generic codec parameterized
// by element type rather than one codec class per array OID.
type arrayCodec struct {
	oid     uint32
	name    string
	elemOID uint32
	elem    Codec
}

func newArrayCodec(oid uint32, name string, elemOID uint32, elem Codec) *arrayCodec {
	return &arrayCodec{oid: oid, name: name, elemOID: elemOID, elem: elem}
}

// NewArrayCodec builds a Codec for an array type discovered at runtime,
// for catalog to register against pg_type's typarray/typelem columns.
func NewArrayCodec(oid uint32, name string, elemOID uint32, elem Codec) Codec {
	return newArrayCodec(oid, name, elemOID, elem)
}

func (c *arrayCodec) OID() uint32           { return c.oid }
func (c *arrayCodec) Name() string          { return c.name }
func (c *arrayCodec) HasBinaryFormat() bool { return c.elem.HasBinaryFormat() }

func (c *arrayCodec) Encode(v any, dst []byte) ([]byte, error) {
	a, ok := v.(Array)
	if !ok {
		return nil, fmt.Errorf("pgtype: %s: expected pgtype.Array, got %T", c.name, v)
	}

	flags := int32(0)
	for _, e := range a.Values {
		if e == nil {
			flags = arrayHasNullFlag
			break
		}
	}

	dst = pgioAppendInt32(dst, int32(len(a.Dims)))
	dst = pgioAppendInt32(dst, flags)
	dst = pgioAppendUint32(dst, c.elemOID)
	for _, d := range a.Dims {
		dst = pgioAppendInt32(dst, d.Length)
		dst = pgioAppendInt32(dst, d.LowerBound)
	}

	for _, e := range a.Values {
		if e == nil {
			dst = pgioAppendInt32(dst, -1)
			continue
		}
		lenIdx := len(dst)
		dst = pgioAppendInt32(dst, 0) // placeholder, patched below
		before := len(dst)
		var err error
		dst, err = c.elem.Encode(e, dst)
		if err != nil {
			return nil, fmt.Errorf("pgtype: %s: element: %w", c.name, err)
		}
		elemLen := int32(len(dst) - before)
		putInt32(dst[lenIdx:lenIdx+4], elemLen)
	}
	return dst, nil
}

func putInt32(b []byte, n int32) {
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
}

func (c *arrayCodec) Decode(src []byte) (any, error) {
	if len(src) < 12 {
		return nil, fmt.Errorf("pgtype: %s: short body", c.name)
	}
	ndim := int(int32(beUint32(src[0:4])))
	// flags at src[4:8] are informational only; nullness is carried
	// per-element by the -1 length prefix regardless of the flag.
	elemOID := beUint32(src[8:12])
	if elemOID != c.elemOID {
		return nil, fmt.Errorf("pgtype: %s: element OID mismatch: wire %d, expected %d", c.name, elemOID, c.elemOID)
	}
	src = src[12:]

	if ndim == 0 {
		return Array{}, nil
	}
	if len(src) < ndim*8 {
		return nil, fmt.Errorf("pgtype: %s: short dimension header", c.name)
	}
	dims := make([]ArrayDim, ndim)
	total := int64(1)
	for i := 0; i < ndim; i++ {
		length := int32(beUint32(src[i*8 : i*8+4]))
		lower := int32(beUint32(src[i*8+4 : i*8+8]))
		dims[i] = ArrayDim{Length: length, LowerBound: lower}
		total *= int64(length)
	}
	src = src[ndim*8:]

	values := make([]any, 0, total)
	for int64(len(values)) < total {
		if len(src) < 4 {
			return nil, fmt.Errorf("pgtype: %s: truncated element length", c.name)
		}
		elemLen := int32(beUint32(src[0:4]))
		src = src[4:]
		if elemLen < 0 {
			values = append(values, nil)
			continue
		}
		if len(src) < int(elemLen) {
			return nil, fmt.Errorf("pgtype: %s: truncated element body", c.name)
		}
		v, err := c.elem.Decode(src[:elemLen])
		if err != nil {
			return nil, fmt.Errorf("pgtype: %s: element: %w", c.name, err)
		}
		values = append(values, v)
		src = src[elemLen:]
	}
	return Array{Dims: dims, Values: values}, nil
}
