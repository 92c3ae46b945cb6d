package pgtype

import "fmt"

// BitString is a PostgreSQL "bit"/"varbit" value: a bit length plus the
// packed bytes holding it, high bit first, per utils/varbit.h.
type BitString struct {
	Len   int32
	Bytes []byte
}

func newBitCodec(oid uint32, name string) *scalarCodec {
	return &scalarCodec{
		oid: oid, name: name, binary: true,
		encodeFn: func(v any, dst []byte) ([]byte, error) {
			b, ok := v.(BitString)
			if !ok {
				return nil, fmt.Errorf("pgtype: %s: expected pgtype.BitString, got %T", name, v)
			}
			dst = pgioAppendInt32(dst, b.Len)
			return append(dst, b.Bytes...), nil
		},
		decodeFn: func(src []byte) (any, error) {
			if len(src) < 4 {
				return nil, fmt.Errorf("pgtype: %s: short body", name)
			}
			bitLen := int32(beUint32(src[0:4]))
			byteLen := (int(bitLen) + 7) / 8
			body := src[4:]
			if len(body) != byteLen {
				return nil, fmt.Errorf("pgtype: %s: byte length mismatch: header implies %d, got %d", name, byteLen, len(body))
			}
			return BitString{Len: bitLen, Bytes: append([]byte(nil), body...)}, nil
		},
	}
}

var (
	bitCodec    = newBitCodec(OIDBit, "bit")
	varbitCodec = newBitCodec(OIDVarbit, "varbit")
)
