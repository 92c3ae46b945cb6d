package pgtype

import "fmt"

// TID is a PostgreSQL "tid" value: a physical row locator (block number,
// offset within block).
type TID struct {
	BlockNumber  uint32
	OffsetNumber uint16
}

var tidCodec = &scalarCodec{
	oid: OIDTID, name: "tid", binary: true,
	encodeFn: func(v any, dst []byte) ([]byte, error) {
		t, ok := v.(TID)
		if !ok {
			return nil, fmt.Errorf("pgtype: tid: expected pgtype.TID, got %T", v)
		}
		dst = pgioAppendUint32(dst, t.BlockNumber)
		dst = pgioAppendUint16(dst, t.OffsetNumber)
		return dst, nil
	},
	decodeFn: func(src []byte) (any, error) {
		if len(src) != 6 {
			return nil, fmt.Errorf("pgtype: tid: invalid length %d", len(src))
		}
		return TID{BlockNumber: beUint32(src[0:4]), OffsetNumber: beUint16(src[4:6])}, nil
	},
}

func newXidLikeCodec(oid uint32, name string) *scalarCodec {
	return &scalarCodec{
		oid: oid, name: name, binary: true,
		encodeFn: func(v any, dst []byte) ([]byte, error) {
			switch n := v.(type) {
			case uint32:
				return pgioAppendUint32(dst, n), nil
			case int64:
				return pgioAppendUint32(dst, uint32(n)), nil
			default:
				return nil, fmt.Errorf("pgtype: %s: expected uint32, got %T", name, v)
			}
		},
		decodeFn: func(src []byte) (any, error) {
			if len(src) != 4 {
				return nil, fmt.Errorf("pgtype: %s: invalid length %d", name, len(src))
			}
			return beUint32(src), nil
		},
	}
}

var (
	xidCodec = newXidLikeCodec(OIDXID, "xid")
	cidCodec = newXidLikeCodec(OIDCID, "cid")
)
