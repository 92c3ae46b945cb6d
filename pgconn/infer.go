package pgconn

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mickamy/pgwire/pgtype"
)

// inferOID guesses a parameter's wire type from its Go type when the
// server's ParameterDescription left it unresolved (oid 0, "let the
// server infer" on Parse, happens for params the planner couldn't pin
// down from context). This mirrors the client-side type inference
// drivers must do for untyped placeholders; PostgreSQL itself falls back
// to this only for parameters never explicitly cast in SQL.
func inferOID(v any) uint32 {
	switch v.(type) {
	case bool:
		return pgtype.OIDBool
	case int16:
		return pgtype.OIDInt2
	case int32, int:
		return pgtype.OIDInt4
	case int64:
		return pgtype.OIDInt8
	case float32:
		return pgtype.OIDFloat4
	case float64:
		return pgtype.OIDFloat8
	case string:
		return pgtype.OIDText
	case []byte:
		return pgtype.OIDBytea
	case uuid.UUID:
		return pgtype.OIDUUID
	case decimal.Decimal:
		return pgtype.OIDNumeric
	case time.Time:
		return pgtype.OIDTimestamptz
	case netip.Prefix:
		return pgtype.OIDInet
	case netip.Addr:
		return pgtype.OIDInet
	default:
		return pgtype.OIDText
	}
}
