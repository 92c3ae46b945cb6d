package pgtype

// Well-known OIDs for PostgreSQL's built-in types (pg_catalog.pg_type).
// These never change across PostgreSQL versions; user-defined and
// extension types are resolved at runtime by the catalog package (C8).
const (
	OIDBool        uint32 = 16
	OIDBytea       uint32 = 17
	OIDChar        uint32 = 18
	OIDName        uint32 = 19
	OIDInt8        uint32 = 20
	OIDInt2        uint32 = 21
	OIDInt4        uint32 = 23
	OIDText        uint32 = 25
	OIDOID         uint32 = 26
	OIDTID         uint32 = 27
	OIDXID         uint32 = 28
	OIDCID         uint32 = 29
	OIDJSON        uint32 = 114
	OIDXML         uint32 = 142
	OIDPoint       uint32 = 600
	OIDLseg        uint32 = 601
	OIDPath        uint32 = 602
	OIDBox         uint32 = 603
	OIDPolygon     uint32 = 604
	OIDLine        uint32 = 628
	OIDCIDR        uint32 = 650
	OIDFloat4      uint32 = 700
	OIDFloat8      uint32 = 701
	OIDCircle      uint32 = 718
	OIDMacaddr     uint32 = 829
	OIDInet        uint32 = 869
	OIDBool_array  uint32 = 1000
	OIDBpchar      uint32 = 1042
	OIDVarchar     uint32 = 1043
	OIDDate        uint32 = 1082
	OIDTime        uint32 = 1083
	OIDTimestamp   uint32 = 1114
	OIDTimestamptz uint32 = 1184
	OIDInterval    uint32 = 1186
	OIDTimetz      uint32 = 1266
	OIDBit         uint32 = 1560
	OIDVarbit      uint32 = 1562
	OIDNumeric     uint32 = 1700
	OIDVoid        uint32 = 2278
	OIDUUID        uint32 = 2950
	OIDJSONB       uint32 = 3802
	OIDMoney       uint32 = 790

	// Array OIDs for the element types most commonly parameterized.
	OIDInt2Array    uint32 = 1005
	OIDInt4Array    uint32 = 1007
	OIDInt8Array    uint32 = 1016
	OIDTextArray    uint32 = 1009
	OIDVarcharArray uint32 = 1015
	OIDFloat4Array  uint32 = 1021
	OIDFloat8Array  uint32 = 1022
	OIDUUIDArray    uint32 = 2951
	OIDOIDArray     uint32 = 1028
)
