package pgtype

// builtinCodecs lists every codec NewRegistry seeds a fresh Registry
// with. Scalars come first, then the array codecs for the element types
// most commonly bound as query parameters (§4.2); the remaining array
// OIDs PostgreSQL defines are resolved on demand through catalog (C8)
// introspection instead of being enumerated here.
var builtinCodecs = []Codec{
	boolCodec,
	int2Codec,
	int4Codec,
	int8Codec,
	float4Codec,
	float8Codec,
	numericCodec,
	textCodec,
	varcharCodec,
	bpcharCodec,
	nameCodec,
	xmlCodec,
	jsonCodec,
	jsonbPrefixedCodec,
	byteaCodec,
	charCodec,
	oidCodec,
	tidCodec,
	xidCodec,
	cidCodec,
	uuidCodec,
	voidCodec,
	moneyCodec,

	dateCodec,
	timeCodec,
	timetzCodec,
	timestampCodec,
	timestamptzCodec,
	intervalCodec,

	inetCodec,
	cidrCodec,
	macaddrCodec,

	pointCodec,
	lineCodec,
	lsegCodec,
	boxCodec,
	pathCodec,
	polygonCodec,
	circleCodec,

	bitCodec,
	varbitCodec,

	newArrayCodec(OIDBool_array, "_bool", OIDBool, boolCodec),
	newArrayCodec(OIDInt2Array, "_int2", OIDInt2, int2Codec),
	newArrayCodec(OIDInt4Array, "_int4", OIDInt4, int4Codec),
	newArrayCodec(OIDInt8Array, "_int8", OIDInt8, int8Codec),
	newArrayCodec(OIDFloat4Array, "_float4", OIDFloat4, float4Codec),
	newArrayCodec(OIDFloat8Array, "_float8", OIDFloat8, float8Codec),
	newArrayCodec(OIDTextArray, "_text", OIDText, textCodec),
	newArrayCodec(OIDVarcharArray, "_varchar", OIDVarchar, varcharCodec),
	newArrayCodec(OIDUUIDArray, "_uuid", OIDUUID, uuidCodec),
	newArrayCodec(OIDOIDArray, "_oid", OIDOID, oidCodec),
}
