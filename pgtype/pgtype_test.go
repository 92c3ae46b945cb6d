package pgtype_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/pgwire/pgtype"
)

func roundTrip(t *testing.T, oid uint32, value any) any {
	t.Helper()
	reg := pgtype.NewRegistry()
	buf, err := reg.EncodeValue(oid, value, nil)
	require.NoError(t, err)
	got, err := reg.DecodeValue(oid, buf)
	require.NoError(t, err)
	return got
}

func TestScalarRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		oid   uint32
		value any
	}{
		{"bool true", pgtype.OIDBool, true},
		{"int2", pgtype.OIDInt2, int16(-1234)},
		{"int4", pgtype.OIDInt4, int32(123456789)},
		{"int8", pgtype.OIDInt8, int64(-9223372036854775800)},
		{"float4", pgtype.OIDFloat4, float64(3.5)},
		{"float8", pgtype.OIDFloat8, float64(-2.718281828)},
		{"text", pgtype.OIDText, "hello, world"},
		{"bytea", pgtype.OIDBytea, []byte{0x00, 0x01, 0xff}},
		{"uuid", pgtype.OIDUUID, uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got := roundTrip(t, c.oid, c.value)
			assert.Equal(t, c.value, got)
		})
	}
}

func TestNumericRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []string{"0", "1", "-1", "123.456", "-0.001", "1000000", "0.1", "99999999999999999999.99999"}
	for _, s := range cases {
		s := s
		t.Run(s, func(t *testing.T) {
			t.Parallel()
			want, err := decimal.NewFromString(s)
			require.NoError(t, err)

			got := roundTrip(t, pgtype.OIDNumeric, want)
			gotDec, ok := got.(decimal.Decimal)
			require.True(t, ok)
			assert.True(t, want.Equal(gotDec), "want %s, got %s", want, gotDec)
		})
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	got := roundTrip(t, pgtype.OIDTimestamp, want)
	gotTime, ok := got.(time.Time)
	require.True(t, ok)
	assert.True(t, want.Equal(gotTime))
}

func TestInetRoundTrip(t *testing.T) {
	t.Parallel()

	want := netip.MustParsePrefix("192.168.1.0/24")
	got := roundTrip(t, pgtype.OIDInet, want)
	assert.Equal(t, want, got)
}

func TestArrayRoundTrip(t *testing.T) {
	t.Parallel()

	reg := pgtype.NewRegistry()
	arr := pgtype.Array{
		Dims:   []pgtype.ArrayDim{{Length: 3, LowerBound: 1}},
		Values: []any{int32(1), nil, int32(3)},
	}
	buf, err := reg.EncodeValue(pgtype.OIDInt4Array, arr, nil)
	require.NoError(t, err)

	got, err := reg.DecodeValue(pgtype.OIDInt4Array, buf)
	require.NoError(t, err)
	gotArr, ok := got.(pgtype.Array)
	require.True(t, ok)
	assert.Equal(t, arr.Dims, gotArr.Dims)
	assert.Equal(t, arr.Values, gotArr.Values)
}

func TestRegistryOverride(t *testing.T) {
	t.Parallel()

	reg := pgtype.NewRegistry()
	_, ok := reg.Lookup(999999)
	assert.False(t, ok)

	custom := &stubCodec{oid: 999999, name: "custom"}
	reg.SetOverride(999999, custom)
	got, ok := reg.Lookup(999999)
	require.True(t, ok)
	assert.Equal(t, custom, got)
}

func TestRegistryClone(t *testing.T) {
	t.Parallel()

	base := pgtype.NewRegistry()
	clone := base.Clone()

	custom := &stubCodec{oid: 777, name: "cloned_only"}
	clone.Register(custom)

	_, ok := base.Lookup(777)
	assert.False(t, ok, "registering on a clone must not mutate the source registry")

	_, ok = clone.Lookup(777)
	assert.True(t, ok)
}

type stubCodec struct {
	oid  uint32
	name string
}

func (s *stubCodec) OID() uint32                            { return s.oid }
func (s *stubCodec) Name() string                           { return s.name }
func (s *stubCodec) HasBinaryFormat() bool                  { return true }
func (s *stubCodec) Encode(v any, dst []byte) ([]byte, error) { return dst, nil }
func (s *stubCodec) Decode(src []byte) (any, error)           { return nil, nil }
