package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedup(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   []uint32
		want []uint32
	}{
		{"empty", nil, []uint32{}},
		{"no dupes", []uint32{1, 2, 3}, []uint32{1, 2, 3}},
		{"dupes collapse, order preserved", []uint32{5, 1, 5, 2, 1}, []uint32{5, 1, 2}},
		{"zero filtered", []uint32{0, 3, 0, 4}, []uint32{3, 4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, dedup(tc.in))
		})
	}
}

func TestOidArray(t *testing.T) {
	t.Parallel()

	a := oidArray([]uint32{26, 1007})
	assert.Equal(t, 1, len(a.Dims))
	assert.Equal(t, int32(2), a.Dims[0].Length)
	assert.Equal(t, int32(1), a.Dims[0].LowerBound)
	assert.Equal(t, []any{uint32(26), uint32(1007)}, a.Values)
}

func TestAsChar(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte('c'), asChar(byte('c')))
	assert.Equal(t, byte('e'), asChar("e"))
	assert.Equal(t, byte(0), asChar(nil))
	assert.Equal(t, byte(0), asChar(""))
}
