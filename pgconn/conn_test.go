package pgconn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandTagRowsAffected(t *testing.T) {
	t.Parallel()

	cases := []struct {
		tag  CommandTag
		want int64
	}{
		{"INSERT 0 1", 1},
		{"UPDATE 42", 42},
		{"DELETE 0", 0},
		{"BEGIN", 0},
		{"CREATE TABLE", 0},
		{"SELECT 7", 7},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.tag.RowsAffected(), "tag %q", tc.tag)
	}
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"sp1"`, quoteIdent("sp1"))
	assert.Equal(t, `"weird""name"`, quoteIdent(`weird"name`))
}

func TestInferOID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(16), inferOID(true))
	assert.Equal(t, uint32(23), inferOID(int32(1)))
	assert.Equal(t, uint32(20), inferOID(int64(1)))
	assert.Equal(t, uint32(25), inferOID("hello"))
	assert.Equal(t, uint32(17), inferOID([]byte("x")))
}

func TestBusyGuardRejectsConcurrentUse(t *testing.T) {
	t.Parallel()

	c := &Conn{}
	a := assert.New(t)
	a.NoError(c.acquireBusy())
	a.Error(c.acquireBusy())
	c.releaseBusy()
	a.NoError(c.acquireBusy())
}
