package stmtcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/pgwire/stmtcache"
)

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	c := stmtcache.New(2)
	name := c.NextName()
	stmt := &stmtcache.Statement{Name: name, SQL: "select 1"}
	evicted := c.Put(stmt)
	assert.Empty(t, evicted)

	got, ok := c.Get("select 1")
	require.True(t, ok)
	assert.Equal(t, name, got.Name)
	c.Release(got)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := stmtcache.New(2)
	a := &stmtcache.Statement{Name: c.NextName(), SQL: "a"}
	b := &stmtcache.Statement{Name: c.NextName(), SQL: "b"}
	c.Put(a)
	c.Put(b)

	// touch "a" so "b" becomes the LRU entry
	got, ok := c.Get("a")
	require.True(t, ok)
	c.Release(got)

	third := &stmtcache.Statement{Name: c.NextName(), SQL: "c"}
	evicted := c.Put(third)
	assert.Equal(t, b.Name, evicted)

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestEvictionSkipsInUseEntries(t *testing.T) {
	t.Parallel()

	c := stmtcache.New(1)
	a := &stmtcache.Statement{Name: c.NextName(), SQL: "a"}
	c.Put(a)

	held, ok := c.Get("a") // inUse now 1, never released
	require.True(t, ok)

	b := &stmtcache.Statement{Name: c.NextName(), SQL: "b"}
	evicted := c.Put(b)
	assert.Empty(t, evicted, "pinned entry must not be evicted")
	assert.Equal(t, 2, c.Len())

	c.Release(held)
}

func TestInvalidateAndClear(t *testing.T) {
	t.Parallel()

	c := stmtcache.New(stmtcache.DefaultCapacity)
	a := &stmtcache.Statement{Name: c.NextName(), SQL: "a"}
	b := &stmtcache.Statement{Name: c.NextName(), SQL: "b"}
	c.Put(a)
	c.Put(b)

	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	names := c.Clear()
	assert.ElementsMatch(t, []string{b.Name}, names)
	assert.Equal(t, 0, c.Len())
}
