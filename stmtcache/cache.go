// Package stmtcache implements the prepared-statement cache (C5): a
// bounded, LRU-evicting map from SQL text to a server-side prepared
// statement name, so that executing the same query text repeatedly
// reuses one Parse instead of re-parsing every time.
//
// No third-party LRU library appears anywhere in the retrieved example
// corpus; container/list, used here the same way ha1tch-aulsql's
// runtime packages use it for their own eviction/ordering structures, is
// the idiomatic stdlib building block for this and is used directly
// rather than reimplementing list ordering by hand.
package stmtcache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of distinct statements kept prepared per
// connection before the least-recently-used one is evicted.
const DefaultCapacity = 100

// Statement is one cached prepared statement: its server-assigned name,
// the column/parameter shape the server reported when it was first
// prepared, and a use counter that blocks eviction while a portal
// derived from it is still open.
type Statement struct {
	Name       string
	SQL        string
	ParamOIDs  []uint32
	FieldCount int
	inUse      int
}

// Cache is a per-connection LRU keyed by SQL text. It is not safe for
// concurrent use from multiple goroutines issuing queries on the same
// connection simultaneously — nothing is, since a connection is single
// request in flight at a time (§5) — but internal state is
// mutex-guarded all the same.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element // SQL text -> list element
	order    *list.List               // front = most recently used
	seq      uint64
}

type cacheEntry struct {
	sql  string
	stmt *Statement
}

// New returns a Cache with the given capacity. A non-positive capacity
// is replaced with DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// NextName allocates a unique server-side prepared statement name. It
// combines a monotonic per-cache counter with random entropy so that
// names stay unique even across reconnects that might otherwise race a
// stale server-side name still being torn down.
func (c *Cache) NextName() string {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()
	return fmt.Sprintf("pgwire_%d_%s", seq, uuid.NewString()[:8])
}

// Get returns the cached Statement for sql, moving it to the front of
// the LRU order and marking it in use. The caller must call Release when
// the resulting portal is done referencing it.
func (c *Cache) Get(sql string) (*Statement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[sql]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	entry := el.Value.(*cacheEntry)
	entry.stmt.inUse++
	return entry.stmt, true
}

// Release decrements a statement's in-use count, allowing it to be
// evicted again once it reaches zero.
func (c *Cache) Release(stmt *Statement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stmt.inUse > 0 {
		stmt.inUse--
	}
}

// Put inserts a newly prepared statement, evicting the least-recently-
// used entry if the cache is at capacity. It returns the statement name
// that should be sent to the server to fully close and deallocate, or
// "" if nothing needs to be evicted.
func (c *Cache) Put(stmt *Statement) (evictedName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[stmt.SQL]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).stmt = stmt
		return ""
	}

	el := c.order.PushFront(&cacheEntry{sql: stmt.SQL, stmt: stmt})
	c.entries[stmt.SQL] = el

	if c.order.Len() <= c.capacity {
		return ""
	}
	return c.evictOldestLocked()
}

// evictOldestLocked evicts the least-recently-used entry not currently
// in use, walking backward from the LRU end until it finds one. The
// front entry (the one Put just inserted) is never a candidate. It
// returns the evicted statement's server-side name, or "" if every other
// entry is pinned by an open portal (the cache is then allowed to
// temporarily exceed capacity rather than evict something still
// referenced).
func (c *Cache) evictOldestLocked() string {
	for el := c.order.Back(); el != nil && el != c.order.Front(); el = el.Prev() {
		entry := el.Value.(*cacheEntry)
		if entry.stmt.inUse > 0 {
			continue
		}
		c.order.Remove(el)
		delete(c.entries, entry.sql)
		return entry.stmt.Name
	}
	return ""
}

// Invalidate drops sql from the cache unconditionally, used when a
// cached statement's reported row shape no longer matches what the
// server sends back (the schema changed under it) so the next Get
// forces a fresh Parse.
func (c *Cache) Invalidate(sql string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[sql]
	if !ok {
		return
	}
	c.order.Remove(el)
	delete(c.entries, sql)
}

// Len reports the number of statements currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes every cached entry, returning their server-side names so
// the caller can send a Close message for each before discarding the
// connection (or after a protocol error forces a full resync).
func (c *Cache) Clear() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		names = append(names, el.Value.(*cacheEntry).stmt.Name)
	}
	c.entries = make(map[string]*list.Element)
	c.order = list.New()
	return names
}
