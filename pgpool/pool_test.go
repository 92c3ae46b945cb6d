package pgpool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mickamy/pgwire/pgdsn"
)

func TestSelectHostSingleHostAlwaysMatches(t *testing.T) {
	t.Parallel()

	cfg := Config{Hosts: []pgdsn.Host{{Host: "db1", Port: 5432}}, SessionAttrs: pgdsn.SessionAttrsPrimary}
	h, err := selectHost(t.Context(), cfg)
	assert.NoError(t, err)
	assert.Equal(t, "db1", h.Host)
}

func TestSelectHostAnyReturnsFirst(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Hosts: []pgdsn.Host{
			{Host: "db1", Port: 5432},
			{Host: "db2", Port: 5432},
		},
		SessionAttrs: pgdsn.SessionAttrsAny,
	}
	h, err := selectHost(t.Context(), cfg)
	assert.NoError(t, err)
	assert.Equal(t, "db1", h.Host)
}

func TestPoolMetricsCollectorsNonEmpty(t *testing.T) {
	t.Parallel()

	m := newPoolMetrics()
	assert.Len(t, m.collectors(), 5)
}
