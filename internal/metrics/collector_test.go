package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/l1jgo/arena/internal/core/ecs"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectorTracksRegistry(t *testing.T) {
	c := NewCollector(nil)
	ids := ecs.NewEntityPool()
	r := pool.NewRegistry(pool.KindProjectile, []pool.CategorySpec{{Name: "bullet", Size: 2}},
		pool.SpawnerFunc(func(_ pool.Kind, _ pool.Category, adopt pool.AdoptFunc) error {
			adopt(ids.Create())
			return nil
		}), zap.NewNop())
	r.Observe(c)

	_, err := r.Warm()
	require.NoError(t, err)
	h, err := r.Allocate("bullet")
	require.NoError(t, err)
	_, _, err = r.Release("bullet", h.ID)
	require.NoError(t, err)
	_, err = r.Allocate("bullet")
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.constructions.WithLabelValues("projectile", "bullet")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.allocations.WithLabelValues("projectile", "bullet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.releases.WithLabelValues("projectile", "bullet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.handles.WithLabelValues("projectile", "bullet", "in_use")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.handles.WithLabelValues("projectile", "bullet", "available")))
}

func TestCollectorRequestsAndBroadcasts(t *testing.T) {
	c := NewCollector(nil)
	c.RequestForwarded(pool.KindEffect)
	c.RequestDropped(pool.KindEffect)
	c.RequestDropped(pool.KindEffect)
	c.Broadcasted("activate")
	c.SetPeers(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.forwarded.WithLabelValues("effect")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.dropped.WithLabelValues("effect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.broadcasts.WithLabelValues("activate")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.peers))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "arena_broadcasts_total"))
}

func TestNilCollectorIsInert(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Constructed(&pool.Handle{})
		c.Allocated(&pool.Handle{})
		c.Released(&pool.Handle{})
		c.RequestForwarded(pool.KindArena)
		c.RequestDropped(pool.KindArena)
		c.Broadcasted("remove")
		c.SetPeers(1)
	})
}
