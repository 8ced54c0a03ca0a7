package match

import (
	gonet "net"
	"testing"
	"time"

	"github.com/l1jgo/arena/internal/arena"
	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/config"
	"github.com/l1jgo/arena/internal/core/ecs"
	"github.com/l1jgo/arena/internal/data"
	"github.com/l1jgo/arena/internal/net"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/replication"
	"github.com/l1jgo/arena/internal/vmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const step = 50 * time.Millisecond

func testAssets() Assets {
	return Assets{
		Pools: data.NewPoolTable(map[pool.Kind][]data.PoolEntry{
			pool.KindProjectile: {
				{Category: arena.Bullet, Size: 2, Speed: 1, Lifetime: 10 * time.Minute, Damage: 10},
			},
			pool.KindArena: {
				{Category: arena.Crate, Size: 2},
				{Category: arena.DamageBuffBox, Size: 1},
				{Category: arena.HealingBox, Size: 1},
			},
			pool.KindEffect: {
				{Category: arena.BaseMuzzle, Size: 2, Lifetime: 10 * time.Minute},
				{Category: arena.OpenBuff, Size: 1, Lifetime: time.Second},
				{Category: arena.GotShot, Size: 1, Lifetime: time.Second},
			},
		}),
		SpawnPoints: []vmath.Vec3{{X: 10}, {X: -10}},
	}
}

type pair struct {
	host *Host
	peer *Peer
}

func newPair(t *testing.T) *pair {
	t.Helper()
	log := zap.NewNop()
	cfg := config.Default()
	cfg.Session.Nickname = "bob"

	host, err := NewHost(cfg, testAssets(), nil, log)
	require.NoError(t, err)

	a, b := gonet.Pipe()
	host.Attach(a)
	sess := net.NewSession(b, 0, net.SessionOptions{}, log)
	sess.Start()
	peer := NewPeer(cfg, sess, testAssets(), nil, log)
	t.Cleanup(func() {
		peer.Close()
		host.Shutdown()
	})

	peer.Join()
	p := &pair{host: host, peer: peer}
	p.until(t, func() bool { return peer.Joined() && host.Peers() == 1 })
	return p
}

func (p *pair) tick() {
	p.host.Tick(step)
	p.peer.Tick(step)
}

func (p *pair) until(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		p.tick()
		return cond()
	}, 2*time.Second, time.Millisecond)
}

func (p *pair) converged() bool {
	if p.peer.Mirror.Len() != p.host.Mirror.Len() {
		return false
	}
	ok := true
	p.host.Mirror.Each(func(e replication.Entry) {
		got, found := p.peer.Mirror.Get(e.ID)
		if !found || got.Active != e.Active || got.Category != e.Category {
			ok = false
		}
	})
	return ok
}

func inUse(t *testing.T, h *Host, kind pool.Kind, cat pool.Category) int {
	t.Helper()
	r, ok := h.Exec.Registry(kind)
	require.True(t, ok)
	st, ok := r.Stats(cat)
	require.True(t, ok)
	return st.InUse
}

func TestJoinReceivesWelcomeAndSnapshot(t *testing.T) {
	p := newPair(t)
	assert.NotEmpty(t, p.host.MatchID)
	p.until(t, func() bool { return p.peer.MatchID != "" })
	assert.Equal(t, p.host.MatchID, p.peer.MatchID)
	assert.NotZero(t, p.peer.PeerID)

	// Crates spawn on the host's first tick and reach the peer.
	p.until(t, p.converged)
	assert.Equal(t, 2, inUse(t, p.host, pool.KindArena, arena.Crate))
	crates := 0
	for _, e := range p.peer.Mirror.Active() {
		if e.Category == arena.Crate {
			crates++
		}
	}
	assert.Equal(t, 2, crates)
}

func TestPeerAllocateConvergesOnBroadcast(t *testing.T) {
	p := newPair(t)
	p.until(t, p.converged)
	before := inUse(t, p.host, pool.KindProjectile, arena.Bullet)

	pose := component.Pose{Position: vmath.Vec3{X: 1, Y: 2, Z: 3}, Rotation: vmath.Identity}
	h := p.peer.Pools.Bullet(pose, replication.Config{Shooter: "bob", ShotByPlayer: true, Damage: 10})
	assert.Nil(t, h)

	var bullet ecs.EntityID
	p.until(t, func() bool {
		for _, e := range p.peer.Mirror.Active() {
			if e.Category == arena.Bullet {
				bullet = e.ID
				return true
			}
		}
		return false
	})
	assert.Equal(t, before+1, inUse(t, p.host, pool.KindProjectile, arena.Bullet))

	e, ok := p.peer.Mirror.Get(bullet)
	require.True(t, ok)
	assert.Equal(t, pose.Position, e.Pose.Position)

	shot, ok := p.host.Scene.Shots.Get(bullet)
	require.True(t, ok)
	assert.Equal(t, "bob", shot.Shooter)
	assert.Equal(t, p.peer.PeerID, shot.ShooterPeer)

	p.peer.Pools.ReleaseProjectile(arena.Bullet, bullet)
	p.until(t, func() bool {
		e, _ := p.peer.Mirror.Get(bullet)
		return !e.Active
	})
	assert.Equal(t, before, inUse(t, p.host, pool.KindProjectile, arena.Bullet))
	p.until(t, p.converged)
}

func TestHostGrowthReachesPeer(t *testing.T) {
	p := newPair(t)
	p.until(t, p.converged)

	// Three bullets from a pool of two: the third is constructed lazily and
	// must be announced before it is activated.
	for i := 0; i < 3; i++ {
		require.NotNil(t, p.host.Pools.Bullet(component.Pose{Rotation: vmath.Identity}, replication.Config{Damage: 1}))
	}
	p.until(t, p.converged)
	assert.Equal(t, 3, inUse(t, p.host, pool.KindProjectile, arena.Bullet))
}

func TestPeerShadowRefusesMutation(t *testing.T) {
	p := newPair(t)
	_, err := p.peer.Shadow(pool.KindProjectile).Allocate(arena.Bullet)
	assert.ErrorIs(t, err, pool.ErrNotAuthoritative)
	assert.False(t, p.peer.Pools.Authoritative())
	assert.True(t, p.host.Pools.Authoritative())
}

func TestPeerLeaveIsNoticed(t *testing.T) {
	p := newPair(t)
	p.peer.Close()
	p.until(t, func() bool { return p.host.Peers() == 0 && p.peer.Closed() })
}

func TestHostKeepsOwnedInstanceOnMislabelledRelease(t *testing.T) {
	host, err := NewHost(config.Default(), testAssets(), nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(host.Shutdown)
	ahead := component.Pose{Rotation: vmath.Identity}

	h := host.Pools.Bullet(ahead, replication.Config{Damage: 1})
	require.NotNil(t, h)
	host.Pools.ReleaseProjectile("ghost", h.ID)
	host.Tick(step)
	assert.True(t, host.Scene.World.Alive(h.ID))
	assert.True(t, h.InUse())

	host.Pools.ReleaseProjectile(arena.Bullet, h.ID)
	assert.False(t, h.InUse())

	// An entity destroyed behind the pool's back leaves it for good.
	host.Scene.Destroy(h.ID)
	host.Tick(step)
	_, ok := host.Mirror.Get(h.ID)
	assert.False(t, ok)
	r, _ := host.Exec.Registry(pool.KindProjectile)
	_, ok = r.Lookup(h.ID)
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		got := host.Pools.Bullet(ahead, replication.Config{Damage: 1})
		require.NotNil(t, got)
		assert.NotEqual(t, h.ID, got.ID)
		assert.True(t, host.Scene.World.Alive(got.ID))
	}
}
