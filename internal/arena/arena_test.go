package arena

import (
	"testing"
	"time"

	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/event"
	"github.com/l1jgo/arena/internal/core/timer"
	"github.com/l1jgo/arena/internal/data"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/replication"
	"github.com/l1jgo/arena/internal/vmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testTable() *data.PoolTable {
	return data.NewPoolTable(map[pool.Kind][]data.PoolEntry{
		pool.KindProjectile: {
			{Category: Bullet, Size: 10, Speed: 20, Lifetime: 3 * time.Second, Damage: 10},
			{Category: Rocket, Size: 5, Speed: 12, Lifetime: 3 * time.Second, Damage: 100},
		},
		pool.KindArena: {
			{Category: Crate, Size: 3},
			{Category: DamageBuffBox, Size: 3},
			{Category: HealingBox, Size: 3},
		},
		pool.KindEffect: {
			{Category: RocketExplosion, Size: 3, Lifetime: 2 * time.Second},
			{Category: BaseMuzzle, Size: 3, Lifetime: 2 * time.Second},
			{Category: RocketMuzzle, Size: 3, Lifetime: 2 * time.Second},
			{Category: DamageIncrease, Size: 3, Lifetime: 2 * time.Second},
			{Category: Healing, Size: 3, Lifetime: 2 * time.Second},
			{Category: OpenBuff, Size: 3, Lifetime: 2 * time.Second},
			{Category: GotShot, Size: 3, Lifetime: 2 * time.Second},
		},
	})
}

type hostFixture struct {
	scene  *Scene
	exec   *replication.LocalExecutor
	mirror *replication.Mirror
	pools  *Pools
	sched  *timer.Scheduler
	bus    *event.Bus
}

func newHostFixture(t *testing.T, opts SceneOptions) *hostFixture {
	t.Helper()
	log := zap.NewNop()
	table := testTable()
	scene := NewScene(table, nil, opts, log)
	mirror := replication.NewMirror(log)
	exec := replication.NewLocalExecutor(NewRegistries(table, scene, log), scene,
		replication.NewFanout(mirror, nil, nil), scene.Destroy, log)
	_, err := exec.Warm()
	require.NoError(t, err)
	return &hostFixture{
		scene:  scene,
		exec:   exec,
		mirror: mirror,
		pools:  NewPools(exec, log),
		sched:  timer.NewScheduler(),
		bus:    event.NewBus(),
	}
}

func (f *hostFixture) activeIn(cat pool.Category) int {
	n := 0
	for _, e := range f.mirror.Active() {
		if e.Category == cat {
			n++
		}
	}
	return n
}

func at(x, y, z float32) component.Pose {
	return component.Pose{Position: vmath.Vec3{X: x, Y: y, Z: z}, Rotation: vmath.Identity}
}

func TestBulletGetterConfiguresShot(t *testing.T) {
	f := newHostFixture(t, SceneOptions{})
	h := f.pools.Bullet(at(1, 0, 0), replication.Config{Shooter: "alice", ShotByPlayer: true, Damage: 15})
	require.NotNil(t, h)
	assert.True(t, h.InUse())
	assert.True(t, f.scene.Active(h.ID))

	shot, ok := f.scene.Shots.Get(h.ID)
	require.True(t, ok)
	assert.Equal(t, component.Shot{Shooter: "alice", ShotByPlayer: true, Damage: 15}, *shot)
	lt, _ := f.scene.Lifetimes.Get(h.ID)
	assert.Equal(t, 3*time.Second, lt.Remaining)

	f.pools.Release(h)
	assert.False(t, h.InUse())
	assert.False(t, f.scene.Active(h.ID))
	f.pools.Release(nil)
}

func TestGetterOnMissingCategoryReturnsNil(t *testing.T) {
	f := newHostFixture(t, SceneOptions{})
	assert.Nil(t, f.pools.PoisonBullet(at(0, 0, 0), replication.Config{}))
	assert.Nil(t, f.pools.ImpactEffect(BaseMuzzle, at(0, 0, 0)), "muzzle is not an impact")
	assert.NotNil(t, f.pools.ImpactEffect(RocketExplosion, at(0, 0, 0)))
}

func TestSceneFullFailsConstruction(t *testing.T) {
	f := newHostFixture(t, SceneOptions{})
	f.scene.opts.MaxEntities = f.scene.World.Pool().Live()
	for i := 0; i < 3; i++ {
		require.NotNil(t, f.pools.Crate(at(0, 0, 0)))
	}
	assert.Nil(t, f.pools.Crate(at(0, 0, 0)), "growth is refused once the scene is full")
}

func TestGunFiresPerFirePointAndBoosts(t *testing.T) {
	f := newHostFixture(t, SceneOptions{})
	g := NewGun(f.pools, f.sched, nil, GunOptions{Owner: "alice", OwnerPeer: 1, ShotByPlayer: true, Damage: 10})

	bullets := g.Fire([]component.Pose{at(0, 0, 0), at(1, 0, 0)}, at(0, 1, 0))
	require.Len(t, bullets, 2)
	assert.Equal(t, 2, f.activeIn(Bullet))
	assert.Equal(t, 1, f.activeIn(BaseMuzzle))
	shot, _ := f.scene.Shots.Get(bullets[0].ID)
	assert.Equal(t, 10, shot.Damage)
	assert.Equal(t, uint32(1), shot.ShooterPeer)

	g.IncreaseDamage(at(0, 0, 0))
	assert.True(t, g.Boosted())
	assert.Equal(t, 20, g.Damage())
	assert.Equal(t, 1, f.activeIn(DamageIncrease))

	f.sched.Advance(3 * time.Second)
	g.IncreaseDamage(at(0, 0, 0)) // restarts, does not stack
	assert.Equal(t, 20, g.Damage())
	f.sched.Advance(3 * time.Second)
	assert.True(t, g.Boosted())
	f.sched.Advance(2 * time.Second)
	assert.False(t, g.Boosted())
	assert.Equal(t, 10, g.Damage())
}

func TestRocketLauncherExplodes(t *testing.T) {
	f := newHostFixture(t, SceneOptions{})
	l := NewRocketLauncher(f.pools, "bob", 2, 0)
	r := l.Fire(at(0, 0, 0))
	require.NotNil(t, r)
	shot, _ := f.scene.Shots.Get(r.ID)
	assert.Equal(t, 100, shot.Damage)
	assert.Equal(t, 1, f.activeIn(RocketMuzzle))

	fx := l.Explode(r, at(0, 0, 5))
	require.NotNil(t, fx)
	assert.False(t, r.InUse())
	assert.Equal(t, 1, f.activeIn(RocketExplosion))
	e, _ := f.mirror.Get(fx.ID)
	assert.Equal(t, at(0, 0, 5), e.Pose)
}

func TestCrateLifecycle(t *testing.T) {
	f := newHostFixture(t, SceneOptions{CrateHealth: 100})
	spawner := NewCrateSpawner(f.pools, []vmath.Vec3{{X: 0, Y: 0.5, Z: 5}, {X: 4, Y: 0.5, Z: 0}}, f.bus, zap.NewNop())
	require.NotNil(t, spawner)

	event.Emit(f.bus, event.PoolsReady{Kinds: pool.Kinds})
	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	require.Equal(t, 2, f.activeIn(Crate))

	var crate replication.Entry
	for _, e := range f.mirror.Active() {
		if e.Category == Crate {
			crate = e
			break
		}
	}
	assert.Equal(t, vmath.Euler(90, 0, 0), crate.Pose.Rotation)

	crates := NewCrates(f.pools, f.scene, f.sched, nil, time.Second, zap.NewNop())
	assert.Nil(t, crates.Damage(crate.ID, 60))
	assert.Equal(t, 1, f.activeIn(OpenBuff))

	box := crates.Damage(crate.ID, 60)
	require.NotNil(t, box)
	assert.Equal(t, DamageBuffBox, box.Category)
	boxPose, _ := f.scene.PoseOf(box.ID)
	assert.Equal(t, crate.Pose.Position, boxPose.Position)
	assert.Nil(t, crates.Damage(crate.ID, 10), "a broken crate takes no more damage")

	assert.True(t, f.scene.Active(crate.ID))
	f.sched.Advance(time.Second)
	assert.False(t, f.scene.Active(crate.ID))

	g := NewGun(f.pools, f.sched, nil, GunOptions{Damage: 10})
	assert.Zero(t, crates.Pickup(box.ID, g))
	assert.True(t, g.Boosted())
	assert.False(t, box.InUse())

	healing := f.pools.HealingBox(at(0, 0, 0))
	require.NotNil(t, healing)
	assert.Equal(t, HealingAmount, crates.Pickup(healing.ID, g))
	assert.Equal(t, 1, f.activeIn(Healing))
}

func TestProjectileHitDamagesCrate(t *testing.T) {
	f := newHostFixture(t, SceneOptions{CrateHealth: 100})
	crates := NewCrates(f.pools, f.scene, f.sched, nil, 0, zap.NewNop())
	crate := f.pools.Crate(at(0, 0, 5))
	rocket := f.pools.Rocket(at(0, 0, 0), replication.Config{Damage: 100})
	require.NotNil(t, crate)
	require.NotNil(t, rocket)

	crates.Hit(rocket.ID, crate.ID)
	assert.False(t, rocket.InUse())
	assert.Equal(t, 1, f.activeIn(GotShot))
	hp, _ := f.scene.Healths.Get(crate.ID)
	assert.Zero(t, hp.Current)
	assert.Equal(t, 1, f.activeIn(DamageBuffBox))
}

type sinkFunc func([]byte)

func (f sinkFunc) Send(b []byte) { f(b) }

func TestRemotePoolsForward(t *testing.T) {
	var sent int
	exec := replication.NewRemoteExecutor(sinkFunc(func([]byte) { sent++ }), nil, zap.NewNop())
	p := NewPools(exec, zap.NewNop())
	assert.False(t, p.Authoritative())

	g := NewGun(p, timer.NewScheduler(), nil, GunOptions{Damage: 10})
	assert.Empty(t, g.Fire([]component.Pose{at(0, 0, 0), at(1, 0, 0)}, at(0, 0, 0)))
	assert.Equal(t, 3, sent, "two bullets and a muzzle effect")

	s := NewCrateSpawner(p, []vmath.Vec3{{}}, event.NewBus(), zap.NewNop())
	assert.Zero(t, s.SpawnCrates())
	assert.Equal(t, 4, sent)
}
