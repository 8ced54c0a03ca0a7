package arena

import (
	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/replication"
)

// RocketLauncher fires rockets and turns impacts into explosions.
type RocketLauncher struct {
	pools  *Pools
	owner  string
	peer   uint32
	damage int
}

func NewRocketLauncher(pools *Pools, owner string, peer uint32, damage int) *RocketLauncher {
	if damage <= 0 {
		damage = 100
	}
	return &RocketLauncher{pools: pools, owner: owner, peer: peer, damage: damage}
}

// Fire launches a rocket from pose with the rocket muzzle effect.
func (l *RocketLauncher) Fire(pose component.Pose) *pool.Handle {
	h := l.pools.Rocket(pose, replication.Config{
		Shooter:      l.owner,
		ShooterPeer:  l.peer,
		ShotByPlayer: true,
		Damage:       l.damage,
	})
	l.pools.RocketMuzzle(pose)
	return h
}

// Explode plays the rocket explosion at impact and returns the rocket.
func (l *RocketLauncher) Explode(rocket *pool.Handle, impact component.Pose) *pool.Handle {
	fx := l.pools.ImpactEffect(RocketExplosion, impact)
	l.pools.Release(rocket)
	return fx
}
