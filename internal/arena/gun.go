package arena

import (
	"time"

	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/timer"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/replication"
	"github.com/l1jgo/arena/internal/scripting"
)

// GunOptions configures a Gun.
type GunOptions struct {
	Owner           string
	OwnerPeer       uint32
	ShotByPlayer    bool
	Damage          int
	BoostMultiplier float64       // default 2
	BoostDuration   time.Duration // default 5s
}

// Gun fires one bullet per fire point and can be temporarily boosted.
type Gun struct {
	pools *Pools
	sched *timer.Scheduler
	rules *scripting.Engine
	opts  GunOptions

	multiplier float64
	revert     timer.TaskID
}

// NewGun builds a gun. rules may be nil.
func NewGun(pools *Pools, sched *timer.Scheduler, rules *scripting.Engine, opts GunOptions) *Gun {
	if opts.BoostMultiplier <= 0 {
		opts.BoostMultiplier = 2
	}
	if opts.BoostDuration <= 0 {
		opts.BoostDuration = 5 * time.Second
	}
	return &Gun{pools: pools, sched: sched, rules: rules, opts: opts, multiplier: 1}
}

// Damage is the damage the next bullet carries.
func (g *Gun) Damage() int {
	if g.rules != nil {
		return g.rules.CalcProjectileDamage(scripting.DamageContext{
			Category:     string(Bullet),
			Base:         g.opts.Damage,
			Multiplier:   g.multiplier,
			ShotByPlayer: g.opts.ShotByPlayer,
		})
	}
	return int(float64(g.opts.Damage) * g.multiplier)
}

// Boosted reports whether a damage boost is running.
func (g *Gun) Boosted() bool { return g.multiplier != 1 }

// Fire shoots a bullet from every fire point and plays the muzzle effect.
// On a joined peer the returned slice is empty.
func (g *Gun) Fire(firePoints []component.Pose, muzzle component.Pose) []*pool.Handle {
	cfg := replication.Config{
		Shooter:      g.opts.Owner,
		ShooterPeer:  g.opts.OwnerPeer,
		ShotByPlayer: g.opts.ShotByPlayer,
		Damage:       g.Damage(),
	}
	var out []*pool.Handle
	for _, fp := range firePoints {
		if h := g.pools.Bullet(fp, cfg); h != nil {
			out = append(out, h)
		}
	}
	g.pools.BaseMuzzle(muzzle)
	return out
}

// IncreaseDamage applies the boost multiplier, shows the damage-increase
// effect at pose and reverts after the boost duration. A second boost while
// one is running restarts the timer without stacking.
func (g *Gun) IncreaseDamage(pose component.Pose) {
	g.pools.DamageIncrease(pose)
	if g.revert != 0 {
		g.sched.Cancel(g.revert)
	}
	g.multiplier = g.opts.BoostMultiplier
	g.revert = g.sched.After(g.opts.BoostDuration, g.DecreaseDamage)
}

// DecreaseDamage ends a running boost.
func (g *Gun) DecreaseDamage() {
	if g.revert != 0 {
		g.sched.Cancel(g.revert)
		g.revert = 0
	}
	g.multiplier = 1
}
