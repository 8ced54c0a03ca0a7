package arena

import (
	"time"

	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/ecs"
	"github.com/l1jgo/arena/internal/core/timer"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/scripting"
	"github.com/l1jgo/arena/internal/vmath"
	"go.uber.org/zap"
)

// HealingAmount is the health a healing box restores.
const HealingAmount = 20

// Crates runs breakable crates and the power-ups they drop. Host only: it
// reads crate health from the scene.
type Crates struct {
	pools        *Pools
	scene        *Scene
	sched        *timer.Scheduler
	rules        *scripting.Engine
	disableDelay time.Duration
	log          *zap.Logger
}

// NewCrates builds the crate rules. rules may be nil; a broken crate then
// drops a uniformly random power-up.
func NewCrates(pools *Pools, scene *Scene, sched *timer.Scheduler, rules *scripting.Engine, disableDelay time.Duration, log *zap.Logger) *Crates {
	if disableDelay <= 0 {
		disableDelay = time.Second
	}
	return &Crates{
		pools:        pools,
		scene:        scene,
		sched:        sched,
		rules:        rules,
		disableDelay: disableDelay,
		log:          log.Named("crates"),
	}
}

// Damage hits the crate id. The open-buff effect plays on every hit; when
// health reaches zero a power-up drops at the crate and the crate returns to
// its pool after the disable delay. It returns the dropped box, if any.
func (c *Crates) Damage(id ecs.EntityID, amount int) *pool.Handle {
	p, ok := c.scene.Pooled.Get(id)
	if !ok || !p.Active || p.Category != Crate {
		return nil
	}
	hp, ok := c.scene.Healths.Get(id)
	if !ok || hp.Current <= 0 {
		return nil
	}
	hp.Current -= amount
	if hp.Current < 0 {
		hp.Current = 0
	}
	if hp.Current > hp.Max {
		hp.Current = hp.Max
	}

	pose, _ := c.scene.PoseOf(id)
	c.pools.OpenBuff(pose)
	if hp.Current > 0 {
		return nil
	}

	c.log.Debug("crate broken", zap.Uint64("id", uint64(id)))
	c.sched.After(c.disableDelay, func() {
		c.pools.ReleaseArenaObject(Crate, id)
	})
	return c.drop(pose.Position)
}

func (c *Crates) drop(at vmath.Vec3) *pool.Handle {
	choice := PowerUps[0]
	if c.rules != nil {
		names := make([]string, len(PowerUps))
		for i, p := range PowerUps {
			names[i] = string(p)
		}
		choice = pool.Category(c.rules.RollCrateDrop(names))
	}
	pose := component.Pose{Position: at, Rotation: vmath.Euler(90, 0, 0)}
	switch choice {
	case HealingBox:
		return c.pools.HealingBox(pose)
	default:
		return c.pools.DamageBuffBox(pose)
	}
}

// Pickup consumes the power-up box id. A damage buff boosts gun; a healing
// box plays the healing effect and returns the health to restore.
func (c *Crates) Pickup(id ecs.EntityID, gun *Gun) int {
	p, ok := c.scene.Pooled.Get(id)
	if !ok || !p.Active {
		return 0
	}
	pose, _ := c.scene.PoseOf(id)
	heal := 0
	switch p.Category {
	case DamageBuffBox:
		if gun != nil {
			gun.IncreaseDamage(pose)
		}
	case HealingBox:
		c.pools.Healing(pose)
		heal = HealingAmount
	default:
		return 0
	}
	c.pools.ReleaseArenaObject(p.Category, id)
	return heal
}

// Hit resolves a projectile hitting an arena object or nothing: the got-shot
// effect plays at the projectile, crates take its damage, and the projectile
// returns to its pool.
func (c *Crates) Hit(projectile ecs.EntityID, target ecs.EntityID) {
	p, ok := c.scene.Pooled.Get(projectile)
	if !ok || !p.Active || p.Kind != pool.KindProjectile {
		return
	}
	pose, _ := c.scene.PoseOf(projectile)
	damage := 0
	if shot, ok := c.scene.Shots.Get(projectile); ok {
		damage = shot.Damage
	}
	c.pools.GotShot(pose)
	if !target.IsZero() {
		c.Damage(target, damage)
	}
	c.pools.ReleaseProjectile(p.Category, projectile)
}
