package arena

import (
	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/ecs"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/replication"
	"go.uber.org/zap"
)

// Pools is the typed facade call sites use to get and return pooled
// instances. Every getter goes through the executor, so on a joined peer it
// forwards the request and returns nil: callers skip their local follow-up
// and let the broadcast show the result.
type Pools struct {
	exec replication.Executor
	log  *zap.Logger
}

func NewPools(exec replication.Executor, log *zap.Logger) *Pools {
	return &Pools{exec: exec, log: log.Named("pools")}
}

// Authoritative reports whether getters return handles.
func (p *Pools) Authoritative() bool { return p.exec.Authoritative() }

func (p *Pools) get(kind pool.Kind, cat pool.Category, pose component.Pose, cfg replication.Config) *pool.Handle {
	h, err := p.exec.Allocate(replication.Request{Kind: kind, Category: cat, Pose: pose, Config: cfg})
	if err != nil {
		p.log.Warn("get failed",
			zap.Stringer("kind", kind),
			zap.String("category", string(cat)),
			zap.Error(err),
		)
		return nil
	}
	return h
}

// --- projectiles ---

// Bullet fires a plain bullet; cfg names the shooter and damage.
func (p *Pools) Bullet(pose component.Pose, cfg replication.Config) *pool.Handle {
	return p.get(pool.KindProjectile, Bullet, pose, cfg)
}

func (p *Pools) PoisonBullet(pose component.Pose, cfg replication.Config) *pool.Handle {
	return p.get(pool.KindProjectile, PoisonBullet, pose, cfg)
}

func (p *Pools) FreezeBullet(pose component.Pose, cfg replication.Config) *pool.Handle {
	return p.get(pool.KindProjectile, FreezeBullet, pose, cfg)
}

func (p *Pools) Rocket(pose component.Pose, cfg replication.Config) *pool.Handle {
	return p.get(pool.KindProjectile, Rocket, pose, cfg)
}

// --- effects ---

// ImpactEffect plays one of the explosion effects. Other categories are
// refused.
func (p *Pools) ImpactEffect(cat pool.Category, pose component.Pose) *pool.Handle {
	if !isImpact(cat) {
		p.log.Warn("not an impact effect", zap.String("category", string(cat)))
		return nil
	}
	return p.get(pool.KindEffect, cat, pose, replication.Config{})
}

func (p *Pools) BaseMuzzle(pose component.Pose) *pool.Handle {
	return p.get(pool.KindEffect, BaseMuzzle, pose, replication.Config{})
}

func (p *Pools) RocketMuzzle(pose component.Pose) *pool.Handle {
	return p.get(pool.KindEffect, RocketMuzzle, pose, replication.Config{})
}

func (p *Pools) DamageIncrease(pose component.Pose) *pool.Handle {
	return p.get(pool.KindEffect, DamageIncrease, pose, replication.Config{})
}

func (p *Pools) Healing(pose component.Pose) *pool.Handle {
	return p.get(pool.KindEffect, Healing, pose, replication.Config{})
}

func (p *Pools) OpenBuff(pose component.Pose) *pool.Handle {
	return p.get(pool.KindEffect, OpenBuff, pose, replication.Config{})
}

func (p *Pools) GotShot(pose component.Pose) *pool.Handle {
	return p.get(pool.KindEffect, GotShot, pose, replication.Config{})
}

func (p *Pools) Dead(pose component.Pose) *pool.Handle {
	return p.get(pool.KindEffect, Dead, pose, replication.Config{})
}

// --- arena objects ---

func (p *Pools) Crate(pose component.Pose) *pool.Handle {
	return p.get(pool.KindArena, Crate, pose, replication.Config{})
}

func (p *Pools) DamageBuffBox(pose component.Pose) *pool.Handle {
	return p.get(pool.KindArena, DamageBuffBox, pose, replication.Config{})
}

func (p *Pools) HealingBox(pose component.Pose) *pool.Handle {
	return p.get(pool.KindArena, HealingBox, pose, replication.Config{})
}

// --- release ---

// Release returns h to its pool. A nil handle is ignored.
func (p *Pools) Release(h *pool.Handle) {
	if h == nil {
		return
	}
	p.release(h.Kind, h.Category, h.ID)
}

func (p *Pools) ReleaseProjectile(cat pool.Category, id ecs.EntityID) {
	p.release(pool.KindProjectile, cat, id)
}

func (p *Pools) ReleaseEffect(cat pool.Category, id ecs.EntityID) {
	p.release(pool.KindEffect, cat, id)
}

func (p *Pools) ReleaseArenaObject(cat pool.Category, id ecs.EntityID) {
	p.release(pool.KindArena, cat, id)
}

func (p *Pools) release(kind pool.Kind, cat pool.Category, id ecs.EntityID) {
	if err := p.exec.Release(kind, cat, id); err != nil {
		p.log.Debug("release", zap.Stringer("kind", kind), zap.String("category", string(cat)), zap.Error(err))
	}
}
