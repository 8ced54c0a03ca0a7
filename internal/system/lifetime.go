package system

import (
	"time"

	"github.com/l1jgo/arena/internal/arena"
	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/ecs"
	coresys "github.com/l1jgo/arena/internal/core/system"
	"github.com/l1jgo/arena/internal/pool"
)

// LifetimeSystem moves active projectiles forward and returns every active
// instance whose lifetime ran out to its pool. Host only. Phase 2 (Update).
type LifetimeSystem struct {
	scene   *arena.Scene
	pools   *arena.Pools
	expired []expired
}

type expired struct {
	id   ecs.EntityID
	kind pool.Kind
	cat  pool.Category
}

func NewLifetimeSystem(scene *arena.Scene, pools *arena.Pools) *LifetimeSystem {
	return &LifetimeSystem{scene: scene, pools: pools}
}

func (s *LifetimeSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *LifetimeSystem) Update(dt time.Duration) {
	secs := float32(dt.Seconds())
	ecs.Each2(s.scene.Poses, s.scene.Motions, func(id ecs.EntityID, pose *component.Pose, m *component.Motion) {
		if !s.scene.Active(id) {
			return
		}
		pose.Position = pose.Position.Add(pose.Rotation.Forward().Scale(m.Speed * secs))
	})

	s.expired = s.expired[:0]
	ecs.Each2(s.scene.Pooled, s.scene.Lifetimes, func(id ecs.EntityID, p *component.Pooled, lt *component.Lifetime) {
		if !p.Active || lt.Remaining <= 0 {
			return
		}
		lt.Remaining -= dt
		if lt.Remaining <= 0 {
			s.expired = append(s.expired, expired{id: id, kind: p.Kind, cat: p.Category})
		}
	})
	// Release outside the iteration: it touches the stores being walked.
	for _, e := range s.expired {
		switch e.kind {
		case pool.KindProjectile:
			s.pools.ReleaseProjectile(e.cat, e.id)
		case pool.KindEffect:
			s.pools.ReleaseEffect(e.cat, e.id)
		default:
			s.pools.ReleaseArenaObject(e.cat, e.id)
		}
	}
}
