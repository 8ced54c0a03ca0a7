package system

import (
	"time"

	"github.com/l1jgo/arena/internal/arena"
	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/ecs"
	coresys "github.com/l1jgo/arena/internal/core/system"
	"github.com/l1jgo/arena/internal/pool"
)

// CollisionSystem resolves active projectiles that reached an active crate.
// Host only. Phase 3 (PostUpdate), after movement.
type CollisionSystem struct {
	scene  *arena.Scene
	crates *arena.Crates
	radius float32

	hits []hit
}

type hit struct {
	projectile ecs.EntityID
	target     ecs.EntityID
}

// NewCollisionSystem builds the hit check. radius is the distance at which a
// projectile counts as touching a crate (default 1).
func NewCollisionSystem(scene *arena.Scene, crates *arena.Crates, radius float32) *CollisionSystem {
	if radius <= 0 {
		radius = 1
	}
	return &CollisionSystem{scene: scene, crates: crates, radius: radius}
}

func (s *CollisionSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *CollisionSystem) Update(_ time.Duration) {
	var targets []ecs.EntityID
	ecs.Each2(s.scene.Pooled, s.scene.Healths, func(id ecs.EntityID, p *component.Pooled, hp *component.Health) {
		if p.Active && hp.Current > 0 {
			targets = append(targets, id)
		}
	})
	if len(targets) == 0 {
		return
	}

	s.hits = s.hits[:0]
	ecs.Each2(s.scene.Pooled, s.scene.Poses, func(id ecs.EntityID, p *component.Pooled, pose *component.Pose) {
		if !p.Active || p.Kind != pool.KindProjectile {
			return
		}
		for _, t := range targets {
			tp, ok := s.scene.PoseOf(t)
			if ok && pose.Position.Sub(tp.Position).Len() <= s.radius {
				s.hits = append(s.hits, hit{projectile: id, target: t})
				return
			}
		}
	})
	for _, h := range s.hits {
		s.crates.Hit(h.projectile, h.target)
	}
}
