package arena

import (
	"errors"

	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/ecs"
	"github.com/l1jgo/arena/internal/data"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/replication"
	"github.com/l1jgo/arena/internal/scripting"
	"github.com/l1jgo/arena/internal/vmath"
	"go.uber.org/zap"
)

// ErrSceneFull is returned by Spawn when the entity cap is reached.
var ErrSceneFull = errors.New("scene entity limit reached")

// SceneOptions tunes the host scene.
type SceneOptions struct {
	MaxEntities int // 0 = unlimited
	CrateHealth int
}

// Scene is the host's ECS world of pooled instances. It constructs the
// backing entity of every pooled handle and applies per-use configuration.
// It implements pool.Spawner and replication.Configurator.
type Scene struct {
	World     *ecs.World
	Pooled    *ecs.PtrComponentStore[component.Pooled]
	Poses     *ecs.PtrComponentStore[component.Pose]
	Motions   *ecs.PtrComponentStore[component.Motion]
	Lifetimes *ecs.PtrComponentStore[component.Lifetime]
	Shots     *ecs.PtrComponentStore[component.Shot]
	Healths   *ecs.PtrComponentStore[component.Health]

	table *data.PoolTable
	rules *scripting.Engine
	opts  SceneOptions
	log   *zap.Logger
}

// NewScene builds an empty scene. rules may be nil.
func NewScene(table *data.PoolTable, rules *scripting.Engine, opts SceneOptions, log *zap.Logger) *Scene {
	if opts.CrateHealth <= 0 {
		opts.CrateHealth = 100
	}
	w := ecs.NewWorld()
	return &Scene{
		World:     w,
		Pooled:    ecs.RegisterStore[component.Pooled](w),
		Poses:     ecs.RegisterStore[component.Pose](w),
		Motions:   ecs.RegisterStore[component.Motion](w),
		Lifetimes: ecs.RegisterStore[component.Lifetime](w),
		Shots:     ecs.RegisterStore[component.Shot](w),
		Healths:   ecs.RegisterStore[component.Health](w),
		table:     table,
		rules:     rules,
		opts:      opts,
		log:       log.Named("scene"),
	}
}

// Spawn implements pool.Spawner.
func (s *Scene) Spawn(kind pool.Kind, cat pool.Category, adopt pool.AdoptFunc) error {
	if s.opts.MaxEntities > 0 && s.World.Pool().Live() >= s.opts.MaxEntities {
		return ErrSceneFull
	}
	id := s.World.CreateEntity()
	s.Pooled.Set(id, &component.Pooled{Kind: kind, Category: cat})
	s.Poses.Set(id, &component.Pose{Rotation: vmath.Identity})

	var entry data.PoolEntry
	if e := s.table.Get(kind, cat); e != nil {
		entry = *e
	}
	if entry.Speed > 0 {
		s.Motions.Set(id, &component.Motion{Speed: entry.Speed})
	}
	lifetime := entry.Lifetime
	if kind == pool.KindEffect && s.rules != nil {
		lifetime = s.rules.EffectDuration(string(cat), lifetime)
	}
	if lifetime > 0 {
		s.Lifetimes.Set(id, &component.Lifetime{Total: lifetime})
	}
	if kind == pool.KindProjectile {
		s.Shots.Set(id, &component.Shot{Damage: entry.Damage})
	}
	if cat == Crate {
		s.Healths.Set(id, &component.Health{Current: s.opts.CrateHealth, Max: s.opts.CrateHealth})
	}

	adopt(id)
	return nil
}

// Configure implements replication.Configurator.
func (s *Scene) Configure(h *pool.Handle, pose component.Pose, cfg replication.Config) {
	p, ok := s.Pooled.Get(h.ID)
	if !ok {
		s.log.Warn("configure for unknown entity", zap.Uint64("id", uint64(h.ID)))
		return
	}
	p.Active = true
	if pose.Rotation.IsZero() {
		pose.Rotation = vmath.Identity
	}
	s.Poses.Set(h.ID, &pose)

	if lt, ok := s.Lifetimes.Get(h.ID); ok {
		lt.Remaining = lt.Total
	}
	if m, ok := s.Motions.Get(h.ID); ok {
		def := float64(0)
		if e := s.table.Get(h.Kind, h.Category); e != nil {
			def = float64(e.Speed)
		}
		m.Speed = float32(cfg.Param("speed", def))
	}
	if shot, ok := s.Shots.Get(h.ID); ok {
		shot.Shooter = cfg.Shooter
		shot.ShooterPeer = cfg.ShooterPeer
		shot.ShotByPlayer = cfg.ShotByPlayer
		if cfg.Damage > 0 {
			shot.Damage = cfg.Damage
		} else if e := s.table.Get(h.Kind, h.Category); e != nil {
			shot.Damage = e.Damage
		}
	}
	if hp, ok := s.Healths.Get(h.ID); ok {
		hp.Current = hp.Max
	}
}

// Reset implements replication.Configurator.
func (s *Scene) Reset(h *pool.Handle) {
	if p, ok := s.Pooled.Get(h.ID); ok {
		p.Active = false
	}
	if lt, ok := s.Lifetimes.Get(h.ID); ok {
		lt.Remaining = 0
	}
}

// Active reports whether id is an active pooled instance.
func (s *Scene) Active(id ecs.EntityID) bool {
	p, ok := s.Pooled.Get(id)
	return ok && p.Active
}

// PoseOf returns the current pose of id.
func (s *Scene) PoseOf(id ecs.EntityID) (component.Pose, bool) {
	p, ok := s.Poses.Get(id)
	if !ok {
		return component.Pose{}, false
	}
	return *p, true
}

// Destroy queues id for removal at the end of the tick. It is the terminal
// fallback for instances no registry owns.
func (s *Scene) Destroy(id ecs.EntityID) {
	s.World.MarkForDestruction(id)
}

// NewRegistries builds the authoritative registry of every kind, backed by
// scene.
func NewRegistries(table *data.PoolTable, scene *Scene, log *zap.Logger) []*pool.Registry {
	regs := make([]*pool.Registry, 0, len(pool.Kinds))
	for _, k := range pool.Kinds {
		regs = append(regs, pool.NewRegistry(k, table.Specs(k), scene, log))
	}
	return regs
}
