package arena

import (
	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/event"
	"github.com/l1jgo/arena/internal/vmath"
	"go.uber.org/zap"
)

// CrateSpawner places one crate per spawn point once the arena pools are
// warm.
type CrateSpawner struct {
	pools  *Pools
	points []vmath.Vec3
	log    *zap.Logger
}

// NewCrateSpawner subscribes to PoolsReady on bus.
func NewCrateSpawner(pools *Pools, points []vmath.Vec3, bus *event.Bus, log *zap.Logger) *CrateSpawner {
	s := &CrateSpawner{pools: pools, points: points, log: log.Named("crate_spawner")}
	if len(points) == 0 {
		s.log.Warn("沒有設定木箱生成點")
	}
	event.Subscribe(bus, func(event.PoolsReady) {
		s.SpawnCrates()
	})
	return s
}

// SpawnCrates allocates a crate at every spawn point and returns how many
// handles came back (zero on a joined peer).
func (s *CrateSpawner) SpawnCrates() int {
	n := 0
	for _, p := range s.points {
		if h := s.pools.Crate(component.Pose{Position: p, Rotation: vmath.Euler(90, 0, 0)}); h != nil {
			n++
		}
	}
	s.log.Info("木箱已生成", zap.Int("count", n), zap.Int("points", len(s.points)))
	return n
}
