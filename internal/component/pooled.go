package component

import (
	"time"

	"github.com/l1jgo/arena/internal/pool"
)

// Pooled marks an entity as owned by a pool registry category.
// Kind and Category are set once by the host spawner. Active follows the
// handle state: systems skip inactive instances.
type Pooled struct {
	Kind     pool.Kind
	Category pool.Category
	Active   bool
}

// Lifetime releases an active entity back to its pool when Remaining reaches
// zero. Total is the configured lifetime restored on every allocation.
type Lifetime struct {
	Total     time.Duration
	Remaining time.Duration
}

// Shot carries the per-use configuration of a fired projectile.
type Shot struct {
	Shooter      string
	ShooterPeer  uint32
	ShotByPlayer bool
	Damage       int
}

// Health is the hit point pool of a breakable arena object.
type Health struct {
	Current int
	Max     int
}
