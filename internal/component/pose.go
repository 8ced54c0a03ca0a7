package component

import "github.com/l1jgo/arena/internal/vmath"

// Pose is the replicated placement of a pooled entity.
type Pose struct {
	Position vmath.Vec3
	Rotation vmath.Quat
}

// Motion moves an active projectile forward along its rotation each tick.
// Speed is in units per second.
type Motion struct {
	Speed float32
}
