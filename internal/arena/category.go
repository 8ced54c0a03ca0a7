// Package arena holds the gameplay call sites of the pooling core: typed
// getters over the executor and the host-side scene that backs every pooled
// instance with an entity.
package arena

import "github.com/l1jgo/arena/internal/pool"

// Projectile categories.
const (
	Bullet       pool.Category = "bullet"
	PoisonBullet pool.Category = "poison_bullet"
	FreezeBullet pool.Category = "freeze_bullet"
	Rocket       pool.Category = "rocket"
)

// Arena object categories.
const (
	Crate         pool.Category = "crate"
	DamageBuffBox pool.Category = "damage_buff_box"
	HealingBox    pool.Category = "healing_box"
)

// Effect categories.
const (
	PoisonExplosion pool.Category = "poison_explosion"
	FreezeExplosion pool.Category = "freeze_explosion"
	RocketExplosion pool.Category = "rocket_explosion"
	BaseMuzzle      pool.Category = "base_muzzle"
	RocketMuzzle    pool.Category = "rocket_muzzle"
	DamageIncrease  pool.Category = "damage_increase"
	Healing         pool.Category = "healing"
	OpenBuff        pool.Category = "open_buff"
	GotShot         pool.Category = "got_shot"
	Dead            pool.Category = "dead"
)

// PowerUps are the boxes a broken crate can drop, in roll order.
var PowerUps = []pool.Category{DamageBuffBox, HealingBox}

func isImpact(cat pool.Category) bool {
	switch cat {
	case PoisonExplosion, FreezeExplosion, RocketExplosion:
		return true
	}
	return false
}
