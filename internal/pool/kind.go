// Package pool implements the authoritative pool registry for transient
// networked entities. Only the authoritative registry ever mutates its
// category queues; shadow registries refuse every mutation.
package pool

import "fmt"

// Kind names one of the registries a session owns. Category sets differ per
// kind; the protocol does not.
type Kind uint8

const (
	KindProjectile Kind = iota + 1
	KindArena
	KindEffect
)

// Kinds lists every registry kind in warm-up order.
var Kinds = []Kind{KindProjectile, KindArena, KindEffect}

func (k Kind) String() string {
	switch k {
	case KindProjectile:
		return "projectile"
	case KindArena:
		return "arena"
	case KindEffect:
		return "effect"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k >= KindProjectile && k <= KindEffect
}

// ParseKind maps a registry name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown pool kind %q", s)
}

// Category identifies a class of interchangeable pooled entities inside one
// registry, e.g. "bullet" or "rocket_explosion".
type Category string

// Role tags a registry as the single mutator or as a passive shadow.
type Role uint8

const (
	Shadow Role = iota
	Authoritative
)

func (r Role) String() string {
	if r == Authoritative {
		return "authoritative"
	}
	return "shadow"
}
