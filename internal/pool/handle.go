package pool

import "github.com/l1jgo/arena/internal/core/ecs"

// State is the activation state of a pooled instance.
type State uint8

const (
	Available State = iota
	InUse
)

func (s State) String() string {
	if s == InUse {
		return "in_use"
	}
	return "available"
}

// Handle is the identity and activation state of one reusable instance.
// It is owned by the registry that adopted it; call sites borrow it for the
// duration of one use and give it back with Release.
type Handle struct {
	ID       ecs.EntityID
	Kind     Kind
	Category Category
	state    State
}

func (h *Handle) State() State { return h.state }

func (h *Handle) InUse() bool { return h.state == InUse }

// AdoptFunc is the construction signal. A Spawner must call it exactly once
// for each instance it constructs, before Spawn returns.
type AdoptFunc func(id ecs.EntityID)

// Spawner constructs the backing entity for a new pooled instance.
type Spawner interface {
	Spawn(kind Kind, cat Category, adopt AdoptFunc) error
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(kind Kind, cat Category, adopt AdoptFunc) error

func (f SpawnerFunc) Spawn(kind Kind, cat Category, adopt AdoptFunc) error {
	return f(kind, cat, adopt)
}

// Observer is notified of every state change of an authoritative registry.
type Observer interface {
	Constructed(h *Handle)
	Allocated(h *Handle)
	Released(h *Handle)
}

// ObserverFuncs implements Observer with optional callbacks.
type ObserverFuncs struct {
	OnConstructed func(h *Handle)
	OnAllocated   func(h *Handle)
	OnReleased    func(h *Handle)
}

func (o ObserverFuncs) Constructed(h *Handle) {
	if o.OnConstructed != nil {
		o.OnConstructed(h)
	}
}

func (o ObserverFuncs) Allocated(h *Handle) {
	if o.OnAllocated != nil {
		o.OnAllocated(h)
	}
}

func (o ObserverFuncs) Released(h *Handle) {
	if o.OnReleased != nil {
		o.OnReleased(h)
	}
}
