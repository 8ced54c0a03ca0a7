package pool

import (
	"fmt"
	"sort"

	"github.com/l1jgo/arena/internal/core/ecs"
	"go.uber.org/zap"
)

// Stats summarises one category.
type Stats struct {
	Category Category
	Size     int
	Total    int
	InUse    int
}

// Registry owns the categories of one Kind for a session. Exactly one peer
// holds the Authoritative registry per kind; every other peer holds a Shadow
// with no categories. Not safe for concurrent use: all calls happen on the
// tick loop goroutine.
type Registry struct {
	kind       Kind
	role       Role
	spawner    Spawner
	specs      []CategorySpec
	categories map[Category]*category
	handles    map[ecs.EntityID]*Handle
	observers  []Observer
	log        *zap.Logger
}

// NewRegistry creates the authoritative registry for kind. Categories exist as
// soon as the registry is built; Warm pre-spawns them.
func NewRegistry(kind Kind, specs []CategorySpec, spawner Spawner, log *zap.Logger) *Registry {
	r := &Registry{
		kind:       kind,
		role:       Authoritative,
		spawner:    spawner,
		specs:      specs,
		categories: make(map[Category]*category, len(specs)),
		handles:    make(map[ecs.EntityID]*Handle),
		log:        log.With(zap.Stringer("registry", kind)),
	}
	for _, s := range specs {
		if _, dup := r.categories[s.Name]; dup {
			r.log.Warn("duplicate category in table, keeping the first", zap.String("category", string(s.Name)))
			continue
		}
		r.categories[s.Name] = &category{name: s.Name, kind: kind, size: s.Size}
	}
	return r
}

// NewShadowRegistry creates the non-authoritative stand-in for kind.
func NewShadowRegistry(kind Kind, log *zap.Logger) *Registry {
	return &Registry{
		kind:       kind,
		role:       Shadow,
		categories: map[Category]*category{},
		handles:    map[ecs.EntityID]*Handle{},
		log:        log.With(zap.Stringer("registry", kind)),
	}
}

func (r *Registry) Kind() Kind { return r.kind }

func (r *Registry) Role() Role { return r.role }

func (r *Registry) Authoritative() bool { return r.role == Authoritative }

// Observe registers an observer for construction, allocation and release.
func (r *Registry) Observe(o Observer) {
	r.observers = append(r.observers, o)
}

// Warm spawns every configured category up to its initial size and returns
// the number of instances constructed. Individual spawn failures are logged
// and skipped.
func (r *Registry) Warm() (int, error) {
	if r.role != Authoritative {
		return 0, ErrNotAuthoritative
	}
	spawned := 0
	for _, s := range r.specs {
		c := r.categories[s.Name]
		for len(c.queue) < c.size {
			if _, err := r.construct(c); err != nil {
				break
			}
			spawned++
		}
		r.log.Debug("pool created",
			zap.String("category", string(c.name)),
			zap.Int("size", len(c.queue)),
		)
	}
	return spawned, nil
}

// Allocate hands out an Available handle of cat, flipping it to InUse. When
// every handle is in use the category grows by one; it never refuses because
// of exhaustion.
func (r *Registry) Allocate(cat Category) (*Handle, error) {
	if r.role != Authoritative {
		return nil, ErrNotAuthoritative
	}
	c, ok := r.categories[cat]
	if !ok {
		r.log.Error("no pool for category", zap.String("category", string(cat)))
		return nil, fmt.Errorf("allocate %s/%s: %w", r.kind, cat, ErrUnregisteredCategory)
	}
	h := c.available()
	if h == nil {
		var err error
		if h, err = r.construct(c); err != nil {
			return nil, err
		}
	}
	c.acquire(h)
	for _, o := range r.observers {
		o.Allocated(h)
	}
	return h, nil
}

// Release gives h back to cat. Releasing an Available handle is a no-op and
// reports changed=false. An unknown category returns ErrUnregisteredCategory so
// the caller can fall back to destroying the instance.
func (r *Registry) Release(cat Category, id ecs.EntityID) (h *Handle, changed bool, err error) {
	if r.role != Authoritative {
		return nil, false, ErrNotAuthoritative
	}
	c, ok := r.categories[cat]
	if !ok {
		return nil, false, fmt.Errorf("release %s/%s: %w", r.kind, cat, ErrUnregisteredCategory)
	}
	h, ok = r.handles[id]
	if !ok || !c.owns(h) {
		r.log.Warn("release of foreign handle ignored",
			zap.String("category", string(cat)),
			zap.Uint64("id", uint64(id)),
		)
		return nil, false, fmt.Errorf("release %s/%s id=%d: %w", r.kind, cat, id, ErrUnknownHandle)
	}
	if !c.release(h) {
		return h, false, nil
	}
	for _, o := range r.observers {
		o.Released(h)
	}
	return h, true, nil
}

// Lookup finds a handle by identity.
func (r *Registry) Lookup(id ecs.EntityID) (*Handle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

// Evict forgets the handle of id after its entity was destroyed outside the
// pool, so it can never be handed out again. Reports whether id was owned.
func (r *Registry) Evict(id ecs.EntityID) bool {
	h, ok := r.handles[id]
	if !ok {
		return false
	}
	delete(r.handles, id)
	if c, ok := r.categories[h.Category]; ok {
		c.evict(h)
	}
	r.log.Warn("pooled instance destroyed outside its pool",
		zap.String("category", string(h.Category)),
		zap.Uint64("id", uint64(id)),
	)
	return true
}

// Has reports whether cat is configured.
func (r *Registry) Has(cat Category) bool {
	_, ok := r.categories[cat]
	return ok
}

// Categories returns the configured categories sorted by name.
func (r *Registry) Categories() []Category {
	out := make([]Category, 0, len(r.categories))
	for name := range r.categories {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stats returns the counters of cat.
func (r *Registry) Stats(cat Category) (Stats, bool) {
	c, ok := r.categories[cat]
	if !ok {
		return Stats{}, false
	}
	return Stats{Category: cat, Size: c.size, Total: len(c.queue), InUse: c.inUse}, true
}

// Each visits every handle of every category, category by category in queue
// order.
func (r *Registry) Each(fn func(h *Handle)) {
	for _, cat := range r.Categories() {
		for _, h := range r.categories[cat].queue {
			fn(h)
		}
	}
}

// construct asks the spawner for a new instance of c and adopts it through
// the construction signal.
func (r *Registry) construct(c *category) (*Handle, error) {
	var adopted *Handle
	adopt := func(id ecs.EntityID) {
		if adopted != nil {
			r.log.Warn("duplicate construction signal ignored",
				zap.String("category", string(c.name)),
				zap.Uint64("id", uint64(id)),
			)
			return
		}
		if _, taken := r.handles[id]; taken {
			r.log.Error("spawner reused a live identity",
				zap.String("category", string(c.name)),
				zap.Uint64("id", uint64(id)),
			)
			return
		}
		adopted = c.adopt(id)
		r.handles[id] = adopted
	}

	err := r.spawner.Spawn(r.kind, c.name, adopt)
	if adopted != nil {
		// An adopted instance is owned even if the spawner reported a late
		// failure; it stays in the queue as Available.
		for _, o := range r.observers {
			o.Constructed(adopted)
		}
	}
	if err == nil && adopted == nil {
		err = fmt.Errorf("spawner returned without a construction signal")
	}
	if err != nil {
		r.log.Error("failed to spawn pooled instance",
			zap.String("category", string(c.name)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("spawn %s/%s: %w: %v", r.kind, c.name, ErrConstructionFailure, err)
	}
	return adopted, nil
}
