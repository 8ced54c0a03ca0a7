package pool

import "github.com/l1jgo/arena/internal/core/ecs"

// CategorySpec is the static configuration of one category.
type CategorySpec struct {
	Name Category
	Size int // instances pre-spawned by Warm
}

// category holds every handle of one resource kind. The queue is total
// ownership: a handle stays in it whether Available or InUse.
type category struct {
	name  Category
	kind  Kind
	size  int
	queue []*Handle
	inUse int
}

// adopt enqueues a freshly constructed instance, forced Available.
func (c *category) adopt(id ecs.EntityID) *Handle {
	h := &Handle{ID: id, Kind: c.kind, Category: c.name, state: Available}
	c.queue = append(c.queue, h)
	return h
}

// available returns the first idle handle, or nil when all are in use.
func (c *category) available() *Handle {
	if c.inUse == len(c.queue) {
		return nil
	}
	for _, h := range c.queue {
		if h.state == Available {
			return h
		}
	}
	return nil
}

func (c *category) acquire(h *Handle) {
	h.state = InUse
	c.inUse++
}

// release flips h back to Available. It reports false when h was already
// Available, in which case nothing changes.
func (c *category) release(h *Handle) bool {
	if h.state == Available {
		return false
	}
	h.state = Available
	c.inUse--
	return true
}

// evict drops h from the queue. An InUse handle stops counting as in use.
func (c *category) evict(h *Handle) {
	for i, q := range c.queue {
		if q != h {
			continue
		}
		c.queue = append(c.queue[:i], c.queue[i+1:]...)
		if h.state == InUse {
			c.inUse--
		}
		return
	}
}

func (c *category) owns(h *Handle) bool {
	return h.Kind == c.kind && h.Category == c.name
}
