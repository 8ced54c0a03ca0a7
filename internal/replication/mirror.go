package replication

import (
	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/ecs"
	"github.com/l1jgo/arena/internal/pool"
	"go.uber.org/zap"
)

// Entry is one replicated instance as seen by a peer.
type Entry struct {
	ID       ecs.EntityID
	Kind     pool.Kind
	Category pool.Category
	Active   bool
	Pose     component.Pose
}

// Mirror is a peer's view of every replicated instance. Broadcasts are
// applied unconditionally: an activation for an identity the mirror has
// never seen creates the entry.
type Mirror struct {
	entries map[ecs.EntityID]*Entry
	order   []ecs.EntityID
	onApply []func(m Message, e Entry)
	log     *zap.Logger
}

func NewMirror(log *zap.Logger) *Mirror {
	return &Mirror{
		entries: make(map[ecs.EntityID]*Entry),
		log:     log.Named("mirror"),
	}
}

// OnApply registers fn to run after every applied message. For Remove, e is
// the entry as it was before removal.
func (mr *Mirror) OnApply(fn func(m Message, e Entry)) {
	mr.onApply = append(mr.onApply, fn)
}

// Apply updates the view with one broadcast message. Non-broadcast messages
// are ignored.
func (mr *Mirror) Apply(m Message) {
	var e Entry
	switch msg := m.(type) {
	case Spawn:
		ent := mr.entry(msg.ID)
		ent.Kind = msg.Kind
		ent.Category = msg.Category
		e = *ent
	case Activate:
		ent := mr.entry(msg.ID)
		ent.Active = true
		ent.Pose = msg.Pose
		e = *ent
	case Deactivate:
		ent := mr.entry(msg.ID)
		ent.Active = false
		e = *ent
	case Remove:
		ent, ok := mr.entries[msg.ID]
		if !ok {
			mr.log.Debug("remove for unknown instance", zap.Uint64("id", uint64(msg.ID)))
			e = Entry{ID: msg.ID}
			break
		}
		e = *ent
		delete(mr.entries, msg.ID)
		for i, id := range mr.order {
			if id == msg.ID {
				mr.order = append(mr.order[:i], mr.order[i+1:]...)
				break
			}
		}
	default:
		return
	}
	for _, fn := range mr.onApply {
		fn(m, e)
	}
}

func (mr *Mirror) entry(id ecs.EntityID) *Entry {
	if ent, ok := mr.entries[id]; ok {
		return ent
	}
	ent := &Entry{ID: id}
	mr.entries[id] = ent
	mr.order = append(mr.order, id)
	return ent
}

// Get returns a copy of the entry for id.
func (mr *Mirror) Get(id ecs.EntityID) (Entry, bool) {
	ent, ok := mr.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *ent, true
}

// Len returns the number of known instances.
func (mr *Mirror) Len() int { return len(mr.entries) }

// Active returns the active instances in first-seen order.
func (mr *Mirror) Active() []Entry {
	var out []Entry
	for _, id := range mr.order {
		if ent := mr.entries[id]; ent.Active {
			out = append(out, *ent)
		}
	}
	return out
}

// ActiveIDs returns the identities of active instances as a set.
func (mr *Mirror) ActiveIDs() map[ecs.EntityID]bool {
	out := make(map[ecs.EntityID]bool)
	for id, ent := range mr.entries {
		if ent.Active {
			out[id] = true
		}
	}
	return out
}

// Each visits every entry in first-seen order.
func (mr *Mirror) Each(fn func(e Entry)) {
	for _, id := range mr.order {
		fn(*mr.entries[id])
	}
}

// Snapshot sends s the messages that rebuild this view from nothing: a Spawn
// per instance, then an Activate per active one.
func (mr *Mirror) Snapshot(s Sink) int {
	n := 0
	for _, id := range mr.order {
		ent := mr.entries[id]
		s.Send(Spawn{ID: ent.ID, Kind: ent.Kind, Category: ent.Category}.Encode())
		n++
	}
	for _, id := range mr.order {
		ent := mr.entries[id]
		if !ent.Active {
			continue
		}
		s.Send(Activate{ID: ent.ID, Pose: ent.Pose}.Encode())
		n++
	}
	return n
}
