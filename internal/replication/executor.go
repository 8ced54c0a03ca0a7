// Package replication routes pool mutations through a single authority and
// replicates their outcome to every peer of a match.
package replication

import (
	"errors"
	"fmt"

	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/ecs"
	"github.com/l1jgo/arena/internal/pool"
	"go.uber.org/zap"
)

// Request describes one allocation: which category, where, and how to
// configure the instance once it is active.
type Request struct {
	Kind     pool.Kind
	Category pool.Category
	Pose     component.Pose
	Config   Config
}

// Executor is the authority gate. A process picks one implementation when it
// joins a match and every call site goes through it.
//
// On the host, Allocate returns the handle. On a joined peer it forwards the
// request and returns a nil handle and nil error: the caller skips its local
// follow-up and waits for the broadcast.
type Executor interface {
	Authoritative() bool
	Allocate(req Request) (*pool.Handle, error)
	Release(kind pool.Kind, cat pool.Category, id ecs.EntityID) error
}

// Configurator applies per-use state to the backing entity of a handle.
type Configurator interface {
	Configure(h *pool.Handle, pose component.Pose, cfg Config)
	Reset(h *pool.Handle)
}

// Broadcaster delivers a replication message to every peer, the host
// included, in call order.
type Broadcaster interface {
	Broadcast(m Message)
}

// Sink is one ordered outbound packet stream, typically a net.Session.
type Sink interface {
	Send(data []byte)
}

// Stats counts forwarded and dropped requests and broadcasts. Optional.
type Stats interface {
	RequestForwarded(kind pool.Kind)
	RequestDropped(kind pool.Kind)
	Broadcasted(msgType string)
}

type nopStats struct{}

func (nopStats) RequestForwarded(pool.Kind) {}
func (nopStats) RequestDropped(pool.Kind)   {}
func (nopStats) Broadcasted(string)         {}

// LocalExecutor is the host-side executor. It owns the authoritative
// registries, mutates them directly and broadcasts the result.
type LocalExecutor struct {
	registries map[pool.Kind]*pool.Registry
	conf       Configurator
	out        Broadcaster
	destroy    func(id ecs.EntityID)
	log        *zap.Logger
}

// NewLocalExecutor wires the authoritative registries to out. destroy is the
// terminal fallback for instances whose category is unknown; it may be nil.
// Build the executor before warming the registries so construction is
// announced.
func NewLocalExecutor(regs []*pool.Registry, conf Configurator, out Broadcaster, destroy func(id ecs.EntityID), log *zap.Logger) *LocalExecutor {
	e := &LocalExecutor{
		registries: make(map[pool.Kind]*pool.Registry, len(regs)),
		conf:       conf,
		out:        out,
		destroy:    destroy,
		log:        log.Named("executor"),
	}
	for _, r := range regs {
		e.registries[r.Kind()] = r
		r.Observe(pool.ObserverFuncs{
			OnConstructed: func(h *pool.Handle) {
				e.out.Broadcast(Spawn{ID: h.ID, Kind: h.Kind, Category: h.Category})
			},
		})
	}
	return e
}

func (e *LocalExecutor) Authoritative() bool { return true }

// Registry returns the authoritative registry of kind.
func (e *LocalExecutor) Registry(kind pool.Kind) (*pool.Registry, bool) {
	r, ok := e.registries[kind]
	return r, ok
}

// Warm pre-spawns every registry in pool.Kinds order.
func (e *LocalExecutor) Warm() (int, error) {
	total := 0
	for _, k := range pool.Kinds {
		r, ok := e.registries[k]
		if !ok {
			continue
		}
		n, err := r.Warm()
		if err != nil {
			return total, fmt.Errorf("warm %s: %w", k, err)
		}
		total += n
	}
	return total, nil
}

func (e *LocalExecutor) Allocate(req Request) (*pool.Handle, error) {
	r, ok := e.registries[req.Kind]
	if !ok {
		e.log.Error("no registry for kind", zap.Stringer("kind", req.Kind))
		return nil, fmt.Errorf("allocate %s/%s: %w", req.Kind, req.Category, pool.ErrUnregisteredCategory)
	}
	h, err := r.Allocate(req.Category)
	if err != nil {
		return nil, err
	}
	if e.conf != nil {
		e.conf.Configure(h, req.Pose, req.Config)
	}
	e.out.Broadcast(Activate{ID: h.ID, Pose: req.Pose})
	return h, nil
}

func (e *LocalExecutor) Release(kind pool.Kind, cat pool.Category, id ecs.EntityID) error {
	var (
		h       *pool.Handle
		changed bool
		err     error
	)
	if r, ok := e.registries[kind]; ok {
		h, changed, err = r.Release(cat, id)
	} else {
		err = fmt.Errorf("release %s/%s: %w", kind, cat, pool.ErrUnregisteredCategory)
	}

	switch {
	case errors.Is(err, pool.ErrUnregisteredCategory):
		if owner, ok := e.owner(id); ok {
			e.log.Warn("release under the wrong category ignored",
				zap.String("category", string(cat)),
				zap.String("owner", string(owner.Category)),
				zap.Uint64("id", uint64(id)),
			)
			return fmt.Errorf("release %s/%s id=%d: %w", kind, cat, id, pool.ErrUnknownHandle)
		}
		e.log.Error("no pool for category, removing instance",
			zap.Stringer("kind", kind),
			zap.String("category", string(cat)),
			zap.Uint64("id", uint64(id)),
		)
		e.out.Broadcast(Remove{ID: id})
		if e.destroy != nil {
			e.destroy(id)
		}
		return err
	case err != nil:
		return err
	case !changed:
		return nil
	}

	if e.conf != nil {
		e.conf.Reset(h)
	}
	e.out.Broadcast(Deactivate{ID: h.ID})
	return nil
}

// Evict drops id from whichever registry owns it and tells every peer to
// forget it. Installed as the world's destroy hook so a destroyed entity
// never stays pooled.
func (e *LocalExecutor) Evict(id ecs.EntityID) {
	if _, ok := e.owner(id); !ok {
		return
	}
	for _, r := range e.registries {
		if r.Evict(id) {
			break
		}
	}
	e.out.Broadcast(Remove{ID: id})
}

func (e *LocalExecutor) owner(id ecs.EntityID) (*pool.Handle, bool) {
	for _, r := range e.registries {
		if h, ok := r.Lookup(id); ok {
			return h, true
		}
	}
	return nil, false
}

// RemoteExecutor is the executor of a joined, non-host peer. It never
// touches local pool state.
type RemoteExecutor struct {
	host  Sink
	stats Stats
	log   *zap.Logger
}

func NewRemoteExecutor(host Sink, stats Stats, log *zap.Logger) *RemoteExecutor {
	if stats == nil {
		stats = nopStats{}
	}
	return &RemoteExecutor{host: host, stats: stats, log: log.Named("executor")}
}

func (e *RemoteExecutor) Authoritative() bool { return false }

func (e *RemoteExecutor) Allocate(req Request) (*pool.Handle, error) {
	data, err := MarshalRequest(RequestAllocate{
		Kind:     req.Kind,
		Category: req.Category,
		Pose:     req.Pose,
		Config:   req.Config,
	})
	if err != nil {
		e.log.Error("request not forwarded", zap.String("category", string(req.Category)), zap.Error(err))
		return nil, err
	}
	e.host.Send(data)
	e.stats.RequestForwarded(req.Kind)
	return nil, nil
}

func (e *RemoteExecutor) Release(kind pool.Kind, cat pool.Category, id ecs.EntityID) error {
	e.host.Send(RequestRelease{Kind: kind, Category: cat, ID: id}.Encode())
	e.stats.RequestForwarded(kind)
	return nil
}
