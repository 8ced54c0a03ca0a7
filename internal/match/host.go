// Package match assembles the services of one arena participant: the
// authoritative host that owns every pool, or a joined peer that forwards
// its requests and follows the host's broadcasts.
package match

import (
	"fmt"
	gonet "net"
	"time"

	"github.com/google/uuid"
	"github.com/l1jgo/arena/internal/arena"
	"github.com/l1jgo/arena/internal/config"
	"github.com/l1jgo/arena/internal/core/event"
	coresys "github.com/l1jgo/arena/internal/core/system"
	"github.com/l1jgo/arena/internal/core/timer"
	"github.com/l1jgo/arena/internal/data"
	"github.com/l1jgo/arena/internal/handler"
	"github.com/l1jgo/arena/internal/metrics"
	"github.com/l1jgo/arena/internal/net"
	"github.com/l1jgo/arena/internal/net/packet"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/replication"
	"github.com/l1jgo/arena/internal/scripting"
	"github.com/l1jgo/arena/internal/system"
	"github.com/l1jgo/arena/internal/vmath"
	"go.uber.org/zap"
)

// Assets are the loaded static tables and rules shared by both roles.
type Assets struct {
	Pools       *data.PoolTable
	SpawnPoints []vmath.Vec3
	Rules       *scripting.Engine // may be nil
}

// Host is the authoritative participant. It owns the registries, runs the
// simulation and fans every state change out to the joined peers.
type Host struct {
	MatchID string

	Scene    *arena.Scene
	Exec     *replication.LocalExecutor
	Mirror   *replication.Mirror
	Pools    *arena.Pools
	Crates   *arena.Crates
	Gun      *arena.Gun
	Launcher *arena.RocketLauncher

	cfg     *config.Config
	log     *zap.Logger
	bus     *event.Bus
	sched   *timer.Scheduler
	server  *net.Server
	store   *net.SessionStore
	runner  *coresys.Runner
	limits  *replication.RequestLimiter
	metrics *metrics.Collector
}

// joinedPeers adapts the session store to replication.Peers.
type joinedPeers struct {
	store *net.SessionStore
}

func (p joinedPeers) EachJoined(fn func(s replication.Sink)) {
	p.store.ForEach(func(sess *net.Session) {
		if sess.State() == packet.StateJoined && !sess.IsClosed() {
			fn(sess)
		}
	})
}

// NewHost builds the authoritative match and warms every pool. collector may
// be nil. The crate spawn runs on the first tick.
func NewHost(cfg *config.Config, assets Assets, collector *metrics.Collector, log *zap.Logger) (*Host, error) {
	h := &Host{
		MatchID: uuid.NewString(),
		cfg:     cfg,
		bus:     event.NewBus(),
		sched:   timer.NewScheduler(),
		store:   net.NewSessionStore(),
		runner:  coresys.NewRunner(),
		metrics: collector,
	}
	h.log = log.With(zap.String("match", h.MatchID))
	if cfg.RateLimit.Enabled {
		h.limits = replication.NewRequestLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	h.server = net.NewServer(sessionOptions(cfg), h.log)

	h.Scene = arena.NewScene(assets.Pools, assets.Rules, arena.SceneOptions{
		MaxEntities: cfg.Gameplay.MaxEntities,
		CrateHealth: cfg.Gameplay.CrateHealth,
	}, h.log)
	regs := arena.NewRegistries(assets.Pools, h.Scene, h.log)
	for _, r := range regs {
		r.Observe(collector)
	}
	h.Mirror = replication.NewMirror(h.log)
	fanout := replication.NewFanout(h.Mirror, joinedPeers{store: h.store}, collector)
	h.Exec = replication.NewLocalExecutor(regs, h.Scene, fanout, h.Scene.Destroy, h.log)
	h.Scene.World.OnDestroy(h.Exec.Evict)

	h.Pools = arena.NewPools(h.Exec, h.log)
	h.Crates = arena.NewCrates(h.Pools, h.Scene, h.sched, assets.Rules, cfg.Gameplay.CrateDisableDelay, h.log)
	h.Gun = arena.NewGun(h.Pools, h.sched, assets.Rules, arena.GunOptions{
		Owner:           cfg.Session.Nickname,
		ShotByPlayer:    true,
		Damage:          cfg.Gameplay.BulletDamage,
		BoostMultiplier: cfg.Gameplay.DamageMultiplier,
		BoostDuration:   cfg.Gameplay.DamageBoostTime,
	})
	h.Launcher = arena.NewRocketLauncher(h.Pools, cfg.Session.Nickname, 0, cfg.Gameplay.RocketDamage)
	arena.NewCrateSpawner(h.Pools, assets.SpawnPoints, h.bus, h.log)

	event.Subscribe(h.bus, func(e event.PeerJoined) {
		h.metrics.SetPeers(h.joined())
	})
	event.Subscribe(h.bus, func(e event.PeerLeft) {
		h.limits.Forget(e.SessionID)
		h.metrics.SetPeers(h.joined())
	})

	reg := packet.NewRegistry(h.log)
	handler.RegisterHost(reg, &handler.Deps{
		Config:  cfg,
		Log:     h.log,
		Bus:     h.bus,
		Metrics: collector,
		MatchID: h.MatchID,
		Exec:    h.Exec,
		Mirror:  h.Mirror,
		Limits:  h.limits,
	})

	h.runner.Register(system.NewInputSystem(h.server, reg, h.store, cfg.Network.MaxPacketsPerTick, h.leave, h.log))
	h.runner.Register(system.NewEventDispatchSystem(h.bus))
	h.runner.Register(system.NewTimerSystem(h.sched))
	h.runner.Register(system.NewLifetimeSystem(h.Scene, h.Pools))
	h.runner.Register(system.NewCollisionSystem(h.Scene, h.Crates, 1))
	h.runner.Register(system.NewOutputSystem(h.store))
	h.runner.Register(system.NewCleanupSystem(h.Scene.World))

	n, err := h.Exec.Warm()
	if err != nil {
		return nil, fmt.Errorf("warm pools: %w", err)
	}
	h.log.Info("物件池預熱完成", zap.Int("handles", n))
	event.Emit(h.bus, event.PoolsReady{Kinds: pool.Kinds})
	return h, nil
}

func sessionOptions(cfg *config.Config) net.SessionOptions {
	opts := net.SessionOptions{
		InQueueSize:  cfg.Network.InQueueSize,
		OutQueueSize: cfg.Network.OutQueueSize,
		WriteTimeout: cfg.Network.WriteTimeout,
	}
	if cfg.RateLimit.Enabled {
		opts.PacketsPerSecond = cfg.RateLimit.PacketsPerSecond
	}
	return opts
}

func (h *Host) leave(sess *net.Session) {
	event.Emit(h.bus, event.PeerLeft{SessionID: sess.ID})
}

func (h *Host) joined() int {
	n := 0
	joinedPeers{store: h.store}.EachJoined(func(replication.Sink) { n++ })
	return n
}

// Listen starts accepting peers on the configured bind address.
func (h *Host) Listen() error {
	return h.server.Listen(h.cfg.Network.BindAddress)
}

// Addr is the listener address, nil before Listen.
func (h *Host) Addr() gonet.Addr { return h.server.Addr() }

// Attach serves an already connected peer.
func (h *Host) Attach(conn gonet.Conn) *net.Session { return h.server.Attach(conn) }

// Peers returns the number of sessions that completed the join handshake.
func (h *Host) Peers() int { return h.joined() }

// Tick runs one simulation step.
func (h *Host) Tick(dt time.Duration) { h.runner.Tick(dt) }

// PollInput runs only the input phase. Called between ticks so forwarded
// requests do not wait for the next full tick.
func (h *Host) PollInput() { h.runner.TickPhase(coresys.PhaseInput, 0) }

// Ticks returns the number of completed ticks.
func (h *Host) Ticks() uint64 { return h.runner.Ticks() }

// Shutdown stops accepting peers and closes every session.
func (h *Host) Shutdown() {
	h.server.Shutdown()
	h.store.ForEach(func(sess *net.Session) {
		sess.Close()
	})
}
