package match

import (
	"context"
	"fmt"
	"time"

	"github.com/l1jgo/arena/internal/arena"
	"github.com/l1jgo/arena/internal/config"
	"github.com/l1jgo/arena/internal/core/event"
	coresys "github.com/l1jgo/arena/internal/core/system"
	"github.com/l1jgo/arena/internal/core/timer"
	"github.com/l1jgo/arena/internal/handler"
	"github.com/l1jgo/arena/internal/metrics"
	"github.com/l1jgo/arena/internal/net"
	"github.com/l1jgo/arena/internal/net/packet"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/replication"
	"github.com/l1jgo/arena/internal/system"
	"go.uber.org/zap"
)

// Peer is a joined, non-authoritative participant. Its pools forward every
// request to the host; its mirror follows the host's broadcasts.
type Peer struct {
	Exec     *replication.RemoteExecutor
	Mirror   *replication.Mirror
	Pools    *arena.Pools
	Gun      *arena.Gun
	Launcher *arena.RocketLauncher

	PeerID  uint32
	MatchID string

	cfg     *config.Config
	log     *zap.Logger
	bus     *event.Bus
	sched   *timer.Scheduler
	sess    *net.Session
	store   *net.SessionStore
	runner  *coresys.Runner
	shadows map[pool.Kind]*pool.Registry
	closed  bool
}

// DialHost connects to the configured host address.
func DialHost(ctx context.Context, cfg *config.Config, log *zap.Logger) (*net.Session, error) {
	if cfg.Network.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Network.DialTimeout)
		defer cancel()
	}
	// The packet cap guards the host against peers, not the other way round.
	opts := sessionOptions(cfg)
	opts.PacketsPerSecond = 0
	sess, err := net.Dial(ctx, cfg.Network.HostAddress, opts, log)
	if err != nil {
		return nil, fmt.Errorf("dial host %s: %w", cfg.Network.HostAddress, err)
	}
	return sess, nil
}

// NewPeer wires a peer around an established session to the host.
// collector may be nil.
func NewPeer(cfg *config.Config, sess *net.Session, assets Assets, collector *metrics.Collector, log *zap.Logger) *Peer {
	p := &Peer{
		cfg:     cfg,
		log:     log,
		bus:     event.NewBus(),
		sched:   timer.NewScheduler(),
		sess:    sess,
		store:   net.NewSessionStore(),
		runner:  coresys.NewRunner(),
		shadows: make(map[pool.Kind]*pool.Registry, len(pool.Kinds)),
	}
	p.store.Add(sess)
	for _, k := range pool.Kinds {
		p.shadows[k] = pool.NewShadowRegistry(k, log)
	}

	p.Exec = replication.NewRemoteExecutor(sess, collector, log)
	p.Mirror = replication.NewMirror(log)
	p.Pools = arena.NewPools(p.Exec, log)
	p.Gun = arena.NewGun(p.Pools, p.sched, assets.Rules, arena.GunOptions{
		Owner:           cfg.Session.Nickname,
		ShotByPlayer:    true,
		Damage:          cfg.Gameplay.BulletDamage,
		BoostMultiplier: cfg.Gameplay.DamageMultiplier,
		BoostDuration:   cfg.Gameplay.DamageBoostTime,
	})
	p.Launcher = arena.NewRocketLauncher(p.Pools, cfg.Session.Nickname, 0, cfg.Gameplay.RocketDamage)

	event.Subscribe(p.bus, func(e event.Welcomed) {
		p.PeerID = e.PeerID
		p.MatchID = e.MatchID
		p.log = p.log.With(zap.String("match", e.MatchID), zap.Uint32("peer", e.PeerID))
	})

	reg := packet.NewRegistry(log)
	handler.RegisterPeer(reg, &handler.Deps{
		Config:  cfg,
		Log:     log,
		Bus:     p.bus,
		Metrics: collector,
		Exec:    p.Exec,
		Mirror:  p.Mirror,
	})

	p.runner.Register(system.NewInputSystem(nil, reg, p.store, cfg.Network.MaxPacketsPerTick, p.leave, log))
	p.runner.Register(system.NewEventDispatchSystem(p.bus))
	p.runner.Register(system.NewTimerSystem(p.sched))
	p.runner.Register(system.NewOutputSystem(p.store))
	return p
}

// Join sends the hello that starts the join handshake.
func (p *Peer) Join() {
	p.sess.Send(replication.Hello{Nickname: p.cfg.Session.Nickname}.Encode())
	p.sess.FlushOutput()
}

// Joined reports whether the host accepted this peer.
func (p *Peer) Joined() bool {
	return p.sess.State() == packet.StateJoined
}

// Closed reports whether the connection to the host ended.
func (p *Peer) Closed() bool { return p.closed }

// Shadow returns the shadow registry of kind. It refuses every mutation.
func (p *Peer) Shadow(kind pool.Kind) *pool.Registry { return p.shadows[kind] }

func (p *Peer) leave(sess *net.Session) {
	p.log.Warn("與主機的連線已中斷", zap.String("addr", sess.Addr))
	p.closed = true
}

// Tick runs one step of the peer loop.
func (p *Peer) Tick(dt time.Duration) { p.runner.Tick(dt) }

// Close ends the session to the host.
func (p *Peer) Close() { p.sess.Close() }
