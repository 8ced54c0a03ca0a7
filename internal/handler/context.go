package handler

import (
	"github.com/l1jgo/arena/internal/config"
	"github.com/l1jgo/arena/internal/core/event"
	"github.com/l1jgo/arena/internal/metrics"
	"github.com/l1jgo/arena/internal/net"
	"github.com/l1jgo/arena/internal/net/packet"
	"github.com/l1jgo/arena/internal/replication"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config  *config.Config
	Log     *zap.Logger
	Bus     *event.Bus
	Metrics *metrics.Collector
	MatchID string

	Exec   replication.Executor        // host: the local executor
	Mirror *replication.Mirror         // host: own broadcasts; peer: replicated view
	Limits *replication.RequestLimiter // host only; nil = unlimited
}

// RegisterHost registers the handlers of the authoritative peer.
func RegisterHost(reg *packet.Registry, deps *Deps) {
	// Handshake phase
	reg.Register(packet.C_OPCODE_HELLO,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleHello(sess.(*net.Session), r, deps)
		},
	)

	// Joined phase: forwarded pool requests
	joined := []packet.SessionState{packet.StateJoined}

	reg.Register(packet.C_OPCODE_REQUEST_ALLOCATE, joined,
		func(sess any, r *packet.Reader) {
			HandleRequestAllocate(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_REQUEST_RELEASE, joined,
		func(sess any, r *packet.Reader) {
			HandleRequestRelease(sess.(*net.Session), r, deps)
		},
	)
}

// RegisterPeer registers the handlers of a joined, non-authoritative peer.
func RegisterPeer(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.S_OPCODE_WELCOME,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleWelcome(sess.(*net.Session), r, deps)
		},
	)

	joined := []packet.SessionState{packet.StateJoined}
	for _, op := range []byte{
		packet.S_OPCODE_SPAWN,
		packet.S_OPCODE_ACTIVATE,
		packet.S_OPCODE_DEACTIVATE,
		packet.S_OPCODE_REMOVE,
	} {
		reg.Register(op, joined,
			func(sess any, r *packet.Reader) {
				HandleBroadcast(sess.(*net.Session), r, deps)
			},
		)
	}
}
