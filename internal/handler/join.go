package handler

import (
	"fmt"

	"github.com/l1jgo/arena/internal/core/event"
	"github.com/l1jgo/arena/internal/net"
	"github.com/l1jgo/arena/internal/net/packet"
	"github.com/l1jgo/arena/internal/replication"
	"go.uber.org/zap"
)

// HandleHello processes C_HELLO on the host.
// Responds with S_WELCOME, marks the session joined and sends it the
// snapshot of every replicated instance.
func HandleHello(sess *net.Session, r *packet.Reader, deps *Deps) {
	hello, err := replication.DecodeHello(r)
	if err != nil {
		deps.Log.Warn("無效的 hello 封包", zap.Uint64("session", sess.ID), zap.Error(err))
		sess.Close()
		return
	}
	nick := hello.Nickname
	if nick == "" {
		nick = fmt.Sprintf("peer-%d", sess.ID)
	}
	sess.Nickname = nick
	sess.PeerID = uint32(sess.ID)

	sess.Send(replication.Welcome{
		PeerID:   sess.PeerID,
		MatchID:  deps.MatchID,
		TickRate: deps.Config.Network.TickRate,
	}.Encode())
	sess.SetState(packet.StateJoined)

	n := 0
	if deps.Mirror != nil {
		n = deps.Mirror.Snapshot(sess)
	}
	deps.Log.Info(fmt.Sprintf("玩家加入  session=%d  nickname=%s", sess.ID, nick),
		zap.Int("snapshot", n),
	)
	event.Emit(deps.Bus, event.PeerJoined{SessionID: sess.ID, Nickname: nick})
}

// HandleWelcome processes S_WELCOME on a joining peer.
func HandleWelcome(sess *net.Session, r *packet.Reader, deps *Deps) {
	w, err := replication.DecodeWelcome(r)
	if err != nil {
		deps.Log.Warn("無效的 welcome 封包", zap.Error(err))
		sess.Close()
		return
	}
	sess.PeerID = w.PeerID
	sess.SetState(packet.StateJoined)
	deps.Log.Info("已加入對戰",
		zap.Uint32("peer", w.PeerID),
		zap.String("match", w.MatchID),
		zap.Duration("tick", w.TickRate),
	)
	event.Emit(deps.Bus, event.Welcomed{PeerID: w.PeerID, MatchID: w.MatchID})
}
