package handler

import (
	"github.com/l1jgo/arena/internal/net"
	"github.com/l1jgo/arena/internal/net/packet"
	"github.com/l1jgo/arena/internal/replication"
	"go.uber.org/zap"
)

// HandleBroadcast applies S_SPAWN / S_ACTIVATE / S_DEACTIVATE / S_REMOVE to
// the peer's mirror. Broadcasts are applied unconditionally.
func HandleBroadcast(sess *net.Session, r *packet.Reader, deps *Deps) {
	var (
		m   replication.Message
		err error
	)
	switch r.Opcode() {
	case packet.S_OPCODE_SPAWN:
		m, err = replication.DecodeSpawn(r)
	case packet.S_OPCODE_ACTIVATE:
		m, err = replication.DecodeActivate(r)
	case packet.S_OPCODE_DEACTIVATE:
		m, err = replication.DecodeDeactivate(r)
	case packet.S_OPCODE_REMOVE:
		m, err = replication.DecodeRemove(r)
	default:
		return
	}
	if err != nil {
		deps.Log.Warn("無效的廣播封包", zap.Uint8("opcode", r.Opcode()), zap.Error(err))
		return
	}
	deps.Mirror.Apply(m)
}
