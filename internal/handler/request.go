package handler

import (
	"github.com/l1jgo/arena/internal/net"
	"github.com/l1jgo/arena/internal/net/packet"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/replication"
	"go.uber.org/zap"
)

// HandleRequestAllocate processes C_REQUEST_ALLOCATE on the host.
// The requester gets no direct answer: it sees the result through the
// broadcast like everyone else. Over-limit requests are dropped silently.
func HandleRequestAllocate(sess *net.Session, r *packet.Reader, deps *Deps) {
	req, err := replication.DecodeRequestAllocate(r)
	if err != nil {
		deps.Log.Debug("無效的分配請求", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	if !allow(sess, req.Kind, deps) {
		return
	}
	// The shooter always names the requesting session.
	cfg := req.Config
	cfg.Shooter = sess.Nickname
	cfg.ShooterPeer = sess.PeerID

	if _, err := deps.Exec.Allocate(replication.Request{
		Kind:     req.Kind,
		Category: req.Category,
		Pose:     req.Pose,
		Config:   cfg,
	}); err != nil {
		deps.Log.Debug("forwarded allocate failed",
			zap.Uint64("session", sess.ID),
			zap.String("category", string(req.Category)),
			zap.Error(err),
		)
	}
}

// HandleRequestRelease processes C_REQUEST_RELEASE on the host.
func HandleRequestRelease(sess *net.Session, r *packet.Reader, deps *Deps) {
	req, err := replication.DecodeRequestRelease(r)
	if err != nil {
		deps.Log.Debug("無效的釋放請求", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	if !allow(sess, req.Kind, deps) {
		return
	}
	if err := deps.Exec.Release(req.Kind, req.Category, req.ID); err != nil {
		deps.Log.Debug("forwarded release failed",
			zap.Uint64("session", sess.ID),
			zap.String("category", string(req.Category)),
			zap.Error(err),
		)
	}
}

func allow(sess *net.Session, kind pool.Kind, deps *Deps) bool {
	if deps.Limits.Allow(sess.ID) {
		return true
	}
	deps.Metrics.RequestDropped(kind)
	deps.Log.Debug("請求速率超限，已丟棄", zap.Uint64("session", sess.ID), zap.Stringer("kind", kind))
	return false
}
