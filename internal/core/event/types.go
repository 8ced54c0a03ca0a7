package event

import "github.com/l1jgo/arena/internal/pool"

// PoolsReady is emitted by the host once every registry finished warm-up.
type PoolsReady struct {
	Kinds []pool.Kind
}

// PeerJoined is emitted by the host after a peer completed the hello exchange.
type PeerJoined struct {
	SessionID uint64
	Nickname  string
}

// PeerLeft is emitted when a session closes.
type PeerLeft struct {
	SessionID uint64
}

// Welcomed is emitted on a non-authoritative peer when the host accepted it.
type Welcomed struct {
	PeerID  uint32
	MatchID string
}
