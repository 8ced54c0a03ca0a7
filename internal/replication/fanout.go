package replication

// Peers enumerates the sinks of every joined peer other than the host.
type Peers interface {
	EachJoined(fn func(s Sink))
}

// Fanout is the host's Broadcaster. Each message is applied to the host's
// own mirror first and then queued on every joined peer's session, so all
// peers see the same order.
type Fanout struct {
	local *Mirror
	peers Peers
	stats Stats
}

func NewFanout(local *Mirror, peers Peers, stats Stats) *Fanout {
	if stats == nil {
		stats = nopStats{}
	}
	return &Fanout{local: local, peers: peers, stats: stats}
}

func (f *Fanout) Broadcast(m Message) {
	if f.local != nil {
		f.local.Apply(m)
	}
	if f.peers != nil {
		data := m.Encode()
		f.peers.EachJoined(func(s Sink) { s.Send(data) })
	}
	f.stats.Broadcasted(name(m))
}
