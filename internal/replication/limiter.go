package replication

import (
	"time"

	"golang.org/x/time/rate"
)

// RequestLimiter caps how many forwarded requests the host accepts from each
// peer. Requests over the limit are dropped silently.
type RequestLimiter struct {
	limit rate.Limit
	burst int
	peers map[uint64]*rate.Limiter
}

// NewRequestLimiter returns a limiter allowing perSecond requests per peer
// with the given burst. A nil limiter, or perSecond <= 0, allows everything.
func NewRequestLimiter(perSecond float64, burst int) *RequestLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &RequestLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		peers: make(map[uint64]*rate.Limiter),
	}
}

func (l *RequestLimiter) Allow(session uint64) bool {
	return l.AllowAt(session, time.Now())
}

// AllowAt is Allow with an explicit clock.
func (l *RequestLimiter) AllowAt(session uint64, now time.Time) bool {
	if l == nil {
		return true
	}
	lim, ok := l.peers[session]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.peers[session] = lim
	}
	return lim.AllowN(now, 1)
}

// Forget drops the state of a departed peer.
func (l *RequestLimiter) Forget(session uint64) {
	if l == nil {
		return
	}
	delete(l.peers, session)
}
