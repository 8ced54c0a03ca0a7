package system

import (
	"time"

	coresys "github.com/l1jgo/arena/internal/core/system"
	"github.com/l1jgo/arena/internal/net"
	"github.com/l1jgo/arena/internal/net/packet"
	"go.uber.org/zap"
)

// InputSystem drains packet queues from all sessions and dispatches them
// through the packet registry. Phase 0 (Input).
type InputSystem struct {
	netServer  *net.Server // nil on a joined peer
	registry   *packet.Registry
	store      *net.SessionStore
	maxPerTick int
	onLeave    func(sess *net.Session)
	log        *zap.Logger
}

// NewInputSystem builds the input stage. onLeave runs once for every session
// that closed, after its remaining packets were dispatched.
func NewInputSystem(
	netServer *net.Server,
	registry *packet.Registry,
	store *net.SessionStore,
	maxPerTick int,
	onLeave func(sess *net.Session),
	log *zap.Logger,
) *InputSystem {
	if maxPerTick <= 0 {
		maxPerTick = 32
	}
	return &InputSystem{
		netServer:  netServer,
		registry:   registry,
		store:      store,
		maxPerTick: maxPerTick,
		onLeave:    onLeave,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	// Accept new sessions
	if s.netServer != nil {
		for {
			select {
			case sess := <-s.netServer.NewSessions():
				s.store.Add(sess)
			default:
				goto doneNew
			}
		}
	}
doneNew:

	// Drain packets from each session (up to maxPerTick per session)
	for id, sess := range s.store.Raw() {
		if sess.IsClosed() {
			// Requests sent just before the disconnect still count.
			for i := 0; i < s.maxPerTick; i++ {
				select {
				case data := <-sess.InQueue:
					s.dispatch(sess, data)
				default:
					goto doneClosing
				}
			}
		doneClosing:
			s.log.Info("玩家離線", zap.Uint64("session", id), zap.String("nickname", sess.Nickname))
			if s.onLeave != nil {
				s.onLeave(sess)
			}
			s.store.Remove(id)
			continue
		}

		for i := 0; i < s.maxPerTick; i++ {
			select {
			case data := <-sess.InQueue:
				s.dispatch(sess, data)
			default:
				goto nextSession
			}
		}
	nextSession:
	}

	// 提前 flush：讓 Phase 0 產生的廣播立即進入 OutQueue，
	// Phase 4 的 OutputSystem 會再 flush 剩餘封包。
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

func (s *InputSystem) dispatch(sess *net.Session, data []byte) {
	if err := s.registry.Dispatch(sess, sess.State(), data); err != nil {
		s.log.Debug("封包分派錯誤",
			zap.Uint64("session", sess.ID),
			zap.Error(err),
		)
	}
}
