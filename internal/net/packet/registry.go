package packet

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateHandshake     SessionState = iota // connected, awaiting hello/welcome
	StateJoined                            // part of the match
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateJoined:
		return "Joined"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

var (
	ErrEmptyPacket     = errors.New("empty packet")
	ErrStateNotAllowed = errors.New("opcode not allowed in session state")
	ErrHandlerPanic    = errors.New("handler panic")
)

// HandlerFunc is the callback signature for packet handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, r *Reader)

// stateMask has bit n set when SessionState(n) may use the opcode.
type stateMask uint32

func (m stateMask) has(s SessionState) bool {
	return s >= 0 && s < 32 && m&(1<<uint(s)) != 0
}

type handlerEntry struct {
	fn     HandlerFunc
	states stateMask
}

// Registry maps opcodes to handlers with state-based access control.
// Host and peer each build their own registry over the same opcode space.
type Registry struct {
	handlers [256]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{log: log}
}

// Register maps an opcode to a handler, restricted to the given session
// states. A second registration for the same opcode replaces the first.
func (reg *Registry) Register(opcode byte, states []SessionState, fn HandlerFunc) {
	var mask stateMask
	for _, s := range states {
		mask |= 1 << uint(s)
	}
	reg.handlers[opcode] = &handlerEntry{fn: fn, states: mask}
}

// Has reports whether a handler is registered for opcode.
func (reg *Registry) Has(opcode byte) bool {
	return reg.handlers[opcode] != nil
}

// Dispatch finds the handler for the opcode in data[0], checks the session
// state and calls it. Unknown opcodes are dropped without error.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyPacket
	}
	opcode := data[0]
	entry := reg.handlers[opcode]
	if entry == nil {
		reg.log.Debug("未知操作碼", zap.Uint8("opcode", opcode), zap.Stringer("state", state))
		return nil
	}
	if !entry.states.has(state) {
		reg.log.Warn("操作碼在此狀態下不允許",
			zap.Uint8("opcode", opcode),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("opcode 0x%02x in %s: %w", opcode, state, ErrStateNotAllowed)
	}
	return reg.safeCall(entry.fn, sess, NewReader(data), opcode)
}

// safeCall runs a handler with panic recovery so one bad packet cannot take
// down the game loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader, opcode byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.Uint8("opcode", opcode),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("opcode 0x%02x: %w: %v", opcode, ErrHandlerPanic, rec)
		}
	}()
	fn(sess, r)
	return nil
}
