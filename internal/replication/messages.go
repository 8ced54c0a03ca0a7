package replication

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/ecs"
	"github.com/l1jgo/arena/internal/net/packet"
	"github.com/l1jgo/arena/internal/pool"
)

// ErrMalformed is returned when a packet is truncated or carries invalid fields.
var ErrMalformed = errors.New("malformed packet")

// Message is anything that can be written to a session as one packet.
type Message interface {
	Opcode() byte
	Encode() []byte
}

// Hello is the first packet a joining peer sends.
type Hello struct {
	Nickname string
}

// Welcome answers Hello and completes the join handshake.
type Welcome struct {
	PeerID   uint32
	MatchID  string
	TickRate time.Duration
}

// RequestAllocate asks the host to allocate on the caller's behalf.
type RequestAllocate struct {
	Kind     pool.Kind
	Category pool.Category
	Pose     component.Pose
	Config   Config
}

// RequestRelease asks the host to release on the caller's behalf.
type RequestRelease struct {
	Kind     pool.Kind
	Category pool.Category
	ID       ecs.EntityID
}

// Spawn announces a newly constructed instance and its category.
type Spawn struct {
	ID       ecs.EntityID
	Kind     pool.Kind
	Category pool.Category
}

// Activate makes an instance visible at Pose.
type Activate struct {
	ID   ecs.EntityID
	Pose component.Pose
}

// Deactivate hides an instance; it stays constructed.
type Deactivate struct {
	ID ecs.EntityID
}

// Remove destroys an instance on every peer.
type Remove struct {
	ID ecs.EntityID
}

func (Hello) Opcode() byte           { return packet.C_OPCODE_HELLO }
func (Welcome) Opcode() byte         { return packet.S_OPCODE_WELCOME }
func (RequestAllocate) Opcode() byte { return packet.C_OPCODE_REQUEST_ALLOCATE }
func (RequestRelease) Opcode() byte  { return packet.C_OPCODE_REQUEST_RELEASE }
func (Spawn) Opcode() byte           { return packet.S_OPCODE_SPAWN }
func (Activate) Opcode() byte        { return packet.S_OPCODE_ACTIVATE }
func (Deactivate) Opcode() byte      { return packet.S_OPCODE_DEACTIVATE }
func (Remove) Opcode() byte          { return packet.S_OPCODE_REMOVE }

func (m Hello) Encode() []byte {
	w := packet.NewWriterWithOpcode(m.Opcode())
	w.WriteS(m.Nickname)
	return w.Bytes()
}

func (m Welcome) Encode() []byte {
	w := packet.NewWriterWithOpcode(m.Opcode())
	w.WriteDU(m.PeerID)
	w.WriteS(m.MatchID)
	w.WriteD(int32(m.TickRate / time.Millisecond))
	return w.Bytes()
}

// Encode writes the request. A config that cannot be marshalled is dropped
// and the request is still sent; see MarshalRequest for the strict variant.
func (m RequestAllocate) Encode() []byte {
	b, err := MarshalRequest(m)
	if err != nil {
		m.Config = Config{}
		b, _ = MarshalRequest(m)
	}
	return b
}

// MarshalRequest encodes m and reports config encoding failures.
func MarshalRequest(m RequestAllocate) ([]byte, error) {
	blob, err := MarshalConfig(m.Config)
	if err != nil {
		return nil, err
	}
	if len(blob) > math.MaxUint16 {
		return nil, fmt.Errorf("config blob too large: %d bytes", len(blob))
	}
	w := packet.NewWriterWithOpcode(m.Opcode())
	w.WriteC(byte(m.Kind))
	w.WriteS(string(m.Category))
	writePose(w, m.Pose)
	w.WriteH(uint16(len(blob)))
	w.WriteBytes(blob)
	return w.Bytes(), nil
}

func (m RequestRelease) Encode() []byte {
	w := packet.NewWriterWithOpcode(m.Opcode())
	w.WriteC(byte(m.Kind))
	w.WriteS(string(m.Category))
	w.WriteQ(uint64(m.ID))
	return w.Bytes()
}

func (m Spawn) Encode() []byte {
	w := packet.NewWriterWithOpcode(m.Opcode())
	w.WriteQ(uint64(m.ID))
	w.WriteC(byte(m.Kind))
	w.WriteS(string(m.Category))
	return w.Bytes()
}

func (m Activate) Encode() []byte {
	w := packet.NewWriterWithOpcode(m.Opcode())
	w.WriteQ(uint64(m.ID))
	writePose(w, m.Pose)
	return w.Bytes()
}

func (m Deactivate) Encode() []byte {
	w := packet.NewWriterWithOpcode(m.Opcode())
	w.WriteQ(uint64(m.ID))
	return w.Bytes()
}

func (m Remove) Encode() []byte {
	w := packet.NewWriterWithOpcode(m.Opcode())
	w.WriteQ(uint64(m.ID))
	return w.Bytes()
}

func writePose(w *packet.Writer, p component.Pose) {
	w.WriteF(p.Position.X)
	w.WriteF(p.Position.Y)
	w.WriteF(p.Position.Z)
	w.WriteF(p.Rotation.X)
	w.WriteF(p.Rotation.Y)
	w.WriteF(p.Rotation.Z)
	w.WriteF(p.Rotation.W)
}

func readPose(r *packet.Reader) component.Pose {
	var p component.Pose
	p.Position.X = r.ReadF()
	p.Position.Y = r.ReadF()
	p.Position.Z = r.ReadF()
	p.Rotation.X = r.ReadF()
	p.Rotation.Y = r.ReadF()
	p.Rotation.Z = r.ReadF()
	p.Rotation.W = r.ReadF()
	return p
}

func checked(r *packet.Reader, what string) error {
	if r.Overrun() {
		return fmt.Errorf("decode %s: %w", what, ErrMalformed)
	}
	return nil
}

func DecodeHello(r *packet.Reader) (Hello, error) {
	m := Hello{Nickname: r.ReadS()}
	return m, checked(r, "hello")
}

func DecodeWelcome(r *packet.Reader) (Welcome, error) {
	m := Welcome{PeerID: uint32(r.ReadD()), MatchID: r.ReadS()}
	m.TickRate = time.Duration(r.ReadD()) * time.Millisecond
	return m, checked(r, "welcome")
}

func DecodeRequestAllocate(r *packet.Reader) (RequestAllocate, error) {
	m := RequestAllocate{Kind: pool.Kind(r.ReadC()), Category: pool.Category(r.ReadS())}
	m.Pose = readPose(r)
	blob := r.ReadBytes(int(r.ReadH()))
	if err := checked(r, "request allocate"); err != nil {
		return m, err
	}
	if !m.Kind.Valid() {
		return m, fmt.Errorf("decode request allocate: kind %d: %w", m.Kind, ErrMalformed)
	}
	cfg, err := UnmarshalConfig(blob)
	if err != nil {
		return m, fmt.Errorf("decode request allocate: %w: %v", ErrMalformed, err)
	}
	m.Config = cfg
	return m, nil
}

func DecodeRequestRelease(r *packet.Reader) (RequestRelease, error) {
	m := RequestRelease{Kind: pool.Kind(r.ReadC()), Category: pool.Category(r.ReadS())}
	m.ID = ecs.EntityID(r.ReadQ())
	if err := checked(r, "request release"); err != nil {
		return m, err
	}
	if !m.Kind.Valid() {
		return m, fmt.Errorf("decode request release: kind %d: %w", m.Kind, ErrMalformed)
	}
	return m, nil
}

func DecodeSpawn(r *packet.Reader) (Spawn, error) {
	m := Spawn{ID: ecs.EntityID(r.ReadQ())}
	m.Kind = pool.Kind(r.ReadC())
	m.Category = pool.Category(r.ReadS())
	return m, checked(r, "spawn")
}

func DecodeActivate(r *packet.Reader) (Activate, error) {
	m := Activate{ID: ecs.EntityID(r.ReadQ())}
	m.Pose = readPose(r)
	return m, checked(r, "activate")
}

func DecodeDeactivate(r *packet.Reader) (Deactivate, error) {
	m := Deactivate{ID: ecs.EntityID(r.ReadQ())}
	return m, checked(r, "deactivate")
}

func DecodeRemove(r *packet.Reader) (Remove, error) {
	m := Remove{ID: ecs.EntityID(r.ReadQ())}
	return m, checked(r, "remove")
}

// DecodeBroadcast decodes any host → peer replication packet.
func DecodeBroadcast(data []byte) (Message, error) {
	r := packet.NewReader(data)
	switch r.Opcode() {
	case packet.S_OPCODE_SPAWN:
		return DecodeSpawn(r)
	case packet.S_OPCODE_ACTIVATE:
		return DecodeActivate(r)
	case packet.S_OPCODE_DEACTIVATE:
		return DecodeDeactivate(r)
	case packet.S_OPCODE_REMOVE:
		return DecodeRemove(r)
	default:
		return nil, fmt.Errorf("opcode 0x%02X is not a broadcast: %w", r.Opcode(), ErrMalformed)
	}
}

// name is the metric label of a broadcast message.
func name(m Message) string {
	switch m.(type) {
	case Spawn:
		return "spawn"
	case Activate:
		return "activate"
	case Deactivate:
		return "deactivate"
	case Remove:
		return "remove"
	default:
		return fmt.Sprintf("0x%02X", m.Opcode())
	}
}
