package replication

import (
	"errors"
	"testing"
	"time"

	"github.com/l1jgo/arena/internal/component"
	"github.com/l1jgo/arena/internal/core/ecs"
	"github.com/l1jgo/arena/internal/net/packet"
	"github.com/l1jgo/arena/internal/pool"
	"github.com/l1jgo/arena/internal/vmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	bullet pool.Category = "bullet"
	muzzle pool.Category = "base_muzzle"
)

type entitySpawner struct {
	ids *ecs.EntityPool
}

func (s *entitySpawner) Spawn(_ pool.Kind, _ pool.Category, adopt pool.AdoptFunc) error {
	adopt(s.ids.Create())
	return nil
}

type configRecorder struct {
	configured map[ecs.EntityID]Config
	reset      []ecs.EntityID
}

func (c *configRecorder) Configure(h *pool.Handle, _ component.Pose, cfg Config) {
	c.configured[h.ID] = cfg
}

func (c *configRecorder) Reset(h *pool.Handle) {
	c.reset = append(c.reset, h.ID)
}

// recordSink keeps raw packets.
type recordSink struct {
	packets [][]byte
}

func (s *recordSink) Send(b []byte) { s.packets = append(s.packets, b) }

func (s *recordSink) opcodes() []byte {
	var out []byte
	for _, p := range s.packets {
		out = append(out, p[0])
	}
	return out
}

// mirrorSink decodes broadcasts straight into a peer's mirror.
type mirrorSink struct {
	t      *testing.T
	mirror *Mirror
}

func (s *mirrorSink) Send(b []byte) {
	m, err := DecodeBroadcast(b)
	require.NoError(s.t, err)
	s.mirror.Apply(m)
}

type peerList []Sink

func (l peerList) EachJoined(fn func(Sink)) {
	for _, s := range l {
		fn(s)
	}
}

// hostSink stands in for the host's request handlers.
type hostSink struct {
	t    *testing.T
	exec *LocalExecutor
}

func (s *hostSink) Send(b []byte) {
	r := packet.NewReader(b)
	switch r.Opcode() {
	case packet.C_OPCODE_REQUEST_ALLOCATE:
		m, err := DecodeRequestAllocate(r)
		require.NoError(s.t, err)
		_, _ = s.exec.Allocate(Request{Kind: m.Kind, Category: m.Category, Pose: m.Pose, Config: m.Config})
	case packet.C_OPCODE_REQUEST_RELEASE:
		m, err := DecodeRequestRelease(r)
		require.NoError(s.t, err)
		_ = s.exec.Release(m.Kind, m.Category, m.ID)
	default:
		s.t.Fatalf("unexpected opcode 0x%02X", r.Opcode())
	}
}

type host struct {
	exec     *LocalExecutor
	mirror   *Mirror
	conf     *configRecorder
	destroys []ecs.EntityID
}

func newHost(t *testing.T, peers Peers) *host {
	t.Helper()
	log := zap.NewNop()
	sp := &entitySpawner{ids: ecs.NewEntityPool()}
	regs := []*pool.Registry{
		pool.NewRegistry(pool.KindProjectile, []pool.CategorySpec{{Name: bullet, Size: 2}}, sp, log),
		pool.NewRegistry(pool.KindEffect, []pool.CategorySpec{{Name: muzzle, Size: 1}}, sp, log),
	}
	h := &host{mirror: NewMirror(log), conf: &configRecorder{configured: map[ecs.EntityID]Config{}}}
	h.exec = NewLocalExecutor(regs, h.conf, NewFanout(h.mirror, peers, nil), func(id ecs.EntityID) {
		h.destroys = append(h.destroys, id)
	}, log)
	n, err := h.exec.Warm()
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return h
}

var somewhere = component.Pose{Position: vmath.Vec3{X: 1, Y: 2, Z: 3}, Rotation: vmath.Identity}

func TestLocalExecutorAllocateActivatesEverywhere(t *testing.T) {
	wire := &recordSink{}
	h := newHost(t, peerList{wire})

	assert.Equal(t, 3, h.mirror.Len(), "warm-up announces every constructed instance")
	assert.Empty(t, h.mirror.Active())

	cfg := Config{Shooter: "alice", ShotByPlayer: true, Damage: 10}
	hd, err := h.exec.Allocate(Request{Kind: pool.KindProjectile, Category: bullet, Pose: somewhere, Config: cfg})
	require.NoError(t, err)
	require.NotNil(t, hd)
	assert.True(t, hd.InUse())
	assert.Equal(t, cfg, h.conf.configured[hd.ID])

	e, ok := h.mirror.Get(hd.ID)
	require.True(t, ok)
	assert.True(t, e.Active)
	assert.Equal(t, somewhere, e.Pose)
	assert.Equal(t, bullet, e.Category)

	assert.Equal(t, []byte{
		packet.S_OPCODE_SPAWN, packet.S_OPCODE_SPAWN, packet.S_OPCODE_SPAWN,
		packet.S_OPCODE_ACTIVATE,
	}, wire.opcodes())
}

func TestLocalExecutorGrowthAnnouncesSpawnBeforeActivate(t *testing.T) {
	wire := &recordSink{}
	h := newHost(t, peerList{wire})
	for i := 0; i < 3; i++ {
		_, err := h.exec.Allocate(Request{Kind: pool.KindProjectile, Category: bullet, Pose: somewhere})
		require.NoError(t, err)
	}
	ops := wire.opcodes()
	require.Len(t, ops, 3+3+1)
	assert.Equal(t, []byte{packet.S_OPCODE_SPAWN, packet.S_OPCODE_ACTIVATE}, ops[len(ops)-2:])
}

func TestLocalExecutorReleaseIsIdempotent(t *testing.T) {
	wire := &recordSink{}
	h := newHost(t, peerList{wire})
	hd, err := h.exec.Allocate(Request{Kind: pool.KindProjectile, Category: bullet, Pose: somewhere})
	require.NoError(t, err)
	before := len(wire.packets)

	require.NoError(t, h.exec.Release(pool.KindProjectile, bullet, hd.ID))
	require.NoError(t, h.exec.Release(pool.KindProjectile, bullet, hd.ID))

	assert.Equal(t, []byte{packet.S_OPCODE_DEACTIVATE}, wire.opcodes()[before:])
	assert.Equal(t, []ecs.EntityID{hd.ID}, h.conf.reset)
	e, _ := h.mirror.Get(hd.ID)
	assert.False(t, e.Active)
}

func TestLocalExecutorUnknownCategoryRemovesInstance(t *testing.T) {
	wire := &recordSink{}
	h := newHost(t, peerList{wire})
	stray := ecs.NewEntityID(99, 0)
	h.mirror.Apply(Spawn{ID: stray, Kind: pool.KindProjectile, Category: "laser"})

	err := h.exec.Release(pool.KindProjectile, "laser", stray)
	require.True(t, errors.Is(err, pool.ErrUnregisteredCategory))
	assert.Equal(t, packet.S_OPCODE_REMOVE, wire.opcodes()[len(wire.packets)-1])
	assert.Equal(t, []ecs.EntityID{stray}, h.destroys)
	_, ok := h.mirror.Get(stray)
	assert.False(t, ok)

	err = h.exec.Release(pool.KindArena, "crate", stray)
	assert.True(t, errors.Is(err, pool.ErrUnregisteredCategory), "a kind without registry takes the same path")
}

func TestLocalExecutorWrongCategoryKeepsOwnedHandle(t *testing.T) {
	wire := &recordSink{}
	h := newHost(t, peerList{wire})
	hd, err := h.exec.Allocate(Request{Kind: pool.KindProjectile, Category: bullet, Pose: somewhere})
	require.NoError(t, err)
	before := len(wire.packets)

	err = h.exec.Release(pool.KindProjectile, "ghost", hd.ID)
	assert.True(t, errors.Is(err, pool.ErrUnknownHandle))
	err = h.exec.Release(pool.KindArena, "crate", hd.ID)
	assert.True(t, errors.Is(err, pool.ErrUnknownHandle), "a kind without registry is refused too")

	assert.Empty(t, h.destroys)
	assert.Len(t, wire.packets, before, "nothing is broadcast")
	assert.True(t, hd.InUse())
	e, ok := h.mirror.Get(hd.ID)
	require.True(t, ok)
	assert.True(t, e.Active)

	require.NoError(t, h.exec.Release(pool.KindProjectile, bullet, hd.ID))
	assert.False(t, hd.InUse())
}

func TestLocalExecutorEvictRemovesEverywhere(t *testing.T) {
	wire := &recordSink{}
	h := newHost(t, peerList{wire})
	hd, err := h.exec.Allocate(Request{Kind: pool.KindProjectile, Category: bullet, Pose: somewhere})
	require.NoError(t, err)

	h.exec.Evict(hd.ID)
	assert.Equal(t, packet.S_OPCODE_REMOVE, wire.opcodes()[len(wire.packets)-1])
	_, ok := h.mirror.Get(hd.ID)
	assert.False(t, ok)
	r, _ := h.exec.Registry(pool.KindProjectile)
	_, ok = r.Lookup(hd.ID)
	assert.False(t, ok)

	before := len(wire.packets)
	h.exec.Evict(hd.ID)
	assert.Len(t, wire.packets, before, "unowned ids are ignored")

	for i := 0; i < 3; i++ {
		got, err := h.exec.Allocate(Request{Kind: pool.KindProjectile, Category: bullet, Pose: somewhere})
		require.NoError(t, err)
		assert.NotEqual(t, hd.ID, got.ID)
	}
}

func TestLocalExecutorAllocateUnknownCategory(t *testing.T) {
	wire := &recordSink{}
	h := newHost(t, peerList{wire})
	before := len(wire.packets)

	hd, err := h.exec.Allocate(Request{Kind: pool.KindProjectile, Category: "laser"})
	assert.Nil(t, hd)
	assert.True(t, errors.Is(err, pool.ErrUnregisteredCategory))
	assert.Len(t, wire.packets, before, "nothing is broadcast")
}

func TestRemoteExecutorNeverTouchesLocalState(t *testing.T) {
	log := zap.NewNop()
	shadow := pool.NewShadowRegistry(pool.KindProjectile, log)
	wire := &recordSink{}
	exec := NewRemoteExecutor(wire, nil, log)
	assert.False(t, exec.Authoritative())

	cfg := Config{Shooter: "bob", ShooterPeer: 2, Damage: 25, Params: map[string]float64{"speed": 30}}
	hd, err := exec.Allocate(Request{Kind: pool.KindProjectile, Category: bullet, Pose: somewhere, Config: cfg})
	assert.Nil(t, hd)
	assert.NoError(t, err)
	require.NoError(t, exec.Release(pool.KindProjectile, bullet, ecs.NewEntityID(4, 0)))

	assert.Empty(t, shadow.Categories())
	require.Len(t, wire.packets, 2)

	req, err := DecodeRequestAllocate(packet.NewReader(wire.packets[0]))
	require.NoError(t, err)
	assert.Equal(t, RequestAllocate{Kind: pool.KindProjectile, Category: bullet, Pose: somewhere, Config: cfg}, req)

	rel, err := DecodeRequestRelease(packet.NewReader(wire.packets[1]))
	require.NoError(t, err)
	assert.Equal(t, ecs.NewEntityID(4, 0), rel.ID)
}

// A non-host peer requests a bullet, the host allocates it and
// every peer ends up with the same active set.
func TestForwardedRequestConverges(t *testing.T) {
	log := zap.NewNop()
	peerA := NewMirror(log)
	peerB := NewMirror(log)
	h := newHost(t, nil)
	// Peers join after warm-up and receive the snapshot.
	h.exec.out = NewFanout(h.mirror, peerList{&mirrorSink{t, peerA}, &mirrorSink{t, peerB}}, nil)
	h.mirror.Snapshot(&mirrorSink{t, peerA})
	h.mirror.Snapshot(&mirrorSink{t, peerB})

	fromA := NewRemoteExecutor(&hostSink{t, h.exec}, nil, log)
	_, err := fromA.Allocate(Request{
		Kind: pool.KindProjectile, Category: bullet, Pose: somewhere,
		Config: Config{Shooter: "peer-a", ShotByPlayer: true, Damage: 10},
	})
	require.NoError(t, err)

	active := h.mirror.ActiveIDs()
	require.Len(t, active, 1)
	assert.Equal(t, active, peerA.ActiveIDs())
	assert.Equal(t, active, peerB.ActiveIDs())

	var id ecs.EntityID
	for id = range active {
	}
	assert.Equal(t, "peer-a", h.conf.configured[id].Shooter)
	e, _ := peerB.Get(id)
	assert.Equal(t, bullet, e.Category)
	assert.Equal(t, somewhere, e.Pose)

	require.NoError(t, fromA.Release(pool.KindProjectile, bullet, id))
	assert.Empty(t, h.mirror.ActiveIDs())
	assert.Empty(t, peerA.ActiveIDs())
	assert.Empty(t, peerB.ActiveIDs())
	assert.Equal(t, h.mirror.Len(), peerA.Len())
}

func TestMirrorAppliesUnconditionally(t *testing.T) {
	m := NewMirror(zap.NewNop())
	var seen []string
	m.OnApply(func(msg Message, e Entry) { seen = append(seen, name(msg)) })

	id := ecs.NewEntityID(9, 1)
	m.Apply(Activate{ID: id, Pose: somewhere})
	e, ok := m.Get(id)
	require.True(t, ok)
	assert.True(t, e.Active)

	m.Apply(Deactivate{ID: id})
	m.Apply(Deactivate{ID: id})
	e, _ = m.Get(id)
	assert.False(t, e.Active)

	m.Apply(Remove{ID: id})
	m.Apply(Remove{ID: id})
	assert.Zero(t, m.Len())
	m.Apply(Hello{Nickname: "ignored"})

	assert.Equal(t, []string{"activate", "deactivate", "deactivate", "remove", "remove"}, seen)
}

func TestMirrorSnapshotRebuildsView(t *testing.T) {
	log := zap.NewNop()
	src := NewMirror(log)
	a, b := ecs.NewEntityID(1, 0), ecs.NewEntityID(2, 0)
	src.Apply(Spawn{ID: a, Kind: pool.KindProjectile, Category: bullet})
	src.Apply(Spawn{ID: b, Kind: pool.KindEffect, Category: muzzle})
	src.Apply(Activate{ID: b, Pose: somewhere})

	wire := &recordSink{}
	assert.Equal(t, 3, src.Snapshot(wire))
	assert.Equal(t, []byte{packet.S_OPCODE_SPAWN, packet.S_OPCODE_SPAWN, packet.S_OPCODE_ACTIVATE}, wire.opcodes())

	dst := NewMirror(log)
	for _, p := range wire.packets {
		msg, err := DecodeBroadcast(p)
		require.NoError(t, err)
		dst.Apply(msg)
	}
	assert.Equal(t, src.Active(), dst.Active())
	got, _ := dst.Get(a)
	assert.Equal(t, Entry{ID: a, Kind: pool.KindProjectile, Category: bullet}, got)
}

func TestRequestLimiter(t *testing.T) {
	l := NewRequestLimiter(1, 2)
	now := time.Unix(1000, 0)
	assert.True(t, l.AllowAt(1, now))
	assert.True(t, l.AllowAt(1, now))
	assert.False(t, l.AllowAt(1, now))
	assert.True(t, l.AllowAt(2, now), "limits are per peer")
	assert.True(t, l.AllowAt(1, now.Add(time.Second)))

	l.Forget(1)
	assert.True(t, l.AllowAt(1, now))

	unlimited := NewRequestLimiter(0, 0)
	assert.Nil(t, unlimited)
	assert.True(t, unlimited.Allow(7))
}

func TestDecodeRejectsMalformedPackets(t *testing.T) {
	full := RequestAllocate{Kind: pool.KindProjectile, Category: bullet, Pose: somewhere, Config: Config{Damage: 5}}.Encode()

	_, err := DecodeRequestAllocate(packet.NewReader(full[:len(full)-2]))
	assert.True(t, errors.Is(err, ErrMalformed))

	bad := append([]byte(nil), full...)
	bad[1] = 42
	_, err = DecodeRequestAllocate(packet.NewReader(bad))
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = DecodeBroadcast(Hello{Nickname: "x"}.Encode())
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = DecodeActivate(packet.NewReader([]byte{packet.S_OPCODE_ACTIVATE, 1, 0, 0, 0, 0, 0, 0, 0, 0}))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestWelcomeCarriesTickRate(t *testing.T) {
	in := Welcome{PeerID: 3, MatchID: "m-1", TickRate: 50 * time.Millisecond}
	out, err := DecodeWelcome(packet.NewReader(in.Encode()))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEmptyConfigHasNoBlob(t *testing.T) {
	b, err := MarshalConfig(Config{})
	require.NoError(t, err)
	assert.Empty(t, b)

	c, err := UnmarshalConfig(nil)
	require.NoError(t, err)
	assert.True(t, c.IsZero())
	assert.Equal(t, 2.5, Config{Params: map[string]float64{"x": 2.5}}.Param("x", 0))
	assert.Equal(t, 1.0, c.Param("x", 1))
}
