package app

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/stretchr/testify/require"
)

// fakeConn records frames in memory. full makes every send hit backpressure.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrConnectionClosed
	}
	if f.full {
		return core.ErrBackpressure
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) setFull(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full = v
}

// take returns the decoded envelopes received so far and forgets them.
func (f *fakeConn) take(t *testing.T) []core.Envelope {
	t.Helper()
	f.mu.Lock()
	frames := f.frames
	f.frames = nil
	f.mu.Unlock()

	out := make([]core.Envelope, 0, len(frames))
	for _, fr := range frames {
		env, err := core.DecodeEnvelope(fr)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func eventNames(envs []core.Envelope) []core.EventName {
	out := make([]core.EventName, len(envs))
	for i, e := range envs {
		out[i] = e.Event
	}
	return out
}

func decodeData[T any](t *testing.T, env core.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func send(t *testing.T, o *Orchestrator, id core.ConnectionID, event core.EventName, data any) {
	t.Helper()
	frame, err := core.Encode(event, data)
	require.NoError(t, err)
	o.Handle(id, frame)
}

type client struct {
	id   core.ConnectionID
	conn *fakeConn
}

func connect(o *Orchestrator) client {
	c := &fakeConn{}
	return client{id: o.Connect(c, "test"), conn: c}
}

func joinAs(t *testing.T, o *Orchestrator, room, name string) client {
	t.Helper()
	c := connect(o)
	send(t, o, c.id, core.EventJoinRoom, map[string]string{"roomId": room, "username": name})
	claim, ok := o.Registry.Lookup(c.id)
	require.True(t, ok, "join of %s to %s", name, room)
	require.Equal(t, Claim{Room: domain.RoomCode(room), Identity: domain.Identity(name)}, claim)
	return c
}

// recordingPersister captures persistence calls.
type recordingPersister struct {
	mu       sync.Mutex
	rooms    []domain.RoomMeta
	added    []domain.Identity
	removed  []domain.Identity
	messages []json.RawMessage
}

func (p *recordingPersister) SaveRoom(meta domain.RoomMeta) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms = append(p.rooms, meta)
}

func (p *recordingPersister) AddMember(_ domain.RoomCode, id domain.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, id)
}

func (p *recordingPersister) RemoveMember(_ domain.RoomCode, id domain.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, id)
}

func (p *recordingPersister) AppendMessage(_ domain.RoomCode, raw json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, raw)
}
