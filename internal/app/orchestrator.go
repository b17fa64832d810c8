package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Persister receives writes for the optional store. Calls must not block;
// the relay never waits on storage.
type Persister interface {
	SaveRoom(meta domain.RoomMeta)
	AddMember(room domain.RoomCode, identity domain.Identity)
	RemoveMember(room domain.RoomCode, identity domain.Identity)
	AppendMessage(room domain.RoomCode, raw json.RawMessage)
}

// HistoryReader loads stored chat for late joiners.
type HistoryReader interface {
	Messages(ctx context.Context, room domain.RoomCode, limit int) ([]json.RawMessage, error)
}

type nopPersister struct{}

func (nopPersister) SaveRoom(domain.RoomMeta) {}
func (nopPersister) AddMember(domain.RoomCode, domain.Identity) {}
func (nopPersister) RemoveMember(domain.RoomCode, domain.Identity) {}
func (nopPersister) AppendMessage(domain.RoomCode, json.RawMessage) {}

type Options struct {
	JoinPolicy   JoinPolicy
	CreatePolicy CreatePolicy
	Policy       Policy
	Persister    Persister
	History      HistoryReader
	HistoryLimit int
}

// Orchestrator is the room coordination service. Its mutex serializes every
// handler so each one sees and leaves the registry, membership, presence and
// game tables consistent.
type Orchestrator struct {
	mu sync.Mutex

	Registry *Registry
	Rooms    *Membership
	Presence *Presence
	Games    *Games
	Policy   Policy

	out          *Broadcaster
	persist      Persister
	history      HistoryReader
	historyLimit int
}

func New(opts Options) *Orchestrator {
	reg := NewRegistry()
	rooms := NewMembership(opts.JoinPolicy, opts.CreatePolicy)
	out := NewBroadcaster(reg)
	o := &Orchestrator{
		Registry:     reg,
		Rooms:        rooms,
		Presence:     NewPresence(rooms, out),
		Games:        NewGames(),
		Policy:       opts.Policy,
		out:          out,
		persist:      opts.Persister,
		history:      opts.History,
		historyLimit: opts.HistoryLimit,
	}
	if o.Policy == nil {
		o.Policy = SimplePolicy{}
	}
	if o.persist == nil {
		o.persist = nopPersister{}
	}
	return o
}

// Connect registers a new transport connection.
func (o *Orchestrator) Connect(conn core.SignalConnection, clientToken string) core.ConnectionID {
	return o.Registry.OnConnect(conn, clientToken)
}

// Handle decodes a raw frame and dispatches it.
func (o *Orchestrator) Handle(id core.ConnectionID, data []byte) {
	env, err := core.DecodeEnvelope(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "app.relay").Str("conn", string(id)).Msg("bad frame")
		return
	}
	o.HandleEvent(id, env)
}

// HandleEvent runs one inbound event to completion. Failures stay local: they
// are logged and the event is dropped.
func (o *Orchestrator) HandleEvent(id core.ConnectionID, env core.Envelope) {
	res := o.locked(func() PublishResult { return o.dispatch(id, env) })
	o.applyPolicy(res)
}

func (o *Orchestrator) locked(fn func() PublishResult) (res PublishResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "app.relay").Interface("panic", r).Msg("handler panicked")
			res = PublishResult{}
		}
	}()
	return fn()
}

func (o *Orchestrator) dispatch(id core.ConnectionID, env core.Envelope) PublishResult {
	req := request{id: id, event: env.Event, raw: env.Data}

	switch env.Event {
	case core.EventPing:
		if f, ok := encode(core.EventPong, nil); ok {
			return o.out.Conn(id, core.EventPong, f)
		}
		return PublishResult{}
	case core.EventJoinRoom:
		return o.join(req)
	}

	r, ok := routes[env.Event]
	if !ok {
		log.Warn().Str("module", "app.relay").Str("conn", string(id)).Str("event", string(env.Event)).Msg("unknown event")
		return PublishResult{}
	}
	var sc scope
	if !decodeInto(req, &sc) {
		return drop(req, "malformed payload")
	}
	req.roomID = sc.RoomID
	if req.roomID == "" {
		return drop(req, "missing roomId")
	}
	claim, ok := o.Registry.Lookup(id)
	if !ok {
		return drop(req, "not joined")
	}
	if string(claim.Room) != req.roomID {
		return drop(req, "room mismatch")
	}
	req.claim = claim
	return r.handle(o, req, r.audience)
}

// applyPolicy acts on sends that hit a full buffer, outside the lock.
func (o *Orchestrator) applyPolicy(res PublishResult) {
	kicked := make(map[core.ConnectionID]struct{})
	for _, d := range res.Dropped {
		if _, done := kicked[d.Target.ID]; done {
			continue
		}
		switch o.Policy.OnBackPressure(d.Event, d.Target) {
		case KickMember:
			kicked[d.Target.ID] = struct{}{}
			log.Warn().Str("module", "app.policy").Str("conn", string(d.Target.ID)).Str("event", string(d.Event)).Msg("slow connection kicked")
			d.Target.Conn.Close()
			o.Disconnect(d.Target.ID)
		case DropFrame, NoAction:
		}
	}
}

// CreateRoom registers a room ahead of any join.
func (o *Orchestrator) CreateRoom(code domain.RoomCode, createdBy string) error {
	meta := domain.RoomMeta{Code: code, CreatedAt: time.Now(), CreatedBy: createdBy}
	if err := o.Rooms.CreateRoom(code, meta); err != nil {
		return err
	}
	o.persist.SaveRoom(meta)
	return nil
}

// RoomSummary is the HTTP view of a room.
type RoomSummary struct {
	RoomInfo
	Members []domain.Identity      `json:"members"`
	Game    *domain.GameDescriptor `json:"game,omitempty"`
}

// Summary snapshots a room under the orchestrator lock so the roster and the
// game belong to the same moment.
func (o *Orchestrator) Summary(code domain.RoomCode) (RoomSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	info, ok := o.Rooms.Info(code)
	if !ok {
		return RoomSummary{}, false
	}
	s := RoomSummary{RoomInfo: info, Members: o.Rooms.ListMembers(code)}
	if d, ok := o.Games.Active(code); ok {
		s.Game = &d
	}
	return s, true
}

func (o *Orchestrator) History(ctx context.Context, code domain.RoomCode, limit int) ([]json.RawMessage, error) {
	if o.history == nil {
		return []json.RawMessage{}, nil
	}
	if limit <= 0 || limit > o.historyLimit {
		limit = o.historyLimit
	}
	return o.history.Messages(ctx, code, limit)
}
