package app

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrAlreadyJoined     = errors.New("connection already joined a room")
)

// Claim is the (room, identity) pair a connection joined as.
type Claim struct {
	Room     domain.RoomCode
	Identity domain.Identity
}

func (c Claim) IsZero() bool { return c.Room == "" && c.Identity == "" }

// Target is a fan-out destination. Identity is empty until the connection
// joins.
type Target struct {
	ID       core.ConnectionID
	Identity domain.Identity
	Conn     core.SignalConnection
}

type connEntry struct {
	conn        core.SignalConnection
	clientToken string
	claim       Claim
	seq         uint64
}

// Registry maps live connections to the room and identity they claim.
type Registry struct {
	mu     sync.RWMutex
	conns  map[core.ConnectionID]*connEntry
	byRoom map[domain.RoomCode]map[core.ConnectionID]struct{}
	seq    uint64
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[core.ConnectionID]*connEntry),
		byRoom: make(map[domain.RoomCode]map[core.ConnectionID]struct{}),
	}
}

func (r *Registry) OnConnect(conn core.SignalConnection, clientToken string) core.ConnectionID {
	id := core.NewConnectionID()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.conns[id] = &connEntry{conn: conn, clientToken: clientToken, seq: r.seq}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("client", clientToken).Msg("connected")
	return id
}

// OnJoin records the claim. It can succeed once per connection.
func (r *Registry) OnJoin(id core.ConnectionID, room domain.RoomCode, identity domain.Identity) error {
	if room == "" {
		return domain.ErrRoomCodeEmpty
	}
	if identity == "" {
		return domain.ErrIdentityEmpty
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if !e.claim.IsZero() {
		return ErrAlreadyJoined
	}
	e.claim = Claim{Room: room, Identity: identity}
	set, ok := r.byRoom[room]
	if !ok {
		set = make(map[core.ConnectionID]struct{})
		r.byRoom[room] = set
	}
	set[id] = struct{}{}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", string(room)).Str("identity", string(identity)).Msg("joined")
	return nil
}

// Lookup returns the claim of a joined connection.
func (r *Registry) Lookup(id core.ConnectionID) (Claim, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.claim.IsZero() {
		return Claim{}, false
	}
	return e.claim, true
}

// Target returns the transport of a connection, joined or not.
func (r *Registry) Target(id core.ConnectionID) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return Target{}, false
	}
	return Target{ID: id, Identity: e.claim.Identity, Conn: e.conn}, true
}

// OnDisconnect removes the connection and hands back its last claim. Only the
// first call for an id reports ok; the claim is zero if it never joined.
func (r *Registry) OnDisconnect(id core.ConnectionID) (Claim, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return Claim{}, false
	}
	delete(r.conns, id)
	if set, ok := r.byRoom[e.claim.Room]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byRoom, e.claim.Room)
		}
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("room", string(e.claim.Room)).Msg("disconnected")
	return e.claim, true
}

// ConnectionsOf lists the connections joined to room in join order.
func (r *Registry) ConnectionsOf(room domain.RoomCode) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byRoom[room]
	out := make([]Target, 0, len(set))
	seqs := make(map[core.ConnectionID]uint64, len(set))
	for id := range set {
		e := r.conns[id]
		out = append(out, Target{ID: id, Identity: e.claim.Identity, Conn: e.conn})
		seqs[id] = e.seq
	}
	slices.SortFunc(out, func(a, b Target) int {
		return cmp.Compare(seqs[a.ID], seqs[b.ID])
	})
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
