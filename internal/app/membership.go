package app

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomExists  = errors.New("room already exists")
	ErrUnknownRoom = errors.New("unknown room")
)

type roomEntry struct {
	meta    domain.RoomMeta
	order   []domain.Identity
	members map[domain.Identity]*domain.Member
	// emptySince is set while the room has no members.
	emptySince time.Time
	everJoined bool
}

// RoomInfo is a read-only view for APIs.
type RoomInfo struct {
	Code        domain.RoomCode `json:"roomId"`
	MemberCount int             `json:"memberCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Membership is the per-room set of active identities. Each identity
// carries a connection count so a second tab does not duplicate it and the
// first tab closing does not remove it.
type Membership struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomCode]*roomEntry
	join   JoinPolicy
	create CreatePolicy
	now    func() time.Time
}

func NewMembership(join JoinPolicy, create CreatePolicy) *Membership {
	return &Membership{
		rooms:  make(map[domain.RoomCode]*roomEntry),
		join:   join,
		create: create,
		now:    time.Now,
	}
}

func (m *Membership) newEntry(meta domain.RoomMeta) *roomEntry {
	now := m.now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	return &roomEntry{
		meta:       meta,
		members:    make(map[domain.Identity]*domain.Member),
		emptySince: now,
	}
}

func (m *Membership) CreateRoom(code domain.RoomCode, meta domain.RoomMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[code]; ok {
		if m.create == CreateExclusive {
			return ErrRoomExists
		}
		return nil
	}
	meta.Code = code
	m.rooms[code] = m.newEntry(meta)
	log.Info().Str("module", "app.membership").Str("room", string(code)).Msg("room created")
	return nil
}

// AddMember inserts identity. first reports whether the identity was not a
// member before this call.
func (m *Membership) AddMember(code domain.RoomCode, identity domain.Identity) (first bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[code]
	if !ok {
		if m.join == JoinRequiresRoom {
			return false, ErrUnknownRoom
		}
		r = m.newEntry(domain.RoomMeta{Code: code})
		m.rooms[code] = r
		log.Info().Str("module", "app.membership").Str("room", string(code)).Msg("room created on join")
	}
	r.everJoined = true
	r.emptySince = time.Time{}
	if mem, ok := r.members[identity]; ok {
		mem.Connections++
		return false, nil
	}
	r.members[identity] = domain.NewMember(identity, m.now())
	r.order = append(r.order, identity)
	log.Info().Str("module", "app.membership").Str("room", string(code)).Str("identity", string(identity)).Msg("member added")
	return true, nil
}

// RemoveMember drops one connection of identity. last reports whether the
// identity left the room. Unknown rooms and identities are ignored.
func (m *Membership) RemoveMember(code domain.RoomCode, identity domain.Identity) (last bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[code]
	if !ok {
		return false
	}
	mem, ok := r.members[identity]
	if !ok {
		return false
	}
	mem.Connections--
	if mem.Connections > 0 {
		return false
	}
	delete(r.members, identity)
	if i := slices.Index(r.order, identity); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	if len(r.members) == 0 {
		r.emptySince = m.now()
	}
	log.Info().Str("module", "app.membership").Str("room", string(code)).Str("identity", string(identity)).Msg("member removed")
	return true
}

// ListMembers returns the members in insertion order.
func (m *Membership) ListMembers(code domain.RoomCode) []domain.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok {
		return []domain.Identity{}
	}
	return slices.Clone(r.order)
}

func (m *Membership) IsMember(code domain.RoomCode, identity domain.Identity) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok {
		return false
	}
	_, ok = r.members[identity]
	return ok
}

func (m *Membership) Exists(code domain.RoomCode) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[code]
	return ok
}

func (m *Membership) Info(code domain.RoomCode) (RoomInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok {
		return RoomInfo{}, false
	}
	return RoomInfo{Code: code, MemberCount: len(r.members), CreatedAt: r.meta.CreatedAt}, true
}

func (m *Membership) Rooms() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for code, r := range m.rooms {
		out = append(out, RoomInfo{Code: code, MemberCount: len(r.members), CreatedAt: r.meta.CreatedAt})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// Expired lists empty rooms due for eviction at now. A room that had members
// expires grace after the last one left; a room nobody joined expires unused
// after creation.
func (m *Membership) Expired(now time.Time, grace, unused time.Duration) []domain.RoomCode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.RoomCode
	for code, r := range m.rooms {
		if len(r.members) > 0 || r.emptySince.IsZero() {
			continue
		}
		ttl := grace
		if !r.everJoined {
			ttl = unused
		}
		if now.Sub(r.emptySince) >= ttl {
			out = append(out, code)
		}
	}
	return out
}

// Evict removes a room if it is still empty.
func (m *Membership) Evict(code domain.RoomCode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[code]
	if !ok || len(r.members) > 0 {
		return false
	}
	delete(m.rooms, code)
	log.Info().Str("module", "app.membership").Str("room", string(code)).Msg("room evicted")
	return true
}
