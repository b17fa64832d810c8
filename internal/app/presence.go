package app

import (
	"sync"
	"time"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
)

type typingPayload struct {
	Username domain.Identity `json:"username"`
}

// Presence emits join/leave notices, roster snapshots and typing relays.
// It keeps who is typing per room only so a leaver's indicator can be
// cleared; it owns no timers, the sending client debounces.
type Presence struct {
	mu     sync.Mutex
	rooms  *Membership
	out    *Broadcaster
	typing map[domain.RoomCode]map[domain.Identity]struct{}
	now    func() time.Time
}

func NewPresence(rooms *Membership, out *Broadcaster) *Presence {
	return &Presence{
		rooms:  rooms,
		out:    out,
		typing: make(map[domain.RoomCode]map[domain.Identity]struct{}),
		now:    time.Now,
	}
}

// Joined announces who to the room. The notice skips the joiner; the roster
// goes to everyone including the joiner.
func (p *Presence) Joined(room domain.RoomCode, who domain.Identity, joiner core.ConnectionID) PublishResult {
	res := PublishResult{}
	if f, ok := encode(core.EventReceiveMessage, domain.JoinedNotice(room, who, p.now())); ok {
		res.Merge(p.out.Room(room, joiner, core.EventReceiveMessage, f))
	}
	res.Merge(p.Roster(room))
	return res
}

// Left announces a departure to the remaining members.
func (p *Presence) Left(room domain.RoomCode, who domain.Identity) PublishResult {
	res := PublishResult{}
	if p.clearTyping(room, who) {
		if f, ok := encode(core.EventUserStopTyping, typingPayload{Username: who}); ok {
			res.Merge(p.out.Room(room, "", core.EventUserStopTyping, f))
		}
	}
	if f, ok := encode(core.EventReceiveMessage, domain.LeftNotice(room, who, p.now())); ok {
		res.Merge(p.out.Room(room, "", core.EventReceiveMessage, f))
	}
	res.Merge(p.Roster(room))
	return res
}

// Roster sends the full member list to the room.
func (p *Presence) Roster(room domain.RoomCode) PublishResult {
	f, ok := encode(core.EventOnlineUsers, p.rooms.ListMembers(room))
	if !ok {
		return PublishResult{}
	}
	return p.out.Room(room, "", core.EventOnlineUsers, f)
}

// Typing relays user-typing to everyone but the typing identity. Repeats are
// relayed again; clients treat them idempotently.
func (p *Presence) Typing(room domain.RoomCode, who domain.Identity) PublishResult {
	p.mu.Lock()
	set, ok := p.typing[room]
	if !ok {
		set = make(map[domain.Identity]struct{})
		p.typing[room] = set
	}
	set[who] = struct{}{}
	p.mu.Unlock()

	f, ok := encode(core.EventUserTyping, typingPayload{Username: who})
	if !ok {
		return PublishResult{}
	}
	return p.out.RoomExceptIdentity(room, who, core.EventUserTyping, f)
}

func (p *Presence) StopTyping(room domain.RoomCode, who domain.Identity) PublishResult {
	p.clearTyping(room, who)
	f, ok := encode(core.EventUserStopTyping, typingPayload{Username: who})
	if !ok {
		return PublishResult{}
	}
	return p.out.RoomExceptIdentity(room, who, core.EventUserStopTyping, f)
}

func (p *Presence) IsTyping(room domain.RoomCode, who domain.Identity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.typing[room][who]
	return ok
}

func (p *Presence) clearTyping(room domain.RoomCode, who domain.Identity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.typing[room]
	if !ok {
		return false
	}
	if _, ok := set[who]; !ok {
		return false
	}
	delete(set, who)
	if len(set) == 0 {
		delete(p.typing, room)
	}
	return true
}

// Forget drops typing state of an evicted room.
func (p *Presence) Forget(room domain.RoomCode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.typing, room)
}
