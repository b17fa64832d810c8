package app

import (
	"errors"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Dropped is a send that hit a full buffer.
type Dropped struct {
	Event  core.EventName
	Target Target
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []Dropped
}

func (p *PublishResult) Merge(other PublishResult) {
	p.SendTo += other.SendTo
	p.Dropped = append(p.Dropped, other.Dropped...)
}

// Broadcaster fans frames out to registered connections. It resolves
// recipients from the Registry only, so a room broadcast can never reach a
// connection joined elsewhere.
type Broadcaster struct {
	reg *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// Room sends to every connection in room except the one given; pass an empty
// id to include everybody.
func (b *Broadcaster) Room(room domain.RoomCode, except core.ConnectionID, event core.EventName, frame core.Frame) PublishResult {
	res := PublishResult{}
	for _, t := range b.reg.ConnectionsOf(room) {
		if t.ID == except {
			continue
		}
		b.send(&res, event, t, frame)
	}
	log.Debug().Str("module", "app.broadcast").Str("room", string(room)).Str("event", string(event)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// RoomExceptIdentity sends to every connection in room that does not belong
// to who.
func (b *Broadcaster) RoomExceptIdentity(room domain.RoomCode, who domain.Identity, event core.EventName, frame core.Frame) PublishResult {
	res := PublishResult{}
	for _, t := range b.reg.ConnectionsOf(room) {
		if t.Identity == who {
			continue
		}
		b.send(&res, event, t, frame)
	}
	return res
}

func (b *Broadcaster) Conn(id core.ConnectionID, event core.EventName, frame core.Frame) PublishResult {
	res := PublishResult{}
	if t, ok := b.reg.Target(id); ok {
		b.send(&res, event, t, frame)
	}
	return res
}

func (b *Broadcaster) send(res *PublishResult, event core.EventName, t Target, frame core.Frame) {
	err := t.Conn.TrySend(frame)
	switch {
	case err == nil:
		res.SendTo++
	case errors.Is(err, core.ErrBackpressure):
		res.Dropped = append(res.Dropped, Dropped{Event: event, Target: t})
	default:
		// Closed connections are cleaned up by their own disconnect.
		log.Debug().Err(err).Str("module", "app.broadcast").Str("conn", string(t.ID)).Msg("send skipped")
	}
}

// encode logs and swallows encoding failures; an event that cannot be encoded
// is dropped.
func encode(event core.EventName, data any) (core.Frame, bool) {
	f, err := core.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcast").Str("event", string(event)).Msg("encode failed")
		return nil, false
	}
	return f, true
}
