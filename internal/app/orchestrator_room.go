package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

const historyTimeout = 2 * time.Second

type joinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

func (o *Orchestrator) join(req request) PublishResult {
	var p joinPayload
	if !decodeInto(req, &p) {
		return drop(req, "malformed payload")
	}
	room, err := domain.NewRoomCode(p.RoomID)
	if err != nil {
		return drop(req, err.Error())
	}
	identity, err := domain.NewIdentity(p.Username)
	if err != nil {
		return drop(req, err.Error())
	}
	target, ok := o.Registry.Target(req.id)
	if !ok {
		return drop(req, "stale connection")
	}
	if _, joined := o.Registry.Lookup(req.id); joined {
		return drop(req, ErrAlreadyJoined.Error())
	}

	first, err := o.Rooms.AddMember(room, identity)
	if err != nil {
		if errors.Is(err, ErrUnknownRoom) {
			log.Info().Str("module", "app.room").Str("conn", string(req.id)).Str("room", string(room)).Msg("join to unknown room dropped")
			return PublishResult{}
		}
		return drop(req, err.Error())
	}
	if err := o.Registry.OnJoin(req.id, room, identity); err != nil {
		o.Rooms.RemoveMember(room, identity)
		return drop(req, err.Error())
	}
	log.Info().Str("module", "app.room").Str("conn", string(req.id)).Str("room", string(room)).Str("identity", string(identity)).Bool("first", first).Msg("member joined")

	var res PublishResult
	if first {
		o.persist.AddMember(room, identity)
		res.Merge(o.Presence.Joined(room, identity, req.id))
	} else {
		res.Merge(o.Presence.Roster(room))
	}
	if d, ok := o.Games.Active(room); ok {
		if f, ok := encode(core.EventGameStarted, d.GameID); ok {
			res.Merge(o.out.Conn(req.id, core.EventGameStarted, f))
		}
		if f, ok := encode(core.EventScoreUpdated, d.Scores); ok {
			res.Merge(o.out.Conn(req.id, core.EventScoreUpdated, f))
		}
	}
	o.sendHistory(target, room)
	return res
}

func decodeInto(req request, v any) bool {
	if len(req.raw) == 0 {
		return false
	}
	return json.Unmarshal(req.raw, v) == nil
}

// sendHistory loads stored messages off the handler path. The history frame
// may arrive after live messages relayed in the meantime.
func (o *Orchestrator) sendHistory(target Target, room domain.RoomCode) {
	if o.history == nil || o.historyLimit <= 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		msgs, err := o.history.Messages(ctx, room, o.historyLimit)
		if err != nil {
			log.Error().Err(err).Str("module", "app.room").Str("room", string(room)).Msg("load history")
			return
		}
		if len(msgs) == 0 {
			return
		}
		f, ok := encode(core.EventMessageHistory, msgs)
		if !ok {
			return
		}
		if err := target.Conn.TrySend(f); err != nil {
			log.Debug().Err(err).Str("module", "app.room").Str("conn", string(target.ID)).Msg("history not delivered")
		}
	}()
}

// Disconnect releases everything a connection held. Repeated calls for the
// same id are no-ops.
func (o *Orchestrator) Disconnect(id core.ConnectionID) {
	res := o.locked(func() PublishResult { return o.leave(id) })
	o.applyPolicy(res)
}

func (o *Orchestrator) leave(id core.ConnectionID) PublishResult {
	claim, ok := o.Registry.OnDisconnect(id)
	if !ok || claim.IsZero() {
		return PublishResult{}
	}
	if !o.Rooms.RemoveMember(claim.Room, claim.Identity) {
		// Another connection still holds the identity.
		return PublishResult{}
	}
	o.persist.RemoveMember(claim.Room, claim.Identity)
	log.Info().Str("module", "app.room").Str("conn", string(id)).Str("room", string(claim.Room)).Str("identity", string(claim.Identity)).Msg("member left")
	return o.Presence.Left(claim.Room, claim.Identity)
}
