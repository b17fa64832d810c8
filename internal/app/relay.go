package app

import (
	"encoding/json"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Audience is who receives the outcome of an event.
type Audience int

const (
	// AudienceOthers is the sender's room without the sender.
	AudienceOthers Audience = iota
	// AudienceRoom is the sender's room including the sender.
	AudienceRoom
	// AudienceSender is the sender alone.
	AudienceSender
)

func (a Audience) String() string {
	switch a {
	case AudienceOthers:
		return "others"
	case AudienceRoom:
		return "room"
	case AudienceSender:
		return "sender"
	default:
		return "unknown"
	}
}

// scope is the only part of a routed payload read before dispatch. Each
// handler decodes the fields it needs itself, so other keys may carry any
// JSON type.
type scope struct {
	RoomID string `json:"roomId"`
}

type messageFields struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type gameFields struct {
	GameID string `json:"gameId"`
}

type scoreFields struct {
	Username string `json:"username"`
}

type request struct {
	id     core.ConnectionID
	claim  Claim
	event  core.EventName
	raw    json.RawMessage
	roomID string
}

func (r request) except(a Audience) core.ConnectionID {
	if a == AudienceOthers {
		return r.id
	}
	return ""
}

type route struct {
	audience Audience
	handle   func(o *Orchestrator, req request, a Audience) PublishResult
}

// routes is the relay table for events of joined connections.
var routes = map[core.EventName]route{
	core.EventSendMessage: {AudienceOthers, (*Orchestrator).relayMessage},
	core.EventTyping:      {AudienceOthers, (*Orchestrator).relayTyping},
	core.EventStopTyping:  {AudienceOthers, (*Orchestrator).relayStopTyping},
	core.EventStartGame:   {AudienceRoom, (*Orchestrator).relayStartGame},
	core.EventGameData:    {AudienceOthers, (*Orchestrator).relayGameData},
	core.EventUpdateScore: {AudienceRoom, (*Orchestrator).relayUpdateScore},
	core.EventResetScores: {AudienceRoom, (*Orchestrator).relayResetScores},
	core.EventLeaveGame:   {AudienceRoom, (*Orchestrator).relayLeaveGame},
}

// AudienceOf reports the recipients of a routed event.
func AudienceOf(event core.EventName) (Audience, bool) {
	r, ok := routes[event]
	return r.audience, ok
}

func (o *Orchestrator) emit(req request, a Audience, event core.EventName, frame core.Frame) PublishResult {
	switch a {
	case AudienceSender:
		return o.out.Conn(req.id, event, frame)
	default:
		return o.out.Room(req.claim.Room, req.except(a), event, frame)
	}
}

func drop(req request, reason string) PublishResult {
	log.Debug().Str("module", "app.relay").Str("conn", string(req.id)).Str("event", string(req.event)).Str("reason", reason).Msg("event dropped")
	return PublishResult{}
}

// relayMessage forwards the client's message object as sent. The username is
// always the sender's identity; a missing or different one is replaced.
func (o *Orchestrator) relayMessage(req request, a Audience) PublishResult {
	var in messageFields
	if !decodeInto(req, &in) {
		return drop(req, "malformed message")
	}
	if in.Message == "" {
		return drop(req, "empty message")
	}
	raw := req.raw
	if in.Username != string(req.claim.Identity) {
		filled, err := withField(raw, "username", req.claim.Identity)
		if err != nil {
			return drop(req, "bad message object")
		}
		raw = filled
	}
	frame, err := core.EncodeRaw(core.EventReceiveMessage, raw)
	if err != nil {
		return drop(req, err.Error())
	}
	res := o.emit(req, a, core.EventReceiveMessage, frame)
	o.persist.AppendMessage(req.claim.Room, raw)
	return res
}

// Typing events skip every connection of the sender's identity, so other
// tabs of the same person never see themselves typing.
func (o *Orchestrator) relayTyping(req request, _ Audience) PublishResult {
	return o.Presence.Typing(req.claim.Room, req.claim.Identity)
}

func (o *Orchestrator) relayStopTyping(req request, _ Audience) PublishResult {
	return o.Presence.StopTyping(req.claim.Room, req.claim.Identity)
}

func (o *Orchestrator) relayStartGame(req request, a Audience) PublishResult {
	var in gameFields
	if !decodeInto(req, &in) {
		return drop(req, "malformed game start")
	}
	if in.GameID == "" {
		return drop(req, "missing gameId")
	}
	d := o.Games.Start(req.claim.Room, domain.GameID(in.GameID), o.Rooms.ListMembers(req.claim.Room))
	frame, ok := encode(core.EventGameStarted, d.GameID)
	if !ok {
		return PublishResult{}
	}
	return o.emit(req, a, core.EventGameStarted, frame)
}

// relayGameData passes the payload through byte for byte.
func (o *Orchestrator) relayGameData(req request, a Audience) PublishResult {
	frame, err := core.EncodeRaw(core.EventGameData, req.raw)
	if err != nil {
		return drop(req, err.Error())
	}
	return o.emit(req, a, core.EventGameData, frame)
}

func (o *Orchestrator) relayUpdateScore(req request, a Audience) PublishResult {
	var in scoreFields
	if !decodeInto(req, &in) {
		return drop(req, "malformed score")
	}
	who := req.claim.Identity
	if in.Username != "" {
		id, err := domain.NewIdentity(in.Username)
		if err != nil {
			return drop(req, err.Error())
		}
		who = id
	}
	if !o.Rooms.IsMember(req.claim.Room, who) {
		return drop(req, "score for non-member")
	}
	d, err := o.Games.Score(req.claim.Room, who)
	if err != nil {
		return drop(req, err.Error())
	}
	frame, ok := encode(core.EventScoreUpdated, d.Scores)
	if !ok {
		return PublishResult{}
	}
	return o.emit(req, a, core.EventScoreUpdated, frame)
}

func (o *Orchestrator) relayResetScores(req request, a Audience) PublishResult {
	d, err := o.Games.Reset(req.claim.Room, o.Rooms.ListMembers(req.claim.Room))
	if err != nil {
		return drop(req, err.Error())
	}
	frame, ok := encode(core.EventScoresReset, d.Scores)
	if !ok {
		return PublishResult{}
	}
	return o.emit(req, a, core.EventScoresReset, frame)
}

// relayLeaveGame closes the overlay for everyone even if no game was
// recorded, so a client out of sync still gets its overlay dismissed.
func (o *Orchestrator) relayLeaveGame(req request, a Audience) PublishResult {
	o.Games.Close(req.claim.Room)
	frame, ok := encode(core.EventGameClosed, nil)
	if !ok {
		return PublishResult{}
	}
	return o.emit(req, a, core.EventGameClosed, frame)
}

func withField(raw json.RawMessage, key string, value any) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	obj[key] = v
	return json.Marshal(obj)
}
