package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type EventName string

// Inbound events.
const (
	EventJoinRoom    EventName = "join-room"
	EventSendMessage EventName = "send-message"
	EventTyping      EventName = "typing"
	EventStopTyping  EventName = "stop-typing"
	EventStartGame   EventName = "start-game"
	EventGameData    EventName = "game-data"
	EventUpdateScore EventName = "update-score"
	EventResetScores EventName = "reset-scores"
	EventLeaveGame   EventName = "leave-game"
	EventPing        EventName = "ping"
)

// Outbound events. game-data is relayed under its inbound name.
const (
	EventOnlineUsers    EventName = "online-users"
	EventReceiveMessage EventName = "receive-message"
	EventMessageHistory EventName = "message-history"
	EventUserTyping     EventName = "user-typing"
	EventUserStopTyping EventName = "user-stop-typing"
	EventGameStarted    EventName = "game-started"
	EventScoreUpdated   EventName = "score-updated"
	EventScoresReset    EventName = "scores-reset"
	EventGameClosed     EventName = "game-closed"
	EventPong           EventName = "pong"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", ErrMalformedEnvelope)
	}
	return env, nil
}

// Encode marshals data and wraps it in an envelope.
func Encode(event EventName, data any) (Frame, error) {
	if data == nil {
		return json.Marshal(Envelope{Event: event})
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return EncodeRaw(event, raw)
}

// EncodeRaw wraps already-encoded JSON without re-marshalling it, so the
// payload bytes reach recipients unchanged.
func EncodeRaw(event EventName, raw json.RawMessage) (Frame, error) {
	name, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	var buf bytes.Buffer
	buf.Grow(len(raw) + len(name) + 20)
	buf.WriteString(`{"event":`)
	buf.Write(name)
	if len(raw) > 0 {
		buf.WriteString(`,"data":`)
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
