package domain

import (
	"fmt"
	"time"
)

const MessageTypeSystem = "system"

// ChatMessage is the shape of a chat line as clients send it. Relays forward
// the raw client JSON; this struct is only used to read or build one.
type ChatMessage struct {
	RoomID    RoomCode `json:"roomId"`
	Username  Identity `json:"username"`
	Message   string   `json:"message"`
	Timestamp string   `json:"timestamp,omitempty"`
	Type      string   `json:"type,omitempty"`
}

func SystemNotice(room RoomCode, text string, now time.Time) ChatMessage {
	return ChatMessage{
		RoomID:    room,
		Username:  SystemIdentity,
		Message:   text,
		Timestamp: now.UTC().Format(time.RFC3339),
		Type:      MessageTypeSystem,
	}
}

func JoinedNotice(room RoomCode, who Identity, now time.Time) ChatMessage {
	return SystemNotice(room, fmt.Sprintf("%s joined the room", who), now)
}

func LeftNotice(room RoomCode, who Identity, now time.Time) ChatMessage {
	return SystemNotice(room, fmt.Sprintf("%s left the room", who), now)
}
