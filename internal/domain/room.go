package domain

import (
	"errors"
	"strings"
	"time"
)

const MaxRoomCodeLen = 36

var (
	ErrRoomCodeEmpty   = errors.New("room code empty")
	ErrRoomCodeTooLong = errors.New("room code too long")
)

type RoomCode string

func NewRoomCode(raw string) (RoomCode, error) {
	code := strings.TrimSpace(raw)
	if len(code) == 0 {
		return "", ErrRoomCodeEmpty
	}
	if len(code) > MaxRoomCodeLen {
		return "", ErrRoomCodeTooLong
	}
	return RoomCode(code), nil
}

// RoomMeta is what the persisted room record holds.
type RoomMeta struct {
	Code      RoomCode  `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
}
