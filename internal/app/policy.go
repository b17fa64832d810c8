package app

import (
	"fmt"

	"github.com/dkeye/roomrelay/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(event core.EventName, target Target) BackpressureAction
}

// SimplePolicy tolerates lost game-data frames and kicks on anything else,
// since a client that misses chat or roster events has stale state.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(event core.EventName, _ Target) BackpressureAction {
	if event == core.EventGameData {
		return DropFrame
	}
	return KickMember
}

// JoinPolicy controls what a join to an unknown room does.
type JoinPolicy int

const (
	// JoinCreates creates the room on first join.
	JoinCreates JoinPolicy = iota
	// JoinRequiresRoom drops joins to rooms never created.
	JoinRequiresRoom
)

func ParseJoinPolicy(s string) (JoinPolicy, error) {
	switch s {
	case "create", "":
		return JoinCreates, nil
	case "strict":
		return JoinRequiresRoom, nil
	default:
		return 0, fmt.Errorf("unknown join policy %q", s)
	}
}

// CreatePolicy controls what CreateRoom does for a code already in use.
type CreatePolicy int

const (
	CreateIdempotent CreatePolicy = iota
	CreateExclusive
)
