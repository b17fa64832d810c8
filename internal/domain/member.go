package domain

import "time"

// Member represents an identity's participation in a room.
// Connections counts the live connections claiming the identity there.
type Member struct {
	Identity    Identity
	Connections int
	JoinedAt    time.Time
}

func NewMember(identity Identity, now time.Time) *Member {
	return &Member{Identity: identity, Connections: 1, JoinedAt: now}
}
