package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity(t *testing.T) {
	id, err := NewIdentity("  Alice ")
	require.NoError(t, err)
	assert.Equal(t, Identity("Alice"), id)

	_, err = NewIdentity("   ")
	assert.ErrorIs(t, err, ErrIdentityEmpty)

	_, err = NewIdentity(strings.Repeat("a", MaxIdentityLen+1))
	assert.ErrorIs(t, err, ErrIdentityTooLong)

	_, err = NewIdentity(strings.Repeat("a", MaxIdentityLen))
	assert.NoError(t, err)
}

func TestNewRoomCode(t *testing.T) {
	code, err := NewRoomCode(" AB12 ")
	require.NoError(t, err)
	assert.Equal(t, RoomCode("AB12"), code)

	_, err = NewRoomCode("")
	assert.ErrorIs(t, err, ErrRoomCodeEmpty)

	_, err = NewRoomCode(strings.Repeat("x", MaxRoomCodeLen+1))
	assert.ErrorIs(t, err, ErrRoomCodeTooLong)
}

func TestNotices(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 30, 0, 0, time.FixedZone("X", 3600))

	n := JoinedNotice("AB12", "Bob", now)
	assert.Equal(t, "Bob joined the room", n.Message)
	assert.Equal(t, SystemIdentity, n.Username)
	assert.Equal(t, MessageTypeSystem, n.Type)
	assert.Equal(t, "2024-03-01T09:30:00Z", n.Timestamp)

	assert.Equal(t, "Bob left the room", LeftNotice("AB12", "Bob", now).Message)
}

func TestGameDescriptor(t *testing.T) {
	g := NewGameDescriptor("Pong", []Identity{"Alice", "Bob"})
	assert.Equal(t, Scores{"Alice": 0, "Bob": 0}, g.Scores)

	assert.Equal(t, 1, g.Increment("Alice"))
	assert.Equal(t, 2, g.Increment("Alice"))

	c := g.Clone()
	c.Scores["Bob"] = 5
	assert.Equal(t, 0, g.Scores["Bob"])

	g.Reset([]Identity{"Bob"})
	assert.Equal(t, Scores{"Bob": 0}, g.Scores)
	assert.Equal(t, GameID("Pong"), g.GameID)
}
