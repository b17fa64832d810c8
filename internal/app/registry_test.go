package app

import (
	"testing"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_JoinOnce(t *testing.T) {
	r := NewRegistry()
	id := r.OnConnect(&fakeConn{}, "tok")

	_, ok := r.Lookup(id)
	assert.False(t, ok, "not joined yet")
	_, ok = r.Target(id)
	assert.True(t, ok)

	require.NoError(t, r.OnJoin(id, "AB12", "Alice"))
	assert.ErrorIs(t, r.OnJoin(id, "ZZ99", "Alice"), ErrAlreadyJoined)

	claim, ok := r.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, Claim{Room: "AB12", Identity: "Alice"}, claim)
}

func TestRegistry_JoinErrors(t *testing.T) {
	r := NewRegistry()
	id := r.OnConnect(&fakeConn{}, "tok")

	assert.ErrorIs(t, r.OnJoin("missing", "AB12", "Alice"), ErrUnknownConnection)
	assert.ErrorIs(t, r.OnJoin(id, "", "Alice"), domain.ErrRoomCodeEmpty)
	assert.ErrorIs(t, r.OnJoin(id, "AB12", ""), domain.ErrIdentityEmpty)
}

func TestRegistry_DisconnectOnce(t *testing.T) {
	r := NewRegistry()
	id := r.OnConnect(&fakeConn{}, "tok")
	require.NoError(t, r.OnJoin(id, "AB12", "Alice"))

	claim, ok := r.OnDisconnect(id)
	require.True(t, ok)
	assert.Equal(t, Claim{Room: "AB12", Identity: "Alice"}, claim)

	_, ok = r.OnDisconnect(id)
	assert.False(t, ok)
	assert.Empty(t, r.ConnectionsOf("AB12"))
	assert.Zero(t, r.Count())
}

func TestRegistry_ConnectionsOfInJoinOrder(t *testing.T) {
	r := NewRegistry()
	var ids []core.ConnectionID
	for range 5 {
		id := r.OnConnect(&fakeConn{}, "tok")
		require.NoError(t, r.OnJoin(id, "AB12", "Alice"))
		ids = append(ids, id)
	}
	other := r.OnConnect(&fakeConn{}, "tok")
	require.NoError(t, r.OnJoin(other, "ZZ99", "Bob"))

	got := r.ConnectionsOf("AB12")
	require.Len(t, got, 5)
	for i, tgt := range got {
		assert.Equal(t, ids[i], tgt.ID)
	}
	assert.Len(t, r.ConnectionsOf("ZZ99"), 1)
	assert.Empty(t, r.ConnectionsOf("none"))
}
