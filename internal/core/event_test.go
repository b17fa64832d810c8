package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"event":"typing","data":{"roomId":"AB12"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventTyping, env.Event)
	assert.JSONEq(t, `{"roomId":"AB12"}`, string(env.Data))

	env, err = DecodeEnvelope([]byte(`{"event":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, EventPing, env.Event)
	assert.Empty(t, env.Data)

	for _, bad := range []string{``, `nope`, `{"data":{}}`, `{"event":""}`, `[1,2]`} {
		_, err := DecodeEnvelope([]byte(bad))
		assert.ErrorIs(t, err, ErrMalformedEnvelope, bad)
	}
}

func TestEncode(t *testing.T) {
	f, err := Encode(EventOnlineUsers, []string{"Alice", "Bob"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"online-users","data":["Alice","Bob"]}`, string(f))

	f, err = Encode(EventGameClosed, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"game-closed"}`, string(f))

	_, err = Encode(EventGameData, make(chan int))
	assert.Error(t, err)
}

func TestEncodeRaw_KeepsBytes(t *testing.T) {
	raw := json.RawMessage(`{"b": 2,  "a":[1.50, "x"]}`)
	f, err := EncodeRaw(EventGameData, raw)
	require.NoError(t, err)
	assert.Equal(t, `{"event":"game-data","data":{"b": 2,  "a":[1.50, "x"]}}`, string(f))

	env, err := DecodeEnvelope(f)
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(env.Data))

	f, err = EncodeRaw(EventPong, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"event":"pong"}`, string(f))
}

func TestNewConnectionID_Unique(t *testing.T) {
	seen := make(map[ConnectionID]struct{})
	for range 100 {
		id := NewConnectionID()
		require.NotEmpty(t, id)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
