package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnRateLimiter_Window(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewConnRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "limits are per connection")

	now = now.Add(1001 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
}

func TestConnRateLimiter_Forget(t *testing.T) {
	rl := NewConnRateLimiter(1, time.Hour)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	rl.Forget("a")
	assert.True(t, rl.Allow("a"))
}

func TestConnRateLimiter_Disabled(t *testing.T) {
	rl := NewConnRateLimiter(0, time.Second)
	for range 100 {
		assert.True(t, rl.Allow("a"))
	}
}
