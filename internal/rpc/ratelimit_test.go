package rpc

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerKey(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "burst exhausted")
	assert.True(t, rl.Allow("b"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "one token refilled")
}

func TestRateLimiter_DefaultBurst(t *testing.T) {
	rl := NewRateLimiter(0.5, 0)
	assert.Equal(t, 1, rl.burst)

	rl = NewRateLimiter(20, 0)
	assert.Equal(t, 20, rl.burst)
}

func TestRateLimiter_EvictsIdle(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(idleLimiterTTL + time.Second)
	rl.Allow("new")

	assert.NotContains(t, rl.limiters, "old")
	assert.Contains(t, rl.limiters, "new")
}

func TestRemoteKey(t *testing.T) {
	r := httptest.NewRequest("GET", "/rpc", nil)
	r.RemoteAddr = "10.0.0.7:53211"
	assert.Equal(t, "10.0.0.7", remoteKey(r))

	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", remoteKey(r))
}
