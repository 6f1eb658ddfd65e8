package envutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.local")
	t.Setenv("UNIMAK_REDIS_PORT", "6380")

	assert.Equal(t, "cache.local", Get("REDIS_HOST", "localhost"))
	assert.Equal(t, "6380", Get("REDIS_PORT", "6379"))
	assert.Equal(t, "fallback", Get("REDIS_PASSWORD_UNSET", "fallback"))
}

func TestLookup(t *testing.T) {
	t.Setenv("UNIMAK_SESSION_TTL", "2h")

	value, ok := Lookup("SESSION_TTL")
	assert.True(t, ok)
	assert.Equal(t, "2h", value)

	_, ok = Lookup("UNIMAK_NOT_SET_ANYWHERE")
	assert.False(t, ok)

	t.Setenv("EMPTY_BUT_SET", "")
	value, ok = Lookup("EMPTY_BUT_SET")
	assert.True(t, ok)
	assert.Empty(t, value)
}
