package utilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeID_UniqueInTightLoop(t *testing.T) {
	seen := make(map[string]struct{}, 5000)
	for i := 0; i < 5000; i++ {
		id := NewSnowflakeID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s at iteration %d", id, i)
		seen[id] = struct{}{}
	}
}

func TestNewKSUID(t *testing.T) {
	a, b := NewKSUID(), NewKSUID()
	assert.Len(t, a, 27)
	assert.NotEqual(t, a, b)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken("  "))
	assert.Equal(t, "***", MaskToken("short"))
	assert.Equal(t, "eyJ***xyz", MaskToken("eyJhbGciOiJIUzI1NiJ9.xyz"))
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, "debug", levelFromString("DEBUG").String())
	assert.Equal(t, "warn", levelFromString("warning").String())
	assert.Equal(t, "info", levelFromString("bogus").String())
}
