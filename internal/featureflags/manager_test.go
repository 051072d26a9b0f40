package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=x%")

	assert.True(t, m.Enabled("always", 1))
	assert.False(t, m.Enabled("never", 1))
	assert.False(t, m.Enabled("junk", 1))

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42), "rollout must be deterministic per user")
	}
	assert.False(t, m.Enabled("canary", 0), "percentage rollout requires a user")
}

func TestEnabledOr(t *testing.T) {
	m := NewManager("auto_reply=off,auto_reply_moderation=on")

	assert.False(t, m.EnabledOr(AutoReply, 1, true), "explicit off wins over default")
	assert.True(t, m.EnabledOr(AutoReplyModeration, 1, false))
	assert.True(t, NewManager("").EnabledOr(AutoReply, 1, true), "unset falls back to default")

	var nilManager *Manager
	assert.True(t, nilManager.EnabledOr(AutoReply, 1, true))
	assert.False(t, nilManager.Enabled(AutoReply, 1))
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, m.Raw())

	snap := m.Snapshot(123)
	assert.Len(t, snap, 3)
	assert.True(t, snap["x"])
	assert.False(t, snap["z"])
}

func TestRules_ClampAndKeepRaw(t *testing.T) {
	m := NewManager("over=150%,under=-5%,junk=maybe")

	assert.True(t, m.Enabled("over", 0), "anything at or above 100% is fully on")
	assert.False(t, m.Enabled("under", 9))
	assert.False(t, m.Enabled("junk", 9))
	assert.Equal(t, "maybe", m.Raw()["junk"])
	assert.Equal(t, map[string]bool{"over": true, "under": false, "junk": false}, m.Snapshot(9))
}

func TestEnabled_RolloutSpread(t *testing.T) {
	m := NewManager("half=50%")
	on := 0
	for id := uint(1); id <= 1000; id++ {
		if m.Enabled("HALF", id) {
			on++
		}
	}
	assert.InDelta(t, 500, on, 100, "fnv buckets should split users roughly evenly")
}
