package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
)

func TestSessionRegistry_ReusesSessionPerClient(t *testing.T) {
	created := 0
	registry := NewSessionRegistry(10, time.Minute, func(id string) *SearchSession {
		created++
		return NewSearchSession(nil, nil, WithSessionID(id))
	})

	a := registry.Get("client-a")
	assert.Same(t, a, registry.Get("client-a"))
	assert.Equal(t, "client-a", a.ID())
	assert.NotSame(t, a, registry.Get("client-b"))
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, registry.Len())

	state, ok := registry.State("client-a")
	assert.True(t, ok)
	assert.Equal(t, entities.SessionIdle, state)

	_, ok = registry.State("missing")
	assert.False(t, ok)
}

func TestSessionRegistry_AnonymousSessionsAreNotKept(t *testing.T) {
	registry := NewSessionRegistry(10, time.Minute, func(id string) *SearchSession {
		return NewSearchSession(nil, nil, WithSessionID(id))
	})
	assert.NotSame(t, registry.Get(""), registry.Get(""))
	assert.Equal(t, 0, registry.Len())
}

func TestSessionRegistry_EvictsByCapacity(t *testing.T) {
	registry := NewSessionRegistry(1, time.Minute, func(id string) *SearchSession {
		return NewSearchSession(nil, nil, WithSessionID(id))
	})
	registry.Get("a")
	registry.Get("b")
	_, ok := registry.State("a")
	assert.False(t, ok)
	assert.Equal(t, 1, registry.Len())
}
