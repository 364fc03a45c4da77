//go:build integration

package events

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/entities"
	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/clients/redis"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/config"
)

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("TEST_REDIS_PORT"))
	if port == 0 {
		port = 6379
	}
	client, err := redis.NewClient(&config.RedisConfig{Host: os.Getenv("TEST_REDIS_HOST"), Port: port})
	require.NoError(t, err, "Failed to create redis client")
	return client
}

func waitForSearchEvent(t *testing.T, ch <-chan *entities.SearchEvent) *entities.SearchEvent {
	t.Helper()
	select {
	case e := <-ch:
		require.NotNil(t, e)
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for search event")
		return nil
	}
}

func TestRedisEventBusFanoutIntegration(t *testing.T) {
	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	bus := NewRedisEventBus(redisClient)
	defer bus.Close()

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel1()
	defer cancel2()

	all, err := bus.Subscribe(ctx1, providers.EventChannelSearchCompleted)
	require.NoError(t, err)
	family, err := bus.Subscribe(ctx2, providers.GetRoleChannel("family"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	event := &entities.SearchEvent{ID: "evt-redis-1", Role: "family", Outcome: entities.SearchOutcomeReady, ResultCount: 4}
	require.NoError(t, bus.PublishSearchEvent(context.Background(), event))

	assert.Equal(t, event.ID, waitForSearchEvent(t, all).ID)
	received := waitForSearchEvent(t, family)
	assert.Equal(t, 4, received.ResultCount)

	cancel1()
	assert.Eventually(t, func() bool {
		_, open := <-all
		return !open
	}, time.Second, 10*time.Millisecond)
}
