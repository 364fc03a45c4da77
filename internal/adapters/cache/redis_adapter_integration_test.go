//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
	"github.com/kceleski/agent-healthproassist-sub000/internal/infrastructure/clients/redis"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/config"
)

func TestRedisAdapterIntegration(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}
	client, err := redis.NewClient(&config.RedisConfig{Host: os.Getenv("TEST_REDIS_HOST"), Port: 6379})
	require.NoError(t, err)
	defer client.Close()

	c := NewRedisAdapter(client, "test:geocode:")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "sedona", []byte("34.87,-111.76"), time.Minute))
	v, err := c.Get(ctx, "sedona")
	require.NoError(t, err)
	assert.Equal(t, "34.87,-111.76", string(v))

	require.NoError(t, c.Delete(ctx, "sedona"))
	_, err = c.Get(ctx, "sedona")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}
