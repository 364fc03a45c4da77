package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache(8, time.Minute)
	ctx := context.Background()

	_, err := c.Get(ctx, "geo:phoenix")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "geo:phoenix", []byte(`{"latitude":33.45}`), time.Minute))
	v, err := c.Get(ctx, "geo:phoenix")
	require.NoError(t, err)
	assert.JSONEq(t, `{"latitude":33.45}`, string(v))

	require.NoError(t, c.Delete(ctx, "geo:phoenix"))
	_, err = c.Get(ctx, "geo:phoenix")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}
