//go:build integration

package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	addr, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	return addr
}

func TestRemoteBackedCache(t *testing.T) {
	ctx := context.Background()
	addr := startRedis(t)
	h := redisx.NewWithOptions(&redis.Options{Addr: addr}, time.Second)
	defer h.Close()

	c, err := New(h, 10)
	require.NoError(t, err)

	for i := 0; i < 250; i++ {
		c.Set(ctx, redisx.Products.Key(strconv.Itoa(i)), i, time.Minute)
	}
	c.Set(ctx, redisx.Services.Key("all"), "keep", time.Minute)
	assert.Equal(t, 0, c.local.Len(), "remote path must not fill the local map")

	client, err := h.Client(ctx)
	require.NoError(t, err)
	n, err := client.Keys(ctx, "products:*").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, n)

	c.Invalidate(ctx, redisx.Products.All())
	n, err = client.Keys(ctx, "products:*").Result()
	require.NoError(t, err)
	assert.Empty(t, n)

	var s string
	require.True(t, c.Get(ctx, redisx.Services.Key("all"), &s))
	assert.Equal(t, "keep", s)
}
