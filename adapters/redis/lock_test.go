package redis_test

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/resilientcore/resilientcore/adapters/redis"
	"github.com/resilientcore/resilientcore/lock"
	"github.com/resilientcore/resilientcore/locktest"
)

func requireClient(t *testing.T) goredis.UniversalClient {
	t.Helper()
	addr := os.Getenv("RESILIENTCORE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RESILIENTCORE_TEST_REDIS_ADDR not set; skipping Redis lock adapter conformance")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLockAdapterConformance(t *testing.T) {
	client := requireClient(t)
	require.NoError(t, client.FlushDB(context.Background()).Err())

	locktest.RunAdapterConformance(t, func(t *testing.T) lock.Adapter {
		require.NoError(t, client.FlushDB(context.Background()).Err())
		return redis.NewLockAdapter(client)
	})
}
