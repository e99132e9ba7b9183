package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/billguard/internal/common"
)

func maybeTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client, err := OpenRedis(context.Background(), common.RedisConfig{Addr: addr})
	if err != nil {
		t.Skipf("Redis unavailable: %v", err)
	}
	return client
}

func TestBillRepository_Redis(t *testing.T) {
	client := maybeTestRedisClient(t)
	key := "billguard_test_" + uuid.NewString()
	slot := NewRedisSlot(client, key)
	t.Cleanup(func() {
		_ = client.Del(context.Background(), key).Err()
		_ = slot.Close()
	})

	require.NoError(t, slot.Ping(context.Background()))
	exerciseRepository(t, slot)
}
