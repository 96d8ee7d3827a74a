package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/futsync/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(&config.Config{
		Redis: config.RedisConfig{Enabled: false},
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestCache_DisabledDegradesToMiss(t *testing.T) {
	cache := NewCache(disabledClient(t), "futsync")
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, "key", "value", TTLShort))
	assert.NoError(t, cache.InvalidatePrefix(ctx, "quotes:"))
}

func TestCache_DisabledGetOrSetStillPopulatesDest(t *testing.T) {
	cache := NewCache(disabledClient(t), "futsync")

	var result []string
	err := cache.GetOrSet(context.Background(), "exchanges", &result, TTLShort, func() (interface{}, error) {
		return []string{"SHFE", "DCE"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"SHFE", "DCE"}, result)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "exchanges", ExchangesKey())
	assert.Equal(t, "products:SHFE", ProductsKey("SHFE"))
	assert.Equal(t, "quotes:CU2606.SHF:30", QuotesKey("CU2606.SHF", 30))
	assert.Equal(t, "mains:2026-03-02", MainContractsKey("2026-03-02"))
}
