package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	require.NoError(t, client.Set(ctx, client.CartKey("user-1"), `[{"sku":"a"}]`, time.Hour))
	value, err := client.Get(ctx, "sf:cart:user-1")
	require.NoError(t, err)
	require.Equal(t, `[{"sku":"a"}]`, value)

	require.NoError(t, client.Del(ctx, client.CartKey("user-1")))
	_, err = client.Get(ctx, client.CartKey("user-1"))
	require.ErrorIs(t, err, Nil)
}

func TestSetNXOnlyFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "k", "first", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, "k", "second", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	value, err := client.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "first", value)
}

func TestPublishRecordsChannel(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}

	require.NoError(t, client.Publish(context.Background(), client.OrderChannel("o-1"), []byte(`{"id":"o-1"}`)))
	require.Equal(t, []string{"sf:orders:o-1"}, mock.published)
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.RateLimitKey("payment", "user", "u-1")
	require.Equal(t, "sf:rl:payment:user:u-1", key)

	count, err := client.IncrWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	delete(mock.expiries, key)

	count, err = client.IncrWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	_, reset := mock.expiries[key]
	require.False(t, reset, "window must not slide on later hits")
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()

	require.Error(t, client.Ping(ctx))
	require.Error(t, client.Set(ctx, "k", "v", 0))
	_, err := client.Subscribe(ctx, "c")
	require.Error(t, err)
	require.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "sf:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	require.Equal(t, "sf:payment:order-1", client.PaymentKey("order-1"))
	require.Equal(t, "sf:cart:user-1", client.CartKey("user-1"))
	require.Equal(t, "sf:orders:order-1", client.OrderChannel("order-1"))
	require.Equal(t, "sf:lock:cron", client.LockKey("cron"))
	require.Equal(t, "sf:idempotency:scope", client.IdempotencyKey("scope", ""), "empty parts are skipped")
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2, PoolSize: 7})
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://:pw@cache:6380/3"})
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, "pw", opts.Password)
}

type mockCmdable struct {
	data      map[string]string
	published []string
	expiries  map[string]time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string), expiries: make(map[string]time.Duration)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Publish(_ context.Context, channel string, _ any) *redis.IntCmd {
	m.published = append(m.published, channel)
	return redis.NewIntResult(1, nil)
}

func (m *mockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	var n int64
	fmt.Sscan(m.data[key], &n)
	n++
	m.data[key] = fmt.Sprint(n)
	return redis.NewIntResult(n, nil)
}

func (m *mockCmdable) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.expiries[key] = ttl
	return redis.NewBoolResult(true, nil)
}
