package cache

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis answers the handful of commands RedisCounterStore sends, with expiry driven
// by a test clock. Any other command panics through the nil embedded interface.
type fakeRedis struct {
	redis.Cmdable

	mu      sync.Mutex
	now     time.Time
	values  map[string]int64
	expires map[string]time.Time
	keys    []string
	err     error
}

func newFakeRedis(now time.Time) *fakeRedis {
	return &fakeRedis{now: now, values: map[string]int64{}, expires: map[string]time.Time{}}
}

func (f *fakeRedis) expire() {
	for k, at := range f.expires {
		if !f.now.Before(at) {
			delete(f.values, k)
			delete(f.expires, k)
		}
	}
}

func (f *fakeRedis) TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.expire()
	pipe := &fakePipe{f: f}
	if err := fn(pipe); err != nil {
		return nil, err
	}
	return pipe.cmds, nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx, "get", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.expire()
	v, ok := f.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(strconv.FormatInt(v, 10))
	return cmd
}

type fakePipe struct {
	redis.Pipeliner
	f    *fakeRedis
	cmds []redis.Cmder
}

func (p *fakePipe) IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd {
	p.f.keys = append(p.f.keys, key)
	p.f.values[key] += value
	cmd := redis.NewIntCmd(ctx, "incrby", key, value)
	cmd.SetVal(p.f.values[key])
	p.cmds = append(p.cmds, cmd)
	return cmd
}

func (p *fakePipe) ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx, "expire", key, expiration, "nx")
	if _, ok := p.f.expires[key]; !ok {
		p.f.expires[key] = p.f.now.Add(expiration)
		cmd.SetVal(true)
	}
	p.cmds = append(p.cmds, cmd)
	return cmd
}

func TestRedisCounterStore_FixedWindow(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	client := newFakeRedis(start)
	store := NewRedisCounterStoreFromClient(client, "itdesk:")

	n, err := store.Get(ctx, "login_attempts:203.0.113.7")
	require.NoError(t, err)
	assert.Zero(t, n, "a missing key reads as zero")

	for i := int64(1); i <= 3; i++ {
		n, err = store.Increment(ctx, "login_attempts:203.0.113.7", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		client.now = client.now.Add(20 * time.Minute)
	}
	assert.Equal(t, start.Add(time.Hour), client.expires["itdesk:login_attempts:203.0.113.7"],
		"later increments must not push the window out")

	// An hour after the first increment the counter has gone.
	n, err = store.Get(ctx, "login_attempts:203.0.113.7")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Increment(ctx, "login_attempts:203.0.113.7", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "a new window starts from one")
}

func TestRedisCounterStore_IncrementByAndPrefix(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis(time.Now())
	store := NewRedisCounterStoreFromClient(client, "helpdesk:")

	n, err := store.IncrementBy(ctx, "file_uploads:198.51.100.1", 3, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = store.IncrementBy(ctx, "file_uploads:198.51.100.1", -1, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := store.Get(ctx, "file_uploads:198.51.100.1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
	assert.Equal(t, []string{"helpdesk:file_uploads:198.51.100.1", "helpdesk:file_uploads:198.51.100.1"}, client.keys)
}

func TestRedisCounterStore_Errors(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis(time.Now())
	client.err = errors.New("connection refused")
	store := NewRedisCounterStoreFromClient(client, "")

	_, err := store.Increment(ctx, "login_attempts:10.0.0.1", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to increment login_attempts:10.0.0.1")
	assert.ErrorIs(t, err, client.err)

	_, err = store.Get(ctx, "login_attempts:10.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read login_attempts:10.0.0.1")

	assert.NoError(t, store.Close(), "clients without Close are left alone")
}

// TestRedisCounterStore_Server runs against a real server when ITDESK_TEST_REDIS_ADDR
// is set, e.g. ITDESK_TEST_REDIS_ADDR=localhost:6379.
func TestRedisCounterStore_Server(t *testing.T) {
	addr := os.Getenv("ITDESK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ITDESK_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	prefix := "itdesk-test:" + strconv.FormatInt(time.Now().UnixNano(), 10) + ":"
	store, err := NewRedisCounterStore(&RedisConfig{Addr: addr, KeyPrefix: prefix})
	require.NoError(t, err)
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Increment(ctx, "login_attempts:203.0.113.7", time.Minute)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := store.Get(ctx, "login_attempts:203.0.113.7")
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)

	client := store.client.(*redis.Client)
	ttl, err := client.TTL(ctx, prefix+"login_attempts:203.0.113.7").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
	require.NoError(t, client.Del(ctx, prefix+"login_attempts:203.0.113.7").Err())
}
