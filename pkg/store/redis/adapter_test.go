package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimburion/docstore/pkg/cache"
)

type fakeClient struct {
	mu       sync.Mutex
	data     map[string][]byte
	ttls     map[string]time.Duration
	pingErr  error
	getErr   error
	closeCnt int
	deadline bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.deadline = ctx.Deadline()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = append([]byte{}, value.([]byte)...)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			n++
		}
		delete(f.data, k)
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeClient) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.pingErr)
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCnt++
	return nil
}

func TestNewAdapter_ConfigErrors(t *testing.T) {
	_, err := NewAdapter(Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "redis URL is required", err.Error())

	_, err = NewAdapter(Config{URL: "invalid://url"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse redis URL")
}

func TestAdapter_GetSetDelete(t *testing.T) {
	client := newFakeClient()
	a := newAdapter(client, Config{Prefix: "lib"}, nil)
	ctx := context.Background()

	_, err := a.Get(ctx, "books:b1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, a.Set(ctx, "books:b1", []byte(`{"id":"b1"}`), time.Minute))
	assert.Contains(t, client.data, "lib:books:b1")
	assert.Equal(t, time.Minute, client.ttls["lib:books:b1"])

	got, err := a.Get(ctx, "books:b1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b1"}`, string(got))
	assert.True(t, client.deadline, "operation timeout should bound calls without a deadline")

	require.NoError(t, a.Delete(ctx, "books:b1"))
	_, err = a.Get(ctx, "books:b1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestAdapter_DefaultsAndErrors(t *testing.T) {
	client := newFakeClient()
	a := newAdapter(client, Config{}, nil)
	assert.Equal(t, "docstore", a.prefix)
	assert.Equal(t, 2*time.Second, a.opTimeout)

	client.getErr = errors.New("connection reset")
	_, err := a.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrCacheMiss)
	assert.ErrorIs(t, err, client.getErr)
}

func TestAdapter_HealthCheckAndClose(t *testing.T) {
	client := newFakeClient()
	a := newAdapter(client, Config{}, nil)
	ctx := context.Background()

	require.NoError(t, a.HealthCheck(ctx))

	client.pingErr = errors.New("dial tcp: connection refused")
	err := a.HealthCheck(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 1, client.closeCnt)

	_, err = a.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, a.HealthCheck(ctx))
}
