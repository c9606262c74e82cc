package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/moviematch/core"
)

func openStores(t *testing.T) map[string]core.Store {
	t.Helper()
	stores := map[string]core.Store{BackendMemory: NewMemoryStore()}

	b, err := NewBadgerStore("")
	require.NoError(t, err)
	stores[BackendBadger] = b

	// Redis 需要真实服务，设置 REDIS_ADDR 时才测试
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		r, err := NewRedisStore(RedisOptions{Addr: addr})
		require.NoError(t, err)
		stores[BackendRedis] = r
	}

	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStore_Contract(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.Equal(t, name, s.Name())

			_, err := s.Get(ctx, "test:missing")
			assert.True(t, core.IsStoreNotFound(err))

			require.NoError(t, s.Set(ctx, "test:a", []byte("1")))
			v, err := s.Get(ctx, "test:a")
			require.NoError(t, err)
			assert.Equal(t, []byte("1"), v)

			require.NoError(t, s.BatchSet(ctx, map[string][]byte{"test:b": []byte("2"), "test:c": []byte("3")}))
			got, err := s.BatchGet(ctx, []string{"test:a", "test:b", "test:c", "test:missing"})
			require.NoError(t, err)
			assert.Equal(t, map[string][]byte{
				"test:a": []byte("1"),
				"test:b": []byte("2"),
				"test:c": []byte("3"),
			}, got)

			require.NoError(t, s.Delete(ctx, "test:a"))
			require.NoError(t, s.Delete(ctx, "test:a"))
			_, err = s.Get(ctx, "test:a")
			assert.True(t, core.IsStoreNotFound(err))
		})
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 1))
	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	// 直接把过期时间拨到过去
	m.mu.Lock()
	e := m.data["k"]
	e.expire = time.Now().Add(-time.Second)
	m.data["k"] = e
	m.mu.Unlock()

	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, s.Name())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s, err = Open(Config{Backend: BackendBadger})
	require.NoError(t, err)
	assert.Equal(t, BackendBadger, s.Name())
	require.NoError(t, s.Close())

	_, err = Open(Config{Backend: "etcd"})
	assert.Error(t, err)
}
