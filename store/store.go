// Package store 提供 core.Store 的实现：内存、Redis、Badger。
//
// 接口定义在 core 包，此包只包含实现。
//
//	var s core.Store = store.NewMemoryStore()
package store

import (
	"fmt"
	"time"

	"github.com/rushteam/moviematch/core"
)

// ErrNotFound key 不存在，与 core.ErrStoreNotFound 相同。
var ErrNotFound = core.ErrStoreNotFound

// 后端类型
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Config 存储后端配置。
type Config struct {
	Backend string `koanf:"backend"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// BadgerPath 为空时使用内存模式
	BadgerPath string `koanf:"badger_path"`
}

// Open 按配置打开存储后端。
func Open(cfg Config) (core.Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	case BackendBadger:
		return NewBadgerStore(cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func ttlDuration(ttl []int) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return time.Duration(ttl[0]) * time.Second
	}
	return 0
}

var (
	_ core.Store = (*MemoryStore)(nil)
	_ core.Store = (*RedisStore)(nil)
	_ core.Store = (*BadgerStore)(nil)
)
