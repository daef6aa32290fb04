package querycache

import (
	"context"
	"errors"
	"time"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var ErrUnknownBackend = errors.New("unknown cache backend")

/*
Cache 查询结果的读穿缓存。

	GetOrLoad 命中时把缓存的值解码到 out，否则调用 load 并以 ttl 写入缓存，同一个 key 的并发加载只执行一次；
	InvalidateAll 使所有已缓存以及正在加载的结果失效；
*/
type Cache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func() (any, error), out any) error
	InvalidateAll(ctx context.Context) error
}

type Config struct {
	Backend     string
	RedisAddr   string
	RedisDB     int
	RedisPrefix string
}

func GenerateTestConfig() *Config {
	return &Config{
		Backend:     BackendMemory,
		RedisAddr:   "localhost:6379",
		RedisDB:     0,
		RedisPrefix: "deeptrace_test",
	}
}

func New(config *Config) (Cache, error) {
	switch config.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(config)
	default:
		return nil, ErrUnknownBackend
	}
}
