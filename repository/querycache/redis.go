package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deeptrace-backend-controller/logging"
	"deeptrace-backend-controller/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

/*
Redis 多实例共享的缓存。

键的形式为 prefix:gen:<n>:key，InvalidateAll 对 prefix:gen 执行 INCR，旧代的键由 TTL 自然回收。
Redis 读失败时退化为直接加载。
*/
type Redis struct {
	client *redis.Client
	prefix string
	group  singleflight.Group
	logger *logrus.Logger
}

func NewRedis(config *Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: config.RedisAddr,
		DB:   config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, utils.WrapErrorf(err, "ping redis [%s] fail", config.RedisAddr)
	}

	prefix := config.RedisPrefix
	if len(prefix) == 0 {
		prefix = "deeptrace"
	}

	return &Redis{
		client: client,
		prefix: prefix,
		logger: logging.NewLogger(),
	}, nil
}

func (r *Redis) generationKey() string {
	return r.prefix + ":gen"
}

func (r *Redis) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, r.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *Redis) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func() (any, error), out any) error {
	gen, err := r.generation(ctx)
	if err != nil {
		r.logger.WithError(err).Warnf("read cache generation fail, loading [%s] directly", key)
		return r.loadInto(load, out)
	}

	fullKey := fmt.Sprintf("%s:gen:%d:%s", r.prefix, gen, key)

	data, err := r.client.Get(ctx, fullKey).Bytes()
	if err == nil {
		if err := json.Unmarshal(data, out); err != nil {
			return utils.WrapErrorf(err, "decode cached value of [%s] fail", fullKey)
		}
		return nil
	}
	if !errors.Is(err, redis.Nil) {
		r.logger.WithError(err).Warnf("read cache [%s] fail", fullKey)
	}

	v, err, _ := r.group.Do(fullKey, func() (any, error) {
		value, err := load()
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(value)
		if err != nil {
			return nil, utils.WrapErrorf(err, "encode value of [%s] fail", fullKey)
		}

		if err := r.client.Set(ctx, fullKey, data, ttl).Err(); err != nil {
			r.logger.WithError(err).Warnf("write cache [%s] fail", fullKey)
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(v.([]byte), out); err != nil {
		return utils.WrapErrorf(err, "decode value of [%s] fail", fullKey)
	}
	return nil
}

func (r *Redis) loadInto(load func() (any, error), out any) error {
	value, err := load()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return utils.WrapError(err, "encode value fail")
	}
	return utils.WrapError(json.Unmarshal(data, out), "decode value fail")
}

func (r *Redis) InvalidateAll(ctx context.Context) error {
	if err := r.client.Incr(ctx, r.generationKey()).Err(); err != nil {
		return utils.WrapError(err, "bump cache generation fail")
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
