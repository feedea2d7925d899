package localstore

import (
	"context"

	"github.com/dujiao-next/storefront/internal/cache"
)

// RedisStore 基于 Redis 的存储，键为 <prefix>:local:<namespace>:<key>，不过期
type RedisStore struct {
	namespace string
}

// NewRedisStore 创建 Redis 存储，需先调用 cache.InitRedis
func NewRedisStore(namespace string) *RedisStore {
	return &RedisStore{namespace: namespace}
}

func (s *RedisStore) key(key string) string {
	return "local:" + s.namespace + ":" + key
}

// Get 读取
func (s *RedisStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	key, err := validateKey(key)
	if err != nil {
		return false, err
	}
	return cache.GetJSON(ctx, s.key(key), dest)
}

// Set 写入
func (s *RedisStore) Set(ctx context.Context, key string, value interface{}) error {
	key, err := validateKey(key)
	if err != nil {
		return err
	}
	return cache.SetJSON(ctx, s.key(key), value, 0)
}

// Delete 删除
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	key, err := validateKey(key)
	if err != nil {
		return err
	}
	return cache.Del(ctx, s.key(key))
}
