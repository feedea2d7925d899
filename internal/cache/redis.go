package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dujiao-next/storefront/internal/config"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "sf"

// handle 进程内共享的 Redis 连接
type handle struct {
	mu     sync.RWMutex
	client *redis.Client
	prefix string
}

var shared = &handle{prefix: defaultPrefix}

func (h *handle) set(client *redis.Client, prefix string) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	h.mu.Lock()
	h.client = client
	h.prefix = prefix
	h.mu.Unlock()
}

func (h *handle) get() (*redis.Client, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client, h.prefix
}

// InitRedis 按配置建立连接并探活；未启用时保持禁用状态
// 探活失败时返回错误且不启用，调用方可降级为其他存储
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		shared.set(nil, "")
		return nil
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:        net.JoinHostPort(host, strconv.Itoa(port)),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		shared.set(nil, cfg.Prefix)
		return err
	}
	shared.set(client, cfg.Prefix)
	return nil
}

// UseClient 注入现成的客户端，nil 表示禁用
func UseClient(client *redis.Client, prefix string) {
	shared.set(client, prefix)
}

// Close 关闭连接并禁用缓存
func Close() error {
	client, prefix := shared.get()
	if client == nil {
		return nil
	}
	shared.set(nil, prefix)
	return client.Close()
}

// Enabled 是否已连接 Redis
func Enabled() bool {
	client, _ := shared.get()
	return client != nil
}

// Client 返回当前客户端，未启用时为 nil
func Client() *redis.Client {
	client, _ := shared.get()
	return client
}

// Ping 未启用时直接返回 nil
func Ping(ctx context.Context) error {
	client, _ := shared.get()
	if client == nil {
		return nil
	}
	return client.Ping(ctx).Err()
}

// GetJSON 读取并反序列化，key 不含前缀；未命中返回 false
func GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	client, _ := shared.get()
	if client == nil {
		return false, nil
	}
	raw, err := client.Get(ctx, BuildKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 序列化后写入，ttl 为 0 表示不过期
func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	client, _ := shared.get()
	if client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return client.Set(ctx, BuildKey(key), payload, ttl).Err()
}

// Del 删除
func Del(ctx context.Context, key string) error {
	client, _ := shared.get()
	if client == nil {
		return nil
	}
	return client.Del(ctx, BuildKey(key)).Err()
}

// BuildKey 以配置前缀拼接 key，忽略空段
func BuildKey(parts ...string) string {
	_, prefix := shared.get()
	segments := []string{prefix}
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return strings.Join(segments, ":")
}
