// Package localstore 本地持久化层：远端不可达时作为降级数据源。
// 值统一以 JSON 序列化，按稳定字符串键存取。
package localstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dujiao-next/storefront/internal/cache"
	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/models"
)

// ErrKeyRequired 空键
var ErrKeyRequired = errors.New("storage key required")

// Store 本地持久化接口
type Store interface {
	// Get 读取 key 并反序列化到 dest，不存在时返回 false
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// Open 按配置创建存储
// 返回的 close 函数用于释放底层连接。
func Open(cfg config.StorageConfig) (Store, func() error, error) {
	namespace := strings.TrimSpace(cfg.Namespace)
	if namespace == "" {
		namespace = "default"
	}
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case constants.StorageDriverMemory:
		return NewMemoryStore(), noop, nil
	case "", constants.StorageDriverSQLite, constants.StorageDriverPostgres, "postgresql":
		db, err := models.OpenDB(cfg.Driver, cfg.DSN, models.DBPoolConfig{MaxOpenConns: 4, MaxIdleConns: 2})
		if err != nil {
			return nil, nil, fmt.Errorf("open local storage db failed: %w", err)
		}
		if err := models.AutoMigrateLocal(db); err != nil {
			return nil, nil, fmt.Errorf("migrate local storage failed: %w", err)
		}
		closer := func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return NewGormStore(db, namespace), closer, nil
	case constants.StorageDriverRedis:
		if !cache.Enabled() {
			return nil, nil, errors.New("storage driver redis requires redis.enabled=true")
		}
		return NewRedisStore(namespace), noop, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func validateKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrKeyRequired
	}
	return key, nil
}
