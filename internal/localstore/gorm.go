package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dujiao-next/storefront/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore 基于数据库表 local_storage_entries 的存储
type GormStore struct {
	db        *gorm.DB
	namespace string
}

// NewGormStore 创建数据库存储
func NewGormStore(db *gorm.DB, namespace string) *GormStore {
	return &GormStore{db: db, namespace: namespace}
}

// WithNamespace 切换到另一个购物者命名空间
func (s *GormStore) WithNamespace(namespace string) *GormStore {
	return &GormStore{db: s.db, namespace: namespace}
}

// Get 读取
func (s *GormStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	key, err := validateKey(key)
	if err != nil {
		return false, err
	}
	var entry models.StorageEntry
	err = s.db.WithContext(ctx).
		Where("namespace = ? AND storage_key = ?", s.namespace, key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(entry.Value), dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set 写入（按 namespace+key upsert）
func (s *GormStore) Set(ctx context.Context, key string, value interface{}) error {
	key, err := validateKey(key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := models.StorageEntry{
		Namespace: s.namespace,
		Key:       key,
		Value:     string(raw),
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

// Delete 删除
func (s *GormStore) Delete(ctx context.Context, key string) error {
	key, err := validateKey(key)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("namespace = ? AND storage_key = ?", s.namespace, key).
		Delete(&models.StorageEntry{}).Error
}
