package models

import "time"

// StorageEntry 本地持久化条目（JSON 序列化的值）
type StorageEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Namespace string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_storage_ns_key" json:"namespace"`               // 购物者命名空间
	Key       string    `gorm:"column:storage_key;type:varchar(128);not null;uniqueIndex:idx_storage_ns_key" json:"key"` // 稳定字符串键
	Value     string    `gorm:"type:text;not null" json:"value"`                                                         // JSON
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// TableName 指定表名
func (StorageEntry) TableName() string {
	return "local_storage_entries"
}
