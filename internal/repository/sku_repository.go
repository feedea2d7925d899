package repository

import (
	"github.com/dujiao-next/storefront/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SkuRepository 沙箱商品目录数据访问接口
type SkuRepository interface {
	GetBySkuID(skuID string) (*models.SandboxSku, error)
	ListBySkuIDs(skuIDs []string) ([]models.SandboxSku, error)
	Upsert(sku *models.SandboxSku) error
	DecreaseStock(skuID string, count int) (bool, error)
	WithTx(tx *gorm.DB) *GormSkuRepository
}

// GormSkuRepository GORM 实现
type GormSkuRepository struct {
	db *gorm.DB
}

// NewSkuRepository 创建商品目录仓库
func NewSkuRepository(db *gorm.DB) *GormSkuRepository {
	return &GormSkuRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSkuRepository) WithTx(tx *gorm.DB) *GormSkuRepository {
	if tx == nil {
		return r
	}
	return &GormSkuRepository{db: tx}
}

// GetBySkuID 根据 SKU 获取
func (r *GormSkuRepository) GetBySkuID(skuID string) (*models.SandboxSku, error) {
	return firstOrNil[models.SandboxSku](r.db.Where("sku_id = ?", skuID))
}

// ListBySkuIDs 批量获取
func (r *GormSkuRepository) ListBySkuIDs(skuIDs []string) ([]models.SandboxSku, error) {
	if len(skuIDs) == 0 {
		return nil, nil
	}
	var skus []models.SandboxSku
	if err := r.db.Where("sku_id IN ?", skuIDs).Find(&skus).Error; err != nil {
		return nil, err
	}
	return skus, nil
}

// Upsert 按 sku_id 写入或覆盖
func (r *GormSkuRepository) Upsert(sku *models.SandboxSku) error {
	if sku == nil {
		return nil
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sku_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"goods_id", "title", "image", "price", "stock", "active", "specs"}),
	}).Create(sku).Error; err != nil {
		return err
	}
	// active 带默认值，插入 false 时会被忽略
	return r.db.Model(&models.SandboxSku{}).Where("sku_id = ?", sku.SkuID).Update("active", sku.Active).Error
}

// DecreaseStock 扣减库存，库存不足时返回 false
func (r *GormSkuRepository) DecreaseStock(skuID string, count int) (bool, error) {
	result := r.db.Model(&models.SandboxSku{}).
		Where("sku_id = ? AND stock >= ?", skuID, count).
		UpdateColumn("stock", gorm.Expr("stock - ?", count))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
