package repository

import (
	"github.com/dujiao-next/storefront/internal/models"

	"gorm.io/gorm"
)

// CartRepository 沙箱购物车数据访问接口
type CartRepository interface {
	List() ([]models.SandboxCartLine, error)
	GetBySkuID(skuID string) (*models.SandboxCartLine, error)
	Create(line *models.SandboxCartLine) error
	Update(line *models.SandboxCartLine) error
	DeleteBySkuIDs(skuIDs []string) error
	WithTx(tx *gorm.DB) *GormCartRepository
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) *GormCartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

// List 按加入先后返回购物车行
func (r *GormCartRepository) List() ([]models.SandboxCartLine, error) {
	var lines []models.SandboxCartLine
	if err := r.db.Order("id asc").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// GetBySkuID 根据 SKU 获取购物车行
func (r *GormCartRepository) GetBySkuID(skuID string) (*models.SandboxCartLine, error) {
	return firstOrNil[models.SandboxCartLine](r.db.Where("sku_id = ?", skuID))
}

// Create 新增购物车行
func (r *GormCartRepository) Create(line *models.SandboxCartLine) error {
	return r.db.Create(line).Error
}

// Update 更新数量与勾选
func (r *GormCartRepository) Update(line *models.SandboxCartLine) error {
	if line == nil {
		return nil
	}
	return r.db.Model(line).Updates(map[string]interface{}{
		"count":      line.Count,
		"selected":   line.Selected,
		"is_invalid": line.IsInvalid,
	}).Error
}

// DeleteBySkuIDs 删除购物车行
func (r *GormCartRepository) DeleteBySkuIDs(skuIDs []string) error {
	if len(skuIDs) == 0 {
		return nil
	}
	return r.db.Where("sku_id IN ?", skuIDs).Delete(&models.SandboxCartLine{}).Error
}
