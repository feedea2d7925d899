package repository

import (
	"github.com/dujiao-next/storefront/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 沙箱订单数据访问接口
type OrderRepository interface {
	Create(order *models.SandboxOrder) error
	GetByOrderNo(orderNo string) (*models.SandboxOrder, error)
	List(filter OrderListFilter) ([]models.SandboxOrder, int64, error)
	UpdateStatus(orderNo string, from []models.OrderStatus, updates map[string]interface{}) (bool, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单及订单项
func (r *GormOrderRepository) Create(order *models.SandboxOrder) error {
	return r.db.Create(order).Error
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.SandboxOrder, error) {
	return firstOrNil[models.SandboxOrder](r.db.Preload("Items").Where("order_no = ?", orderNo))
}

// List 订单分页列表，新订单在前
func (r *GormOrderRepository) List(filter OrderListFilter) ([]models.SandboxOrder, int64, error) {
	query := r.db.Model(&models.SandboxOrder{})
	if filter.Status > 0 {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.SandboxOrder
	if err := query.Scopes(paginate(filter.Page, filter.PageSize)).
		Preload("Items").Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus 条件更新状态，当前状态不在 from 中时返回 false
func (r *GormOrderRepository) UpdateStatus(orderNo string, from []models.OrderStatus, updates map[string]interface{}) (bool, error) {
	result := r.db.Model(&models.SandboxOrder{}).
		Where("order_no = ? AND status IN ?", orderNo, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// paginate 页码从 1 开始，pageSize <= 0 时不分页
func paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if pageSize <= 0 {
			return db
		}
		if page < 1 {
			page = 1
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}
