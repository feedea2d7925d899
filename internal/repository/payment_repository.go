package repository

import (
	"github.com/dujiao-next/storefront/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository 沙箱支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.SandboxPayment) error
	Update(payment *models.SandboxPayment) error
	GetByPaymentNo(paymentNo string) (*models.SandboxPayment, error)
	GetLatestByOrderNo(orderNo string) (*models.SandboxPayment, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.SandboxPayment) error {
	return r.db.Create(payment).Error
}

// Update 更新支付记录
func (r *GormPaymentRepository) Update(payment *models.SandboxPayment) error {
	return r.db.Save(payment).Error
}

// GetByPaymentNo 根据支付单号获取
func (r *GormPaymentRepository) GetByPaymentNo(paymentNo string) (*models.SandboxPayment, error) {
	return firstOrNil[models.SandboxPayment](r.db.Where("payment_no = ?", paymentNo))
}

// GetLatestByOrderNo 订单最近一次支付
func (r *GormPaymentRepository) GetLatestByOrderNo(orderNo string) (*models.SandboxPayment, error) {
	return firstOrNil[models.SandboxPayment](r.db.Where("order_no = ?", orderNo).Order("id desc"))
}
