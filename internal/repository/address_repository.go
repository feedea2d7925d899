package repository

import (
	"github.com/dujiao-next/storefront/internal/models"

	"gorm.io/gorm"
)

// AddressRepository 沙箱收货地址数据访问接口
type AddressRepository interface {
	List() ([]models.SandboxAddress, error)
	GetByAddressID(id string) (*models.SandboxAddress, error)
	Create(address *models.SandboxAddress) error
	Update(address *models.SandboxAddress) error
	Delete(id string) (bool, error)
	SetDefault(id string) (bool, error)
	WithTx(tx *gorm.DB) *GormAddressRepository
}

// GormAddressRepository GORM 实现
type GormAddressRepository struct {
	db *gorm.DB
}

// NewAddressRepository 创建地址仓库
func NewAddressRepository(db *gorm.DB) *GormAddressRepository {
	return &GormAddressRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAddressRepository) WithTx(tx *gorm.DB) *GormAddressRepository {
	if tx == nil {
		return r
	}
	return &GormAddressRepository{db: tx}
}

// List 默认地址在前
func (r *GormAddressRepository) List() ([]models.SandboxAddress, error) {
	var list []models.SandboxAddress
	if err := r.db.Order("is_default desc").Order("id asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// GetByAddressID 根据地址 ID 获取
func (r *GormAddressRepository) GetByAddressID(id string) (*models.SandboxAddress, error) {
	return firstOrNil[models.SandboxAddress](r.db.Where("address_id = ?", id))
}

// Create 新增地址；设为默认时清除其他默认
func (r *GormAddressRepository) Create(address *models.SandboxAddress) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if address.IsDefault {
			if err := clearDefault(tx, ""); err != nil {
				return err
			}
		}
		return tx.Create(address).Error
	})
}

// Update 更新地址内容
func (r *GormAddressRepository) Update(address *models.SandboxAddress) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if address.IsDefault {
			if err := clearDefault(tx, address.AddressID); err != nil {
				return err
			}
		}
		return tx.Save(address).Error
	})
}

// Delete 删除地址
func (r *GormAddressRepository) Delete(id string) (bool, error) {
	result := r.db.Where("address_id = ?", id).Delete(&models.SandboxAddress{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetDefault 设为唯一默认地址
func (r *GormAddressRepository) SetDefault(id string) (bool, error) {
	found := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.SandboxAddress{}).Where("address_id = ?", id).Update("is_default", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		found = true
		return clearDefault(tx, id)
	})
	return found, err
}

func clearDefault(tx *gorm.DB, exceptID string) error {
	query := tx.Model(&models.SandboxAddress{}).Where("is_default = ?", true)
	if exceptID != "" {
		query = query.Where("address_id <> ?", exceptID)
	}
	return query.Update("is_default", false).Error
}
