package sandbox

import (
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/repository"

	"gorm.io/gorm"
)

// DefaultCatalog 演示商品目录
func DefaultCatalog() []models.SandboxSku {
	return []models.SandboxSku{
		{SkuID: "SKU-TEE-WHITE-M", GoodsID: "G-TEE", Title: "纯棉短袖T恤", Price: models.NewMoney("59.00"), Stock: 100, Active: true,
			Specs: models.StringMap{"颜色": "白色", "尺码": "M"}},
		{SkuID: "SKU-TEE-BLACK-L", GoodsID: "G-TEE", Title: "纯棉短袖T恤", Price: models.NewMoney("59.00"), Stock: 3, Active: true,
			Specs: models.StringMap{"颜色": "黑色", "尺码": "L"}},
		{SkuID: "SKU-MUG-01", GoodsID: "G-MUG", Title: "陶瓷马克杯", Price: models.NewMoney("29.90"), Stock: 50, Active: true},
		{SkuID: "SKU-EARPHONE", GoodsID: "G-EAR", Title: "无线蓝牙耳机", Price: models.NewMoney("199.00"), Stock: 0, Active: true},
		{SkuID: "SKU-RETIRED", GoodsID: "G-OLD", Title: "已下架商品", Price: models.NewMoney("9.90"), Stock: 10, Active: false},
	}
}

// Seed 写入商品目录；withCart 时同时写入演示购物车
func Seed(db *gorm.DB, catalog []models.SandboxSku, withCart bool) error {
	return db.Transaction(func(tx *gorm.DB) error {
		skus := repository.NewSkuRepository(tx)
		for i := range catalog {
			if err := skus.Upsert(&catalog[i]); err != nil {
				return err
			}
		}
		if !withCart {
			return nil
		}
		carts := repository.NewCartRepository(tx)
		for _, sku := range catalog {
			existing, err := carts.GetBySkuID(sku.SkuID)
			if err != nil {
				return err
			}
			if existing != nil || sku.Stock == 0 {
				continue
			}
			if err := carts.Create(&models.SandboxCartLine{
				SkuID:    sku.SkuID,
				GoodsID:  sku.GoodsID,
				Title:    sku.Title,
				Image:    sku.Image,
				Price:    sku.Price,
				Count:    1,
				Stock:    sku.Stock,
				Selected: true,
				Specs:    sku.Specs,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
