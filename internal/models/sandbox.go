package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringMap 以 JSON 文本存储的字符串映射（规格）
type StringMap map[string]string

// Value 实现 driver.Valuer
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (m *StringMap) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("unsupported StringMap value")
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if len(out) == 0 {
		*m = nil
		return nil
	}
	*m = out
	return nil
}

// SandboxCartLine 沙箱购物车行
type SandboxCartLine struct {
	ID        uint      `gorm:"primarykey"`
	SkuID     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	GoodsID   string    `gorm:"type:varchar(64);index"`
	Title     string    `gorm:"type:varchar(255)"`
	Image     string    `gorm:"type:varchar(512)"`
	Price     Money     `gorm:"type:decimal(20,2);not null;default:0"`
	Count     int       `gorm:"not null;default:1"`
	Stock     int       `gorm:"not null;default:0"`
	Selected  bool      `gorm:"not null;default:true"`
	IsInvalid bool      `gorm:"not null;default:false"`
	Specs     StringMap `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (SandboxCartLine) TableName() string {
	return "sandbox_cart_lines"
}

// ToCartItem 转换为购物车项
func (l SandboxCartLine) ToCartItem() CartItem {
	return CartItem{
		SkuID:     l.SkuID,
		GoodsID:   l.GoodsID,
		Title:     l.Title,
		Image:     l.Image,
		Price:     l.Price,
		Count:     l.Count,
		Selected:  l.Selected,
		Stock:     l.Stock,
		Specs:     map[string]string(l.Specs),
		IsInvalid: l.IsInvalid,
	}
}

// SandboxSku 沙箱商品目录（下单与加购时查价）
type SandboxSku struct {
	ID      uint      `gorm:"primarykey"`
	SkuID   string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	GoodsID string    `gorm:"type:varchar(64);index"`
	Title   string    `gorm:"type:varchar(255)"`
	Image   string    `gorm:"type:varchar(512)"`
	Price   Money     `gorm:"type:decimal(20,2);not null;default:0"`
	Stock   int       `gorm:"not null;default:0"`
	Active  bool      `gorm:"not null;default:true"`
	Specs   StringMap `gorm:"type:text"`
}

// TableName 指定表名
func (SandboxSku) TableName() string {
	return "sandbox_skus"
}

// SandboxOrder 沙箱订单
type SandboxOrder struct {
	ID            uint               `gorm:"primarykey"`
	OrderNo       string             `gorm:"type:varchar(64);uniqueIndex;not null"`
	Status        OrderStatus        `gorm:"not null;index"`
	TotalAmount   Money              `gorm:"type:decimal(20,2);not null;default:0"`
	PaymentAmount Money              `gorm:"type:decimal(20,2);not null;default:0"`
	FreightAmount Money              `gorm:"type:decimal(20,2);not null;default:0"`
	AddressJSON   string             `gorm:"type:text"`
	Remark        string             `gorm:"type:varchar(512)"`
	PaymentMethod string             `gorm:"type:varchar(32)"`
	Items         []SandboxOrderItem `gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time          `gorm:"index"`
	PayTime       *time.Time
	DeliveryTime  *time.Time
	CompleteTime  *time.Time
	CloseTime     *time.Time
}

// TableName 指定表名
func (SandboxOrder) TableName() string {
	return "sandbox_orders"
}

// ToOrder 转换为订单
func (o SandboxOrder) ToOrder() Order {
	created := o.CreatedAt
	out := Order{
		OrderNo:       o.OrderNo,
		Status:        o.Status,
		TotalAmount:   o.TotalAmount,
		PaymentAmount: o.PaymentAmount,
		FreightAmount: o.FreightAmount,
		Remark:        o.Remark,
		PaymentMethod: o.PaymentMethod,
		CreateTime:    &created,
		PayTime:       cloneTime(o.PayTime),
		DeliveryTime:  cloneTime(o.DeliveryTime),
		CompleteTime:  cloneTime(o.CompleteTime),
		CloseTime:     cloneTime(o.CloseTime),
		Items:         make([]OrderItem, 0, len(o.Items)),
	}
	if o.AddressJSON != "" {
		var addr Address
		if err := json.Unmarshal([]byte(o.AddressJSON), &addr); err == nil {
			out.Address = &addr
		}
	}
	for _, item := range o.Items {
		out.Items = append(out.Items, OrderItem{
			SkuID:   item.SkuID,
			GoodsID: item.GoodsID,
			Title:   item.Title,
			Image:   item.Image,
			Price:   item.Price,
			Count:   item.Count,
			Specs:   map[string]string(item.Specs),
		})
	}
	return out
}

// SandboxOrderItem 沙箱订单项
type SandboxOrderItem struct {
	ID      uint      `gorm:"primarykey"`
	OrderID uint      `gorm:"index;not null"`
	SkuID   string    `gorm:"type:varchar(64);not null"`
	GoodsID string    `gorm:"type:varchar(64)"`
	Title   string    `gorm:"type:varchar(255)"`
	Image   string    `gorm:"type:varchar(512)"`
	Price   Money     `gorm:"type:decimal(20,2);not null;default:0"`
	Count   int       `gorm:"not null"`
	Specs   StringMap `gorm:"type:text"`
}

// TableName 指定表名
func (SandboxOrderItem) TableName() string {
	return "sandbox_order_items"
}

// SandboxPayment 沙箱支付单
type SandboxPayment struct {
	ID          uint   `gorm:"primarykey"`
	PaymentNo   string `gorm:"type:varchar(64);uniqueIndex;not null"`
	OrderNo     string `gorm:"type:varchar(64);index;not null"`
	Method      string `gorm:"type:varchar(32);not null"`
	Amount      Money  `gorm:"type:decimal(20,2);not null;default:0"`
	Status      string `gorm:"type:varchar(16);not null;index"`
	ExpiresIn   int    `gorm:"not null"`
	QueryCount  int    `gorm:"not null;default:0"` // 状态查询次数，演示支付按此升级
	QRCodeURL   string `gorm:"type:varchar(512)"`
	RedirectURL string `gorm:"type:varchar(512)"`
	PayTime     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 指定表名
func (SandboxPayment) TableName() string {
	return "sandbox_payments"
}

// SandboxAddress 沙箱收货地址
type SandboxAddress struct {
	ID        uint   `gorm:"primarykey"`
	AddressID string `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name      string `gorm:"type:varchar(64);not null"`
	Mobile    string `gorm:"type:varchar(32);not null"`
	Province  string `gorm:"type:varchar(64)"`
	City      string `gorm:"type:varchar(64)"`
	District  string `gorm:"type:varchar(64)"`
	Address   string `gorm:"type:varchar(255);not null"`
	IsDefault bool   `gorm:"not null;default:false;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (SandboxAddress) TableName() string {
	return "sandbox_addresses"
}

// ToAddress 转换为地址
func (a SandboxAddress) ToAddress() Address {
	return Address{
		ID:        a.AddressID,
		Name:      a.Name,
		Mobile:    a.Mobile,
		Province:  a.Province,
		City:      a.City,
		District:  a.District,
		Address:   a.Address,
		IsDefault: a.IsDefault,
	}
}
