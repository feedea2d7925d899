package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dujiao-next/storefront/internal/models"
)

// MessageLocalFallback 确认收货在远端不可达时的本地处理消息
const MessageLocalFallback = "success (local)"

// Envelope 远端统一响应结构
type Envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// CartGateway 购物车远端接口
type CartGateway interface {
	FetchCart(ctx context.Context) ([]models.CartItem, error)
	AddCartItem(ctx context.Context, req AddCartItemRequest) error
	BatchUpdateCart(ctx context.Context, updates []CartUpdate) error
}

// OrderGateway 订单远端接口
type OrderGateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, orderNo string) (*models.Order, error)
	ListOrders(ctx context.Context, params OrderListParams) (*OrderPage, error)
	CancelOrder(ctx context.Context, orderNo string) error
	ConfirmReceipt(ctx context.Context, orderNo string) (*Ack, error)
}

// PaymentGateway 支付远端接口
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)
	GetPaymentStatus(ctx context.Context, paymentNo string) (*PaymentStatusResult, error)
	ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error)
}

// AddressGateway 地址远端接口
type AddressGateway interface {
	ListAddresses(ctx context.Context) ([]models.Address, error)
	AddAddress(ctx context.Context, req AddressPayload) (*models.Address, error)
	UpdateAddress(ctx context.Context, id string, req AddressPayload) (*models.Address, error)
	DeleteAddress(ctx context.Context, id string) error
	SetDefaultAddress(ctx context.Context, id string) error
}

// Gateway 远端商城全部接口
type Gateway interface {
	CartGateway
	OrderGateway
	PaymentGateway
	AddressGateway
}

// AddCartItemRequest 加入购物车
type AddCartItemRequest struct {
	SkuID   string            `json:"skuId"`
	GoodsID string            `json:"goodsId"`
	Count   int               `json:"count"`
	Specs   map[string]string `json:"specs,omitempty"`
}

// CartUpdate 批量更新项，count 为绝对数量，0 表示删除
type CartUpdate struct {
	SkuID    string `json:"skuId"`
	Count    int    `json:"count"`
	Selected *bool  `json:"selected,omitempty"`
}

// OrderItemRequest 下单商品
type OrderItemRequest struct {
	SkuID string `json:"skuId"`
	Count int    `json:"count"`
}

// CreateOrderRequest 下单，Address 与 AddressID 二选一
type CreateOrderRequest struct {
	Items     []OrderItemRequest `json:"items"`
	AddressID string             `json:"addressId,omitempty"`
	Address   *models.Address    `json:"address,omitempty"`
	Remark    string             `json:"remark,omitempty"`
}

// OrderListParams 订单列表查询
type OrderListParams struct {
	Status   int
	Page     int
	PageSize int
}

// OrderPage 订单分页
type OrderPage struct {
	Records []models.Order `json:"records"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Size    int            `json:"size"`
}

// Ack 无数据的成功响应
type Ack struct {
	Message string `json:"message"`
	Offline bool   `json:"offline"` // 远端不可达时由本地兜底
}

// CreatePaymentRequest 创建支付
type CreatePaymentRequest struct {
	OrderNo string `json:"orderNo"`
	Method  string `json:"method"`
}

// CreatePaymentResult 创建支付结果
type CreatePaymentResult struct {
	No          string       `json:"no,omitempty"`
	PaymentNo   string       `json:"paymentNo,omitempty"`
	QRCodeURL   string       `json:"qrCodeUrl,omitempty"`
	RedirectURL string       `json:"redirectUrl,omitempty"`
	ExpiresIn   int          `json:"expiresIn,omitempty"`
	Amount      models.Money `json:"amount"`
}

// Number 支付单号，兼容 no / paymentNo 两种字段
func (r CreatePaymentResult) Number() string {
	if r.No != "" {
		return r.No
	}
	return r.PaymentNo
}

// PaymentStatusResult 支付状态
type PaymentStatusResult struct {
	PaymentNo string     `json:"paymentNo"`
	Status    string     `json:"status"`
	PayTime   *time.Time `json:"payTime,omitempty"`
}

// AddressPayload 地址写入载荷
type AddressPayload struct {
	Name      string `json:"name"`
	Mobile    string `json:"mobile"`
	Province  string `json:"province"`
	City      string `json:"city"`
	District  string `json:"district"`
	Address   string `json:"address"`
	IsDefault bool   `json:"isDefault"`
}

// PayloadFromAddress 由地址生成写入载荷
func PayloadFromAddress(a models.Address) AddressPayload {
	return AddressPayload{
		Name:      a.Name,
		Mobile:    a.Mobile,
		Province:  a.Province,
		City:      a.City,
		District:  a.District,
		Address:   a.Address,
		IsDefault: a.IsDefault,
	}
}
