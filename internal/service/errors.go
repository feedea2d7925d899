package service

import "errors"

// 购物车
var (
	ErrSkuRequired          = errors.New("sku id is required")
	ErrInvalidCount         = errors.New("invalid cart item count")
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrCartItemUnselectable = errors.New("cart item is invalid or out of stock")
	ErrInsufficientStock    = errors.New("count exceeds stock")
	ErrBelowMinimumCount    = errors.New("count would fall below 1")
)

// 支付
var (
	ErrPaymentInvalid           = errors.New("payment input invalid")
	ErrPaymentMethodUnsupported = errors.New("payment method not supported")
	ErrNoActivePayment          = errors.New("no active payment session")
)

// 地址
var (
	ErrAddressInvalid   = errors.New("address input invalid")
	ErrAddressDuplicate = errors.New("address already exists")
	ErrAddressNotFound  = errors.New("address not found")
)

// 订单
var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderStatusInvalid   = errors.New("order status does not allow this operation")
	ErrOrderItemsRequired   = errors.New("order items required")
	ErrOrderAddressRequired = errors.New("order address required")
)
