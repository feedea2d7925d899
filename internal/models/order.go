package models

import "time"

// OrderStatus 订单状态（与远端数值一致）
type OrderStatus int

const (
	OrderStatusPendingPayment  OrderStatus = 1 // 待付款
	OrderStatusPendingShipment OrderStatus = 2 // 待发货
	OrderStatusPendingReceipt  OrderStatus = 3 // 待收货
	OrderStatusCompleted       OrderStatus = 4 // 已完成
	OrderStatusCancelled       OrderStatus = 5 // 已取消
	OrderStatusClosed          OrderStatus = 6 // 已关闭
)

var orderStatusText = map[OrderStatus]string{
	OrderStatusPendingPayment:  "待付款",
	OrderStatusPendingShipment: "待发货",
	OrderStatusPendingReceipt:  "待收货",
	OrderStatusCompleted:       "已完成",
	OrderStatusCancelled:       "已取消",
	OrderStatusClosed:          "已关闭",
}

// Text 状态文案，未知状态返回 "未知状态"
func (s OrderStatus) Text() string {
	if text, ok := orderStatusText[s]; ok {
		return text
	}
	return "未知状态"
}

// Valid 是否为已知状态
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusText[s]
	return ok
}

// Terminal 终态不再自动流转
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusClosed
}

// CanTransitionTo 状态流转校验
// 1 -> 2 -> 3 -> 4；1、2 可取消；任意非终态可被系统关闭。
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch next {
	case OrderStatusPendingShipment:
		return s == OrderStatusPendingPayment
	case OrderStatusPendingReceipt:
		return s == OrderStatusPendingShipment
	case OrderStatusCompleted:
		return s == OrderStatusPendingReceipt
	case OrderStatusCancelled:
		return s == OrderStatusPendingPayment || s == OrderStatusPendingShipment
	case OrderStatusClosed:
		return s.Valid() && !s.Terminal()
	default:
		return false
	}
}

// Order 订单
type Order struct {
	OrderNo       string      `json:"orderNo"`
	Status        OrderStatus `json:"status"`
	TotalAmount   Money       `json:"totalAmount"`
	PaymentAmount Money       `json:"paymentAmount"`
	FreightAmount Money       `json:"freightAmount"`
	Items         []OrderItem `json:"items"`
	Address       *Address    `json:"address,omitempty"`
	Remark        string      `json:"remark,omitempty"`
	PaymentMethod string      `json:"paymentMethod,omitempty"`
	CreateTime    *time.Time  `json:"createTime,omitempty"`
	PayTime       *time.Time  `json:"payTime,omitempty"`
	DeliveryTime  *time.Time  `json:"deliveryTime,omitempty"`
	CompleteTime  *time.Time  `json:"completeTime,omitempty"`
	CloseTime     *time.Time  `json:"closeTime,omitempty"`
}

// StatusText 状态文案
func (o Order) StatusText() string {
	return o.Status.Text()
}

// Clone 深拷贝
func (o Order) Clone() Order {
	out := o
	if o.Items != nil {
		out.Items = make([]OrderItem, len(o.Items))
		for i := range o.Items {
			out.Items[i] = o.Items[i].Clone()
		}
	}
	if o.Address != nil {
		addr := *o.Address
		out.Address = &addr
	}
	out.CreateTime = cloneTime(o.CreateTime)
	out.PayTime = cloneTime(o.PayTime)
	out.DeliveryTime = cloneTime(o.DeliveryTime)
	out.CompleteTime = cloneTime(o.CompleteTime)
	out.CloseTime = cloneTime(o.CloseTime)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
