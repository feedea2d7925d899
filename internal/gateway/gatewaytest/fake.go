// Package gatewaytest 提供可编排的内存版远端商城，用于服务层测试。
package gatewaytest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/models"
)

// 操作名，用于注入失败与统计调用次数
const (
	OpFetchCart         = "FetchCart"
	OpAddCartItem       = "AddCartItem"
	OpBatchUpdateCart   = "BatchUpdateCart"
	OpCreateOrder       = "CreateOrder"
	OpGetOrder          = "GetOrder"
	OpListOrders        = "ListOrders"
	OpCancelOrder       = "CancelOrder"
	OpConfirmReceipt    = "ConfirmReceipt"
	OpCreatePayment     = "CreatePayment"
	OpGetPaymentStatus  = "GetPaymentStatus"
	OpListPaymentMethod = "ListPaymentMethods"
	OpListAddresses     = "ListAddresses"
	OpAddAddress        = "AddAddress"
	OpUpdateAddress     = "UpdateAddress"
	OpDeleteAddress     = "DeleteAddress"
	OpSetDefaultAddress = "SetDefaultAddress"
)

// TransportError 模拟无响应
func TransportError() error {
	return fmt.Errorf("%w: connection refused", gateway.ErrTransport)
}

// Rejected 模拟 code != 200
func Rejected(code int, message string) error {
	return &gateway.APIError{Code: code, Message: message}
}

// Fake 内存远端
type Fake struct {
	mu sync.Mutex

	cart      []models.CartItem
	orders    map[string]*models.Order
	addresses []models.Address
	methods   []models.PaymentMethod
	statuses  map[string][]string

	failNext   map[string][]error
	failAlways map[string]error
	calls      map[string]int
	seq        int

	// PaymentExpiresIn 创建支付时返回的有效期，0 表示不返回
	PaymentExpiresIn int
	// Latency 每次调用前的延迟
	Latency time.Duration
	// BatchUpdates 记录所有成功的批量更新
	BatchUpdates [][]gateway.CartUpdate
}

// New 创建空的 Fake
func New() *Fake {
	return &Fake{
		orders:     make(map[string]*models.Order),
		statuses:   make(map[string][]string),
		failNext:   make(map[string][]error),
		failAlways: make(map[string]error),
		calls:      make(map[string]int),
		methods: []models.PaymentMethod{
			{Code: constants.PaymentMethodWechat, Name: "微信支付", Enabled: true},
			{Code: constants.PaymentMethodAlipay, Name: "支付宝", Enabled: true},
		},
	}
}

// SeedCart 设置远端购物车
func (f *Fake) SeedCart(items ...models.CartItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cart = models.CloneCartItems(items)
}

// SeedAddresses 设置远端地址
func (f *Fake) SeedAddresses(list ...models.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addresses = models.CloneAddresses(list)
}

// SeedOrder 写入远端订单
func (f *Fake) SeedOrder(order models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := order.Clone()
	f.orders[o.OrderNo] = &o
}

// SetPaymentStatuses 设置支付状态序列，取尽后重复最后一个
func (f *Fake) SetPaymentStatuses(paymentNo string, statuses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[paymentNo] = append([]string(nil), statuses...)
}

// FailNext 下一次调用 op 返回 err
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[op] = append(f.failNext[op], err)
}

// FailAlways 之后每次调用 op 都返回 err
func (f *Fake) FailAlways(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAlways[op] = err
}

// Recover 取消 op 的失败注入
func (f *Fake) Recover(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failAlways, op)
	delete(f.failNext, op)
}

// Calls op 被调用次数
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Cart 远端购物车快照
func (f *Fake) Cart() []models.CartItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.CloneCartItems(f.cart)
}

// Addresses 远端地址快照
func (f *Fake) Addresses() []models.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.CloneAddresses(f.addresses)
}

// Order 远端订单快照
func (f *Fake) Order(orderNo string) (models.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderNo]
	if !ok {
		return models.Order{}, false
	}
	return o.Clone(), true
}

// enter 记录调用并返回注入的失败；调用方需持有锁
func (f *Fake) enter(ctx context.Context, op string) error {
	f.calls[op]++
	if f.Latency > 0 {
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			f.mu.Lock()
			return fmt.Errorf("%w: %v", gateway.ErrTransport, ctx.Err())
		case <-time.After(f.Latency):
		}
		f.mu.Lock()
	}
	if queued := f.failNext[op]; len(queued) > 0 {
		f.failNext[op] = queued[1:]
		return queued[0]
	}
	if err, ok := f.failAlways[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return prefix + strconv.Itoa(f.seq)
}

// FetchCart 实现 gateway.CartGateway
func (f *Fake) FetchCart(ctx context.Context) ([]models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpFetchCart); err != nil {
		return nil, err
	}
	return models.CloneCartItems(f.cart), nil
}

// AddCartItem 按 skuId 合并
func (f *Fake) AddCartItem(ctx context.Context, req gateway.AddCartItemRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpAddCartItem); err != nil {
		return err
	}
	for i := range f.cart {
		if f.cart[i].SkuID == req.SkuID {
			f.cart[i].Count += req.Count
			return nil
		}
	}
	f.cart = append(f.cart, models.CartItem{SkuID: req.SkuID, GoodsID: req.GoodsID, Count: req.Count, Selected: true, Stock: req.Count, Specs: req.Specs})
	return nil
}

// BatchUpdateCart count=0 删除
func (f *Fake) BatchUpdateCart(ctx context.Context, updates []gateway.CartUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpBatchUpdateCart); err != nil {
		return err
	}
	f.BatchUpdates = append(f.BatchUpdates, append([]gateway.CartUpdate(nil), updates...))
	for _, u := range updates {
		for i := range f.cart {
			if f.cart[i].SkuID != u.SkuID {
				continue
			}
			if u.Count <= 0 {
				f.cart = append(f.cart[:i], f.cart[i+1:]...)
				break
			}
			f.cart[i].Count = u.Count
			if u.Selected != nil {
				f.cart[i].Selected = *u.Selected
			}
			break
		}
	}
	return nil
}

// CreateOrder 生成待付款订单
func (f *Fake) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpCreateOrder); err != nil {
		return nil, err
	}
	now := time.Now()
	order := models.Order{
		OrderNo:    f.nextID("ORD"),
		Status:     models.OrderStatusPendingPayment,
		Remark:     req.Remark,
		CreateTime: &now,
	}
	total := models.Money{}
	for _, it := range req.Items {
		line := models.OrderItem{SkuID: it.SkuID, Count: it.Count}
		for _, c := range f.cart {
			if c.SkuID == it.SkuID {
				line = models.OrderItemFromCart(c)
				line.Count = it.Count
			}
		}
		total = total.Add(line.Price.MulInt(line.Count))
		order.Items = append(order.Items, line)
	}
	order.TotalAmount = total
	order.PaymentAmount = total
	if req.Address != nil {
		addr := *req.Address
		order.Address = &addr
	}
	f.orders[order.OrderNo] = &order
	out := order.Clone()
	return &out, nil
}

// GetOrder 订单详情
func (f *Fake) GetOrder(ctx context.Context, orderNo string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpGetOrder); err != nil {
		return nil, err
	}
	o, ok := f.orders[orderNo]
	if !ok {
		return nil, Rejected(404, "订单不存在")
	}
	out := o.Clone()
	return &out, nil
}

// ListOrders 订单列表，按状态过滤
func (f *Fake) ListOrders(ctx context.Context, params gateway.OrderListParams) (*gateway.OrderPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpListOrders); err != nil {
		return nil, err
	}
	page := &gateway.OrderPage{Page: params.Page, Size: params.PageSize}
	for _, o := range f.orders {
		if params.Status > 0 && int(o.Status) != params.Status {
			continue
		}
		page.Records = append(page.Records, o.Clone())
	}
	page.Total = int64(len(page.Records))
	return page, nil
}

// CancelOrder 仅允许合法流转
func (f *Fake) CancelOrder(ctx context.Context, orderNo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpCancelOrder); err != nil {
		return err
	}
	o, ok := f.orders[orderNo]
	if !ok {
		return Rejected(404, "订单不存在")
	}
	if !o.Status.CanTransitionTo(models.OrderStatusCancelled) {
		return Rejected(400, "当前状态不可取消")
	}
	now := time.Now()
	o.Status = models.OrderStatusCancelled
	o.CloseTime = &now
	return nil
}

// ConfirmReceipt 仅允许待收货
func (f *Fake) ConfirmReceipt(ctx context.Context, orderNo string) (*gateway.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpConfirmReceipt); err != nil {
		return nil, err
	}
	o, ok := f.orders[orderNo]
	if !ok {
		return nil, Rejected(404, "订单不存在")
	}
	if !o.Status.CanTransitionTo(models.OrderStatusCompleted) {
		return nil, Rejected(400, "当前状态不可确认收货")
	}
	now := time.Now()
	o.Status = models.OrderStatusCompleted
	o.CompleteTime = &now
	return &gateway.Ack{Message: "success"}, nil
}

// CreatePayment 创建支付单
func (f *Fake) CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest) (*gateway.CreatePaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpCreatePayment); err != nil {
		return nil, err
	}
	no := f.nextID("PAY")
	result := &gateway.CreatePaymentResult{No: no, ExpiresIn: f.PaymentExpiresIn}
	switch req.Method {
	case constants.PaymentMethodWechat:
		result.QRCodeURL = "weixin://wxpay/" + no
	case constants.PaymentMethodAlipay:
		result.RedirectURL = "https://openapi.alipay.test/pay/" + no
	}
	if o, ok := f.orders[req.OrderNo]; ok {
		result.Amount = o.PaymentAmount
	}
	return result, nil
}

// GetPaymentStatus 按预设序列返回
func (f *Fake) GetPaymentStatus(ctx context.Context, paymentNo string) (*gateway.PaymentStatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpGetPaymentStatus); err != nil {
		return nil, err
	}
	status := constants.PaymentStatusUnpaid
	if seq := f.statuses[paymentNo]; len(seq) > 0 {
		status = seq[0]
		if len(seq) > 1 {
			f.statuses[paymentNo] = seq[1:]
		}
	}
	result := &gateway.PaymentStatusResult{PaymentNo: paymentNo, Status: status}
	if status == constants.PaymentStatusPaid {
		now := time.Now()
		result.PayTime = &now
	}
	return result, nil
}

// ListPaymentMethods 支付方式
func (f *Fake) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpListPaymentMethod); err != nil {
		return nil, err
	}
	return append([]models.PaymentMethod(nil), f.methods...), nil
}

// ListAddresses 地址列表
func (f *Fake) ListAddresses(ctx context.Context) ([]models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpListAddresses); err != nil {
		return nil, err
	}
	return models.CloneAddresses(f.addresses), nil
}

// AddAddress 分配服务端 id
func (f *Fake) AddAddress(ctx context.Context, req gateway.AddressPayload) (*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpAddAddress); err != nil {
		return nil, err
	}
	addr := addressFromPayload(f.nextID("addr-"), req)
	if addr.IsDefault {
		f.clearDefault()
	}
	f.addresses = append(f.addresses, addr)
	return &addr, nil
}

// UpdateAddress 更新
func (f *Fake) UpdateAddress(ctx context.Context, id string, req gateway.AddressPayload) (*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpUpdateAddress); err != nil {
		return nil, err
	}
	for i := range f.addresses {
		if f.addresses[i].ID == id {
			if req.IsDefault {
				f.clearDefault()
			}
			f.addresses[i] = addressFromPayload(id, req)
			out := f.addresses[i]
			return &out, nil
		}
	}
	return nil, Rejected(404, "地址不存在")
}

// DeleteAddress 删除
func (f *Fake) DeleteAddress(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpDeleteAddress); err != nil {
		return err
	}
	for i := range f.addresses {
		if f.addresses[i].ID == id {
			f.addresses = append(f.addresses[:i], f.addresses[i+1:]...)
			return nil
		}
	}
	return Rejected(404, "地址不存在")
}

// SetDefaultAddress 设为默认
func (f *Fake) SetDefaultAddress(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(ctx, OpSetDefaultAddress); err != nil {
		return err
	}
	for i := range f.addresses {
		if f.addresses[i].ID != id {
			continue
		}
		f.clearDefault()
		f.addresses[i].IsDefault = true
		return nil
	}
	return Rejected(404, "地址不存在")
}

func (f *Fake) clearDefault() {
	for i := range f.addresses {
		f.addresses[i].IsDefault = false
	}
}

func addressFromPayload(id string, p gateway.AddressPayload) models.Address {
	return models.Address{
		ID:        id,
		Name:      p.Name,
		Mobile:    p.Mobile,
		Province:  p.Province,
		City:      p.City,
		District:  p.District,
		Address:   p.Address,
		IsDefault: p.IsDefault,
	}
}

var _ gateway.Gateway = (*Fake)(nil)
