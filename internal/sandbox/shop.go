// Package sandbox 本地沙箱商城后端，实现远端商城 API 供联调与测试。
package sandbox

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultPaymentExpireSeconds = 1800

// Shop 沙箱商城业务
type Shop struct {
	db        *gorm.DB
	skus      *repository.GormSkuRepository
	carts     *repository.GormCartRepository
	orders    *repository.GormOrderRepository
	payments  *repository.GormPaymentRepository
	addresses *repository.GormAddressRepository
	cfg       config.SandboxConfig
	log       *zap.SugaredLogger
	now       func() time.Time

	// sqlite 单写者，状态查询的读改写串行执行
	paymentMu sync.Mutex
}

// NewShop 创建沙箱商城
func NewShop(db *gorm.DB, cfg config.SandboxConfig, log *zap.SugaredLogger) *Shop {
	if log == nil {
		log = logger.Named("sandbox")
	}
	return &Shop{
		db:        db,
		skus:      repository.NewSkuRepository(db),
		carts:     repository.NewCartRepository(db),
		orders:    repository.NewOrderRepository(db),
		payments:  repository.NewPaymentRepository(db),
		addresses: repository.NewAddressRepository(db),
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// ListCart 购物车，库存与失效标记以商品目录为准
func (s *Shop) ListCart() ([]models.CartItem, error) {
	lines, err := s.carts.List()
	if err != nil {
		return nil, err
	}
	skuIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		skuIDs = append(skuIDs, line.SkuID)
	}
	skus, err := s.skus.ListBySkuIDs(skuIDs)
	if err != nil {
		return nil, err
	}
	catalog := make(map[string]models.SandboxSku, len(skus))
	for _, sku := range skus {
		catalog[sku.SkuID] = sku
	}

	items := make([]models.CartItem, 0, len(lines))
	for _, line := range lines {
		item := line.ToCartItem()
		sku, ok := catalog[line.SkuID]
		switch {
		case !ok || !sku.Active:
			item.IsInvalid = true
		default:
			item.Stock = sku.Stock
			item.Price = sku.Price
			item.IsInvalid = line.IsInvalid
		}
		items = append(items, item)
	}
	return items, nil
}

// AddToCart 按 skuId 合并加购
func (s *Shop) AddToCart(req gateway.AddCartItemRequest) error {
	skuID := strings.TrimSpace(req.SkuID)
	if skuID == "" || req.Count < 1 {
		return badRequest("商品参数错误")
	}
	sku, err := s.skus.GetBySkuID(skuID)
	if err != nil {
		return err
	}
	if sku == nil || !sku.Active {
		return notFound("商品不存在或已下架")
	}

	line, err := s.carts.GetBySkuID(skuID)
	if err != nil {
		return err
	}
	if line != nil {
		if line.Count+req.Count > sku.Stock {
			return badRequest("库存不足")
		}
		line.Count += req.Count
		line.Selected = true
		return s.carts.Update(line)
	}
	if req.Count > sku.Stock {
		return badRequest("库存不足")
	}
	specs := models.StringMap(req.Specs)
	if specs == nil {
		specs = sku.Specs
	}
	return s.carts.Create(&models.SandboxCartLine{
		SkuID:    sku.SkuID,
		GoodsID:  sku.GoodsID,
		Title:    sku.Title,
		Image:    sku.Image,
		Price:    sku.Price,
		Count:    req.Count,
		Stock:    sku.Stock,
		Selected: true,
		Specs:    specs,
	})
}

// BatchUpdateCart 批量更新，count=0 删除；任一条失败整体回滚
func (s *Shop) BatchUpdateCart(updates []gateway.CartUpdate) error {
	if len(updates) == 0 {
		return badRequest("更新内容不能为空")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		skus := s.skus.WithTx(tx)
		for _, u := range updates {
			line, err := carts.GetBySkuID(u.SkuID)
			if err != nil {
				return err
			}
			if line == nil {
				return notFound(fmt.Sprintf("购物车中没有商品 %s", u.SkuID))
			}
			if u.Count <= 0 {
				if err := carts.DeleteBySkuIDs([]string{u.SkuID}); err != nil {
					return err
				}
				continue
			}
			sku, err := skus.GetBySkuID(u.SkuID)
			if err != nil {
				return err
			}
			if sku != nil && u.Count > sku.Stock {
				return badRequest("库存不足")
			}
			line.Count = u.Count
			if u.Selected != nil {
				line.Selected = *u.Selected
			}
			if err := carts.Update(line); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateOrder 下单：校验库存、扣减库存、移出购物车
func (s *Shop) CreateOrder(req gateway.CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, badRequest("请选择要购买的商品")
	}
	address, err := s.resolveAddress(req)
	if err != nil {
		return nil, err
	}
	addressJSON, err := json.Marshal(address)
	if err != nil {
		return nil, err
	}

	var created *models.SandboxOrder
	err = s.db.Transaction(func(tx *gorm.DB) error {
		skus := s.skus.WithTx(tx)
		total := models.Money{}
		items := make([]models.SandboxOrderItem, 0, len(req.Items))
		skuIDs := make([]string, 0, len(req.Items))
		for _, it := range req.Items {
			if it.Count < 1 {
				return badRequest("商品数量错误")
			}
			sku, err := skus.GetBySkuID(it.SkuID)
			if err != nil {
				return err
			}
			if sku == nil || !sku.Active {
				return badRequest(fmt.Sprintf("商品 %s 已失效", it.SkuID))
			}
			ok, err := skus.DecreaseStock(it.SkuID, it.Count)
			if err != nil {
				return err
			}
			if !ok {
				return badRequest(fmt.Sprintf("商品 %s 库存不足", sku.Title))
			}
			items = append(items, models.SandboxOrderItem{
				SkuID:   sku.SkuID,
				GoodsID: sku.GoodsID,
				Title:   sku.Title,
				Image:   sku.Image,
				Price:   sku.Price,
				Count:   it.Count,
				Specs:   sku.Specs,
			})
			total = total.Add(sku.Price.MulInt(it.Count))
			skuIDs = append(skuIDs, sku.SkuID)
		}

		order := &models.SandboxOrder{
			OrderNo:       "ORD" + s.now().Format("20060102150405") + shortID(),
			Status:        models.OrderStatusPendingPayment,
			TotalAmount:   total,
			PaymentAmount: total,
			FreightAmount: models.NewMoneyFromDecimal(decimal.Zero),
			AddressJSON:   string(addressJSON),
			Remark:        strings.TrimSpace(req.Remark),
			Items:         items,
			CreatedAt:     s.now(),
		}
		if err := s.orders.WithTx(tx).Create(order); err != nil {
			return err
		}
		if err := s.carts.WithTx(tx).DeleteBySkuIDs(skuIDs); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("sandbox_order_created", "order_no", created.OrderNo, "amount", created.PaymentAmount.String())
	order := created.ToOrder()
	return &order, nil
}

func (s *Shop) resolveAddress(req gateway.CreateOrderRequest) (models.Address, error) {
	if req.Address != nil {
		addr := *req.Address
		if strings.TrimSpace(addr.Name) == "" || strings.TrimSpace(addr.Address) == "" {
			return models.Address{}, badRequest("收货地址不完整")
		}
		return addr, nil
	}
	id := strings.TrimSpace(req.AddressID)
	if id == "" {
		return models.Address{}, badRequest("请选择收货地址")
	}
	row, err := s.addresses.GetByAddressID(id)
	if err != nil {
		return models.Address{}, err
	}
	if row == nil {
		return models.Address{}, notFound("收货地址不存在")
	}
	return row.ToAddress(), nil
}

// GetOrder 订单详情
func (s *Shop) GetOrder(orderNo string) (*models.Order, error) {
	row, err := s.orders.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, notFound("订单不存在")
	}
	order := row.ToOrder()
	return &order, nil
}

// ListOrders 订单分页
func (s *Shop) ListOrders(filter repository.OrderListFilter) (*gateway.OrderPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}
	rows, total, err := s.orders.List(filter)
	if err != nil {
		return nil, err
	}
	page := &gateway.OrderPage{
		Records: make([]models.Order, 0, len(rows)),
		Total:   total,
		Page:    filter.Page,
		Size:    filter.PageSize,
	}
	for _, row := range rows {
		page.Records = append(page.Records, row.ToOrder())
	}
	return page, nil
}

// CancelOrder 待付款、待发货可取消
func (s *Shop) CancelOrder(orderNo string) error {
	return s.transition(orderNo,
		[]models.OrderStatus{models.OrderStatusPendingPayment, models.OrderStatusPendingShipment},
		models.OrderStatusCancelled, "close_time", "当前订单状态不可取消")
}

// ConfirmOrder 待收货可确认
func (s *Shop) ConfirmOrder(orderNo string) error {
	return s.transition(orderNo,
		[]models.OrderStatus{models.OrderStatusPendingReceipt},
		models.OrderStatusCompleted, "complete_time", "当前订单状态不可确认收货")
}

// ShipOrder 演示发货：待发货 -> 待收货
func (s *Shop) ShipOrder(orderNo string) error {
	return s.transition(orderNo,
		[]models.OrderStatus{models.OrderStatusPendingShipment},
		models.OrderStatusPendingReceipt, "delivery_time", "当前订单状态不可发货")
}

func (s *Shop) transition(orderNo string, from []models.OrderStatus, to models.OrderStatus, timeColumn, rejectMsg string) error {
	ok, err := s.orders.UpdateStatus(orderNo, from, map[string]interface{}{
		"status":   to,
		timeColumn: s.now(),
	})
	if err != nil {
		return err
	}
	if ok {
		s.log.Infow("sandbox_order_transition", "order_no", orderNo, "to", int(to))
		return nil
	}
	row, err := s.orders.GetByOrderNo(orderNo)
	if err != nil {
		return err
	}
	if row == nil {
		return notFound("订单不存在")
	}
	return badRequest(rejectMsg)
}

// PaymentMethods 支付方式
func (s *Shop) PaymentMethods() []models.PaymentMethod {
	return []models.PaymentMethod{
		{Code: constants.PaymentMethodWechat, Name: "微信支付", Enabled: true},
		{Code: constants.PaymentMethodAlipay, Name: "支付宝", Enabled: true},
	}
}

// CreatePayment 为待付款订单创建支付单
func (s *Shop) CreatePayment(req gateway.CreatePaymentRequest) (*gateway.CreatePaymentResult, error) {
	method := strings.TrimSpace(req.Method)
	if method != constants.PaymentMethodWechat && method != constants.PaymentMethodAlipay {
		return nil, badRequest("不支持的支付方式")
	}
	order, err := s.orders.GetByOrderNo(strings.TrimSpace(req.OrderNo))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, notFound("订单不存在")
	}
	if order.Status != models.OrderStatusPendingPayment {
		return nil, badRequest("订单状态不可支付")
	}

	payment := &models.SandboxPayment{
		PaymentNo: "PAY" + s.now().Format("20060102150405") + shortID(),
		OrderNo:   order.OrderNo,
		Method:    method,
		Amount:    order.PaymentAmount,
		Status:    constants.PaymentStatusUnpaid,
		ExpiresIn: defaultPaymentExpireSeconds,
		CreatedAt: s.now(),
	}
	switch method {
	case constants.PaymentMethodWechat:
		payment.QRCodeURL = "weixin://wxpay/bizpayurl?pr=" + payment.PaymentNo
	case constants.PaymentMethodAlipay:
		payment.RedirectURL = "https://openapi.alipay.com/gateway.do?out_trade_no=" + payment.PaymentNo
	}
	if err := s.payments.Create(payment); err != nil {
		return nil, err
	}
	s.log.Infow("sandbox_payment_created", "payment_no", payment.PaymentNo, "order_no", order.OrderNo, "method", method)
	return &gateway.CreatePaymentResult{
		PaymentNo:   payment.PaymentNo,
		QRCodeURL:   payment.QRCodeURL,
		RedirectURL: payment.RedirectURL,
		ExpiresIn:   payment.ExpiresIn,
		Amount:      payment.Amount,
	}, nil
}

// PaymentStatus 查询支付状态
// 默认保持 UNPAID；开启演示支付后第 N 次查询返回 PAID 并推进订单。
func (s *Shop) PaymentStatus(paymentNo string) (*gateway.PaymentStatusResult, error) {
	s.paymentMu.Lock()
	defer s.paymentMu.Unlock()

	var result *gateway.PaymentStatusResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		payments := s.payments.WithTx(tx)
		payment, err := payments.GetByPaymentNo(strings.TrimSpace(paymentNo))
		if err != nil {
			return err
		}
		if payment == nil {
			return notFound("支付单不存在")
		}
		payment.QueryCount++
		now := s.now()

		if payment.Status == constants.PaymentStatusUnpaid {
			expireAt := payment.CreatedAt.Add(time.Duration(payment.ExpiresIn) * time.Second)
			switch {
			case s.cfg.DemoPaymentSuccessAfter > 0 && payment.QueryCount >= s.cfg.DemoPaymentSuccessAfter:
				payment.Status = constants.PaymentStatusPaid
				payment.PayTime = &now
				if _, err := s.orders.WithTx(tx).UpdateStatus(payment.OrderNo,
					[]models.OrderStatus{models.OrderStatusPendingPayment},
					map[string]interface{}{
						"status":         models.OrderStatusPendingShipment,
						"pay_time":       now,
						"payment_method": payment.Method,
					}); err != nil {
					return err
				}
			case payment.ExpiresIn > 0 && now.After(expireAt):
				payment.Status = constants.PaymentStatusClosed
			}
		}
		if err := payments.Update(payment); err != nil {
			return err
		}
		result = &gateway.PaymentStatusResult{
			PaymentNo: payment.PaymentNo,
			Status:    payment.Status,
			PayTime:   payment.PayTime,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListAddresses 地址列表
func (s *Shop) ListAddresses() ([]models.Address, error) {
	rows, err := s.addresses.List()
	if err != nil {
		return nil, err
	}
	out := make([]models.Address, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToAddress())
	}
	return out, nil
}

// AddAddress 新增地址
func (s *Shop) AddAddress(req gateway.AddressPayload) (*models.Address, error) {
	row := addressRow("addr-"+strings.ToLower(shortID()), req)
	if row.Name == "" || row.Mobile == "" || row.Address == "" {
		return nil, badRequest("请填写完整的收货信息")
	}
	if err := s.addresses.Create(&row); err != nil {
		return nil, err
	}
	out := row.ToAddress()
	return &out, nil
}

// UpdateAddress 修改地址
func (s *Shop) UpdateAddress(id string, req gateway.AddressPayload) (*models.Address, error) {
	existing, err := s.addresses.GetByAddressID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFound("地址不存在")
	}
	row := addressRow(existing.AddressID, req)
	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	if row.Name == "" || row.Mobile == "" || row.Address == "" {
		return nil, badRequest("请填写完整的收货信息")
	}
	if err := s.addresses.Update(&row); err != nil {
		return nil, err
	}
	out := row.ToAddress()
	return &out, nil
}

// DeleteAddress 删除地址
func (s *Shop) DeleteAddress(id string) error {
	ok, err := s.addresses.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("地址不存在")
	}
	return nil
}

// SetDefaultAddress 设为默认
func (s *Shop) SetDefaultAddress(id string) error {
	ok, err := s.addresses.SetDefault(id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("地址不存在")
	}
	return nil
}

func addressRow(id string, req gateway.AddressPayload) models.SandboxAddress {
	return models.SandboxAddress{
		AddressID: id,
		Name:      strings.TrimSpace(req.Name),
		Mobile:    strings.TrimSpace(req.Mobile),
		Province:  strings.TrimSpace(req.Province),
		City:      strings.TrimSpace(req.City),
		District:  strings.TrimSpace(req.District),
		Address:   strings.TrimSpace(req.Address),
		IsDefault: req.IsDefault,
	}
}
