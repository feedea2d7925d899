package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/localstore"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/notify"
	"github.com/dujiao-next/storefront/internal/state"

	"go.uber.org/zap"
)

// SubmitOrderInput 提交订单参数，Address 与 AddressID 二选一
type SubmitOrderInput struct {
	Items     []gateway.OrderItemRequest `json:"items" binding:"required"`
	AddressID string                     `json:"addressId"`
	Address   *models.Address            `json:"address"`
	Remark    string                     `json:"remark"`
}

// OrderState 当前订单与订单列表
type OrderState struct {
	Current *models.Order  `json:"current"`
	Orders  []models.Order `json:"orders"`
	Total   int64          `json:"total"`
}

func cloneOrderState(s OrderState) OrderState {
	out := OrderState{Total: s.Total}
	if s.Current != nil {
		c := s.Current.Clone()
		out.Current = &c
	}
	if s.Orders != nil {
		out.Orders = make([]models.Order, len(s.Orders))
		for i := range s.Orders {
			out.Orders[i] = s.Orders[i].Clone()
		}
	}
	return out
}

// find 在当前订单与列表中查找，返回状态
func (s *OrderState) find(orderNo string) (models.OrderStatus, bool) {
	if s.Current != nil && s.Current.OrderNo == orderNo {
		return s.Current.Status, true
	}
	for _, o := range s.Orders {
		if o.OrderNo == orderNo {
			return o.Status, true
		}
	}
	return 0, false
}

// mutate 对当前订单与列表中同号订单应用同一修改
func (s *OrderState) mutate(orderNo string, fn func(*models.Order)) {
	if s.Current != nil && s.Current.OrderNo == orderNo {
		fn(s.Current)
	}
	for i := range s.Orders {
		if s.Orders[i].OrderNo == orderNo {
			fn(&s.Orders[i])
		}
	}
}

// OrderService 订单生命周期
// 远端结果为准：远端拒绝时本地不做任何修改。
type OrderService struct {
	gw       gateway.OrderGateway
	session  *gateway.Session
	store    localstore.Store
	notifier notify.Notifier
	log      *zap.SugaredLogger
	state    *state.Store[OrderState]
	now      func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(gw gateway.OrderGateway, session *gateway.Session, store localstore.Store, notifier notify.Notifier, log *zap.SugaredLogger) *OrderService {
	if log == nil {
		log = logger.Named("order")
	}
	return &OrderService{
		gw:       gw,
		session:  session,
		store:    store,
		notifier: notifier,
		log:      log,
		state:    state.New(OrderState{}, cloneOrderState),
		now:      time.Now,
	}
}

// State 状态容器
func (s *OrderService) State() *state.Store[OrderState] {
	return s.state
}

// Current 当前订单
func (s *OrderService) Current() (*models.Order, bool) {
	st := s.state.GetState()
	return st.Current, st.Current != nil
}

// Orders 已加载的订单列表
func (s *OrderService) Orders() []models.Order {
	return s.state.GetState().Orders
}

// StatusText 状态文案
func StatusText(status int) string {
	return models.OrderStatus(status).Text()
}

// Submit 提交订单
func (s *OrderService) Submit(ctx context.Context, input SubmitOrderInput) (*models.Order, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, ErrOrderItemsRequired
	}
	for _, it := range input.Items {
		if strings.TrimSpace(it.SkuID) == "" || it.Count < 1 {
			return nil, ErrOrderItemsRequired
		}
	}
	addressID := strings.TrimSpace(input.AddressID)
	if addressID == "" && input.Address == nil {
		return nil, ErrOrderAddressRequired
	}

	req := gateway.CreateOrderRequest{
		Items:     input.Items,
		AddressID: addressID,
		Remark:    strings.TrimSpace(input.Remark),
	}
	if input.Address != nil {
		a := *input.Address
		req.Address = &a
	}

	order, err := s.gw.CreateOrder(ctx, req)
	if err != nil {
		s.log.Warnw("order_submit_failed", "items", len(input.Items), "error", err)
		s.notifier.Error(gateway.Message(err, "提交订单失败"))
		return nil, err
	}

	created := order.Clone()
	s.state.Dispatch("order/submitted", func(st *OrderState) {
		c := created.Clone()
		st.Current = &c
		st.Orders = append([]models.Order{created.Clone()}, st.Orders...)
		st.Total++
	})
	s.persistCurrent(ctx)
	s.log.Infow("order_submitted", "order_no", created.OrderNo, "amount", created.PaymentAmount.String())
	s.notifier.Success("订单提交成功")
	return &created, nil
}

// GetDetail 订单详情；远端失败时回退到同号的当前订单
func (s *OrderService) GetDetail(ctx context.Context, orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.gw.GetOrder(ctx, orderNo)
	if err != nil {
		st := s.state.GetState()
		if st.Current != nil && st.Current.OrderNo == orderNo {
			s.log.Warnw("order_detail_fallback_current", "order_no", orderNo, "error", err)
			return st.Current, nil
		}
		s.log.Warnw("order_detail_failed", "order_no", orderNo, "error", err)
		s.notifier.Error(gateway.Message(err, "获取订单详情失败"))
		return nil, err
	}

	detail := order.Clone()
	s.state.Dispatch("order/detail", func(st *OrderState) {
		c := detail.Clone()
		st.Current = &c
		for i := range st.Orders {
			if st.Orders[i].OrderNo == orderNo {
				st.Orders[i] = detail.Clone()
			}
		}
	})
	s.persistCurrent(ctx)
	return &detail, nil
}

// List 订单列表
func (s *OrderService) List(ctx context.Context, params gateway.OrderListParams) (*gateway.OrderPage, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = 10
	}
	page, err := s.gw.ListOrders(ctx, params)
	if err != nil {
		s.log.Warnw("order_list_failed", "status", params.Status, "page", params.Page, "error", err)
		s.notifier.Error(gateway.Message(err, "获取订单列表失败"))
		return nil, err
	}
	s.state.Dispatch("order/listed", func(st *OrderState) {
		st.Orders = make([]models.Order, len(page.Records))
		for i := range page.Records {
			st.Orders[i] = page.Records[i].Clone()
		}
		st.Total = page.Total
	})
	return page, nil
}

// Cancel 取消订单，仅待付款、待发货可取消
func (s *OrderService) Cancel(ctx context.Context, orderNo string) error {
	if err := s.requireLogin(); err != nil {
		return err
	}
	if err := s.gate(ctx, orderNo, models.OrderStatusCancelled); err != nil {
		if errors.Is(err, ErrOrderStatusInvalid) {
			s.notifier.Warning("当前订单状态不可取消")
		}
		return err
	}

	if err := s.gw.CancelOrder(ctx, orderNo); err != nil {
		s.log.Warnw("order_cancel_failed", "order_no", orderNo, "error", err)
		s.notifier.Error(gateway.Message(err, "取消订单失败"))
		return err
	}

	closeTime := s.now()
	s.state.Dispatch("order/cancelled", func(st *OrderState) {
		st.mutate(orderNo, func(o *models.Order) {
			o.Status = models.OrderStatusCancelled
			t := closeTime
			o.CloseTime = &t
		})
	})
	s.persistCurrent(ctx)
	s.log.Infow("order_cancelled", "order_no", orderNo)
	s.notifier.Success("订单已取消")
	return nil
}

// ConfirmReceipt 确认收货，仅待收货可确认；远端不可达时按本地兜底处理
func (s *OrderService) ConfirmReceipt(ctx context.Context, orderNo string) (*gateway.Ack, error) {
	if err := s.requireLogin(); err != nil {
		return nil, err
	}
	if err := s.gate(ctx, orderNo, models.OrderStatusCompleted); err != nil {
		if errors.Is(err, ErrOrderStatusInvalid) {
			s.notifier.Warning("当前订单状态不可确认收货")
		}
		return nil, err
	}

	ack, err := s.gw.ConfirmReceipt(ctx, orderNo)
	if err != nil {
		s.log.Warnw("order_confirm_failed", "order_no", orderNo, "error", err)
		s.notifier.Error(gateway.Message(err, "确认收货失败"))
		return nil, err
	}
	if ack == nil {
		ack = &gateway.Ack{Message: "success"}
	}

	completeTime := s.now()
	s.state.Dispatch("order/completed", func(st *OrderState) {
		st.mutate(orderNo, func(o *models.Order) {
			o.Status = models.OrderStatusCompleted
			t := completeTime
			o.CompleteTime = &t
		})
	})
	s.persistCurrent(ctx)
	s.log.Infow("order_completed", "order_no", orderNo, "offline", ack.Offline)
	if ack.Offline {
		s.notifier.Success("确认收货成功（本地处理）")
	} else {
		s.notifier.Success("确认收货成功")
	}
	return ack, nil
}

// gate 校验状态流转；本地未持有时先拉取详情
func (s *OrderService) gate(ctx context.Context, orderNo string, next models.OrderStatus) error {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return ErrOrderNotFound
	}
	st := s.state.GetState()
	status, ok := st.find(orderNo)
	if !ok {
		order, err := s.GetDetail(ctx, orderNo)
		if err != nil {
			return err
		}
		status = order.Status
	}
	if !status.CanTransitionTo(next) {
		s.log.Infow("order_transition_rejected", "order_no", orderNo, "from", int(status), "to", int(next))
		return ErrOrderStatusInvalid
	}
	return nil
}

// ClearCurrent 清空当前订单
func (s *OrderService) ClearCurrent(ctx context.Context) {
	s.state.Dispatch("order/clear_current", func(st *OrderState) {
		st.Current = nil
	})
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, constants.StorageKeyOrderCurrent); err != nil {
		s.log.Warnw("order_storage_delete_failed", "error", err)
	}
}

// Restore 从本地存储恢复当前订单
func (s *OrderService) Restore(ctx context.Context) (*models.Order, error) {
	if s.store == nil {
		return nil, nil
	}
	var order models.Order
	ok, err := s.store.Get(ctx, constants.StorageKeyOrderCurrent, &order)
	if err != nil || !ok || order.OrderNo == "" {
		return nil, err
	}
	s.state.Dispatch("order/restore", func(st *OrderState) {
		c := order.Clone()
		st.Current = &c
	})
	return &order, nil
}

func (s *OrderService) requireLogin() error {
	if s.session == nil {
		return nil
	}
	if err := s.session.RequireLogin(); err != nil {
		s.notifier.Warning("请先登录")
		return err
	}
	return nil
}

func (s *OrderService) persistCurrent(ctx context.Context) {
	if s.store == nil {
		return
	}
	current, ok := s.Current()
	if !ok {
		return
	}
	if err := s.store.Set(ctx, constants.StorageKeyOrderCurrent, current); err != nil {
		s.log.Warnw("order_persist_failed", "order_no", current.OrderNo, "error", err)
	}
}
