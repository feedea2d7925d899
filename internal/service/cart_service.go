package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/localstore"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/notify"
	"github.com/dujiao-next/storefront/internal/state"

	"go.uber.org/zap"
)

// CartState 购物车状态：商品列表 + 勾选集合
// 聚合值不存储，每次读取时由 Summary 计算。
type CartState struct {
	Items    []models.CartItem `json:"items"`
	Selected map[string]bool   `json:"selected"`
}

func cloneCartState(s CartState) CartState {
	out := CartState{Items: models.CloneCartItems(s.Items), Selected: make(map[string]bool, len(s.Selected))}
	for k, v := range s.Selected {
		if v {
			out.Selected[k] = true
		}
	}
	return out
}

func (s *CartState) indexOf(skuID string) int {
	for i := range s.Items {
		if s.Items[i].SkuID == skuID {
			return i
		}
	}
	return -1
}

// AddItemInput 加入购物车输入
type AddItemInput struct {
	SkuID   string            `json:"skuId" binding:"required"`
	GoodsID string            `json:"goodsId"`
	Title   string            `json:"title"`
	Image   string            `json:"image"`
	Price   models.Money      `json:"price"`
	Count   int               `json:"count"`
	Stock   int               `json:"stock"` // 当前库存，0 表示无货
	Specs   map[string]string `json:"specs"`
}

// CartService 购物车服务（乐观更新 + 失败回滚）
type CartService struct {
	gw       gateway.CartGateway
	store    localstore.Store
	notifier notify.Notifier
	log      *zap.SugaredLogger
	state    *state.Store[CartState]
}

// NewCartService 创建购物车服务
func NewCartService(gw gateway.CartGateway, store localstore.Store, notifier notify.Notifier, log *zap.SugaredLogger) *CartService {
	if log == nil {
		log = logger.Named("cart")
	}
	return &CartService{
		gw:       gw,
		store:    store,
		notifier: notifier,
		log:      log,
		state:    state.New(CartState{Selected: map[string]bool{}}, cloneCartState),
	}
}

// State 状态容器，供外部订阅
func (s *CartService) State() *state.Store[CartState] {
	return s.state
}

// Items 商品列表快照，Selected 字段反映本地勾选集合
func (s *CartService) Items() []models.CartItem {
	st := s.state.GetState()
	for i := range st.Items {
		st.Items[i].Selected = st.Selected[st.Items[i].SkuID]
	}
	return st.Items
}

// Summary 聚合值
func (s *CartService) Summary() models.CartSummary {
	return Summarize(s.state.GetState())
}

// Summarize 纯函数：totalPrice = Σ price×count（selected && !isInvalid）
func Summarize(st CartState) models.CartSummary {
	summary := models.CartSummary{}
	for _, item := range st.Items {
		summary.TotalCount += item.Count
		if !st.Selected[item.SkuID] || item.IsInvalid {
			continue
		}
		summary.SelectedCount += item.Count
		summary.TotalPrice = summary.TotalPrice.Add(item.Subtotal())
	}
	return summary
}

// SelectedItems 已勾选且有效的商品
func (s *CartService) SelectedItems() []models.CartItem {
	st := s.state.GetState()
	out := make([]models.CartItem, 0, len(st.Items))
	for _, item := range st.Items {
		if st.Selected[item.SkuID] && !item.IsInvalid {
			item.Selected = true
			out = append(out, item)
		}
	}
	return out
}

// IsAllSelected 可勾选商品是否全部勾选，无可勾选商品时为 false
func (s *CartService) IsAllSelected() bool {
	return allSelected(s.state.GetState())
}

func allSelected(st CartState) bool {
	eligible := 0
	for _, item := range st.Items {
		if !item.Selectable() {
			continue
		}
		eligible++
		if !st.Selected[item.SkuID] {
			return false
		}
	}
	return eligible > 0
}

// Fetch 用远端结果替换本地列表；勾选以本地提示为准，无提示的商品沿用服务端标记
// 不可勾选的商品一律不勾选。远端失败时清空本地列表并返回空列表，不使用缓存数据。
func (s *CartService) Fetch(ctx context.Context) ([]models.CartItem, error) {
	items, err := s.gw.FetchCart(ctx)
	if err != nil {
		s.log.Warnw("cart_fetch_failed", "error", err)
		s.state.Dispatch("cart/fetch_failed", func(st *CartState) {
			st.Items = nil
			st.Selected = map[string]bool{}
		})
		s.notifier.Error(gateway.Message(err, "获取购物车数据失败"))
		return []models.CartItem{}, err
	}

	hints := s.loadSelectionHints(ctx)
	s.state.Dispatch("cart/fetched", func(st *CartState) {
		st.Items = models.CloneCartItems(items)
		st.Selected = make(map[string]bool, len(items))
		for _, item := range st.Items {
			selected := item.Selected
			if hint, ok := hints[item.SkuID]; ok {
				selected = hint
			}
			if selected && item.Selectable() {
				st.Selected[item.SkuID] = true
			}
		}
	})
	s.persistSelection(ctx)
	s.log.Debugw("cart_fetched", "items", len(items))
	return s.Items(), nil
}

// AddItem 加入购物车，按 skuId 合并
func (s *CartService) AddItem(ctx context.Context, in AddItemInput) error {
	skuID := strings.TrimSpace(in.SkuID)
	if skuID == "" {
		return ErrSkuRequired
	}
	if in.Count < 1 {
		return ErrInvalidCount
	}

	stockLimit := 0
	err := s.state.DispatchE("cart/add", func(st *CartState) error {
		if idx := st.indexOf(skuID); idx >= 0 {
			item := &st.Items[idx]
			if item.Count+in.Count > item.Stock {
				stockLimit = item.Stock
				return ErrInsufficientStock
			}
			item.Count += in.Count
			return nil
		}
		if in.Count > in.Stock {
			stockLimit = in.Stock
			return ErrInsufficientStock
		}
		item := models.CartItem{
			SkuID:    skuID,
			GoodsID:  in.GoodsID,
			Title:    in.Title,
			Image:    in.Image,
			Price:    in.Price,
			Count:    in.Count,
			Selected: true,
			Stock:    in.Stock,
			Specs:    in.Specs,
		}
		st.Items = append(st.Items, item)
		if item.Selectable() {
			st.Selected[skuID] = true
		}
		return nil
	})
	if err != nil {
		if stockLimit == 0 {
			s.notifier.Warning("商品库存不足")
		} else {
			s.notifier.Warning(fmt.Sprintf("商品数量不能超过库存(%d)", stockLimit))
		}
		return err
	}

	if err := s.gw.AddCartItem(ctx, gateway.AddCartItemRequest{SkuID: skuID, GoodsID: in.GoodsID, Count: in.Count, Specs: in.Specs}); err != nil {
		s.log.Warnw("cart_add_failed", "sku_id", skuID, "count", in.Count, "error", err)
		s.state.Dispatch("cart/add_rollback", func(st *CartState) {
			subtractCount(st, skuID, in.Count)
		})
		s.notifier.Error(gateway.Message(err, "加入购物车失败"))
		return err
	}
	s.persistSelection(ctx)
	s.notifier.Success("已加入购物车")
	return nil
}

// Increase 增加数量，超过库存时拒绝
func (s *CartService) Increase(ctx context.Context, skuID string, delta int) error {
	if delta < 1 {
		return ErrInvalidCount
	}
	var newCount, stock int
	err := s.state.DispatchE("cart/increase", func(st *CartState) error {
		idx := st.indexOf(skuID)
		if idx < 0 {
			return ErrCartItemNotFound
		}
		item := &st.Items[idx]
		if item.Count+delta > item.Stock {
			stock = item.Stock
			return ErrInsufficientStock
		}
		item.Count += delta
		newCount = item.Count
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			s.notifier.Warning(fmt.Sprintf("商品数量不能超过库存(%d)", stock))
		}
		return err
	}
	return s.syncCount(ctx, skuID, newCount, delta)
}

// Decrease 减少数量，低于 1 时拒绝（删除走 Remove）
func (s *CartService) Decrease(ctx context.Context, skuID string, delta int) error {
	if delta < 1 {
		return ErrInvalidCount
	}
	var newCount int
	err := s.state.DispatchE("cart/decrease", func(st *CartState) error {
		idx := st.indexOf(skuID)
		if idx < 0 {
			return ErrCartItemNotFound
		}
		item := &st.Items[idx]
		if item.Count-delta < 1 {
			return ErrBelowMinimumCount
		}
		item.Count -= delta
		newCount = item.Count
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrBelowMinimumCount) {
			s.notifier.Warning("商品数量不能小于1，如需删除请使用移除功能")
		}
		return err
	}
	return s.syncCount(ctx, skuID, newCount, -delta)
}

// syncCount 同步绝对数量，失败时只撤销本次施加的增量
func (s *CartService) syncCount(ctx context.Context, skuID string, count, applied int) error {
	err := s.gw.BatchUpdateCart(ctx, []gateway.CartUpdate{{SkuID: skuID, Count: count}})
	if err == nil {
		return nil
	}
	s.log.Warnw("cart_count_sync_failed", "sku_id", skuID, "count", count, "delta", applied, "error", err)
	s.state.Dispatch("cart/count_rollback", func(st *CartState) {
		if idx := st.indexOf(skuID); idx >= 0 {
			st.Items[idx].Count -= applied
		}
	})
	s.notifier.Error(gateway.Message(err, "更新购物车失败"))
	return err
}

// Remove 移除商品，失败时按原位置恢复并还原勾选
func (s *CartService) Remove(ctx context.Context, skuID string) error {
	if err := s.RemoveItems(ctx, []string{skuID}); err != nil {
		return err
	}
	return nil
}

type removedCartItem struct {
	index    int
	item     models.CartItem
	selected bool
}

// RemoveItems 批量移除
func (s *CartService) RemoveItems(ctx context.Context, skuIDs []string) error {
	wanted := make(map[string]bool, len(skuIDs))
	for _, id := range skuIDs {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}
	if len(wanted) == 0 {
		return ErrSkuRequired
	}

	var removed []removedCartItem
	err := s.state.DispatchE("cart/remove", func(st *CartState) error {
		kept := st.Items[:0:0]
		for i, item := range st.Items {
			if wanted[item.SkuID] {
				removed = append(removed, removedCartItem{index: i, item: item, selected: st.Selected[item.SkuID]})
				delete(st.Selected, item.SkuID)
				continue
			}
			kept = append(kept, item)
		}
		if len(removed) == 0 {
			return ErrCartItemNotFound
		}
		st.Items = kept
		return nil
	})
	if err != nil {
		return err
	}

	updates := make([]gateway.CartUpdate, 0, len(removed))
	for _, r := range removed {
		updates = append(updates, gateway.CartUpdate{SkuID: r.item.SkuID, Count: 0})
	}
	if err := s.gw.BatchUpdateCart(ctx, updates); err != nil {
		s.log.Warnw("cart_remove_failed", "sku_ids", skuIDs, "error", err)
		s.state.Dispatch("cart/remove_rollback", func(st *CartState) {
			reinsert(st, removed)
		})
		s.notifier.Error(gateway.Message(err, "移除商品失败"))
		return err
	}
	s.persistSelection(ctx)
	return nil
}

// RemoveSelected 移除已勾选商品（下单后清理）
func (s *CartService) RemoveSelected(ctx context.Context) error {
	selected := s.SelectedItems()
	if len(selected) == 0 {
		return nil
	}
	ids := make([]string, 0, len(selected))
	for _, item := range selected {
		ids = append(ids, item.SkuID)
	}
	return s.RemoveItems(ctx, ids)
}

type touchedCartItem struct {
	removed     *removedCartItem
	skuID       string
	countDelta  int
	hadSelected bool
	selectedSet bool
}

// BatchUpdate 批量设置绝对数量与勾选，count=0 删除；远端失败时撤销全部改动
func (s *CartService) BatchUpdate(ctx context.Context, updates []gateway.CartUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	for _, u := range updates {
		if strings.TrimSpace(u.SkuID) == "" {
			return ErrSkuRequired
		}
		if u.Count < 0 {
			return ErrInvalidCount
		}
	}

	var touched []touchedCartItem
	stock := 0
	err := s.state.DispatchE("cart/batch_update", func(st *CartState) error {
		for _, u := range updates {
			idx := st.indexOf(u.SkuID)
			if idx < 0 {
				return ErrCartItemNotFound
			}
			item := &st.Items[idx]
			if u.Count == 0 {
				r := removedCartItem{index: idx, item: *item, selected: st.Selected[u.SkuID]}
				st.Items = append(st.Items[:idx], st.Items[idx+1:]...)
				delete(st.Selected, u.SkuID)
				touched = append(touched, touchedCartItem{removed: &r, skuID: u.SkuID})
				continue
			}
			if u.Count > item.Stock {
				stock = item.Stock
				return ErrInsufficientStock
			}
			t := touchedCartItem{skuID: u.SkuID, countDelta: u.Count - item.Count, hadSelected: st.Selected[u.SkuID]}
			item.Count = u.Count
			if u.Selected != nil && (!*u.Selected || item.Selectable()) {
				t.selectedSet = true
				if *u.Selected {
					st.Selected[u.SkuID] = true
				} else {
					delete(st.Selected, u.SkuID)
				}
			}
			touched = append(touched, t)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			s.notifier.Warning(fmt.Sprintf("商品数量不能超过库存(%d)", stock))
		}
		return err
	}

	if err := s.gw.BatchUpdateCart(ctx, updates); err != nil {
		s.log.Warnw("cart_batch_update_failed", "updates", len(updates), "error", err)
		s.state.Dispatch("cart/batch_update_rollback", func(st *CartState) {
			for i := len(touched) - 1; i >= 0; i-- {
				t := touched[i]
				if t.removed != nil {
					reinsert(st, []removedCartItem{*t.removed})
					continue
				}
				if idx := st.indexOf(t.skuID); idx >= 0 {
					st.Items[idx].Count -= t.countDelta
				}
				if t.selectedSet {
					if t.hadSelected {
						st.Selected[t.skuID] = true
					} else {
						delete(st.Selected, t.skuID)
					}
				}
			}
		})
		s.notifier.Error(gateway.Message(err, "更新购物车失败"))
		return err
	}
	s.persistSelection(ctx)
	return nil
}

// ToggleSelect 切换勾选，失效或无库存商品不可勾选
func (s *CartService) ToggleSelect(ctx context.Context, skuID string) error {
	err := s.state.DispatchE("cart/toggle_select", func(st *CartState) error {
		idx := st.indexOf(skuID)
		if idx < 0 {
			return ErrCartItemNotFound
		}
		if st.Selected[skuID] {
			delete(st.Selected, skuID)
			return nil
		}
		if !st.Items[idx].Selectable() {
			return ErrCartItemUnselectable
		}
		st.Selected[skuID] = true
		return nil
	})
	if err != nil {
		return err
	}
	s.persistSelection(ctx)
	return nil
}

// ToggleSelectAll 可勾选商品全部翻转为与当前"全选"相反的状态
func (s *CartService) ToggleSelectAll(ctx context.Context) {
	s.state.Dispatch("cart/toggle_select_all", func(st *CartState) {
		target := !allSelected(*st)
		for _, item := range st.Items {
			if target && item.Selectable() {
				st.Selected[item.SkuID] = true
			} else {
				delete(st.Selected, item.SkuID)
			}
		}
	})
	s.persistSelection(ctx)
}

// MarkInvalid 标记为失效并取消勾选（本地）
func (s *CartService) MarkInvalid(skuID string) error {
	return s.state.DispatchE("cart/mark_invalid", func(st *CartState) error {
		idx := st.indexOf(skuID)
		if idx < 0 {
			return ErrCartItemNotFound
		}
		st.Items[idx].IsInvalid = true
		delete(st.Selected, skuID)
		return nil
	})
}

// ClearInvalid 清空失效商品，远端失败时重新拉取购物车
func (s *CartService) ClearInvalid(ctx context.Context) error {
	var removed []gateway.CartUpdate
	s.state.Dispatch("cart/clear_invalid", func(st *CartState) {
		kept := st.Items[:0:0]
		for _, item := range st.Items {
			if item.IsInvalid {
				removed = append(removed, gateway.CartUpdate{SkuID: item.SkuID, Count: 0})
				delete(st.Selected, item.SkuID)
				continue
			}
			kept = append(kept, item)
		}
		st.Items = kept
	})
	if len(removed) == 0 {
		return nil
	}
	if err := s.gw.BatchUpdateCart(ctx, removed); err != nil {
		s.log.Warnw("cart_clear_invalid_failed", "count", len(removed), "error", err)
		s.notifier.Error(gateway.Message(err, "清空失效商品失败"))
		_, _ = s.Fetch(ctx)
		return err
	}
	return nil
}

// persistSelection 为当前每个商品记录勾选提示（skuId -> 是否勾选），失败只记录日志
func (s *CartService) persistSelection(ctx context.Context) {
	if s.store == nil {
		return
	}
	st := s.state.GetState()
	hints := make(map[string]bool, len(st.Items))
	for _, item := range st.Items {
		hints[item.SkuID] = st.Selected[item.SkuID]
	}
	if err := s.store.Set(ctx, constants.StorageKeyCartSelection, hints); err != nil {
		s.log.Warnw("cart_selection_persist_failed", "error", err)
	}
}

// loadSelectionHints 读取勾选提示，不存在或读取失败时返回 nil
func (s *CartService) loadSelectionHints(ctx context.Context) map[string]bool {
	if s.store == nil {
		return nil
	}
	var hints map[string]bool
	ok, err := s.store.Get(ctx, constants.StorageKeyCartSelection, &hints)
	if err != nil {
		s.log.Warnw("cart_selection_load_failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return hints
}

// subtractCount 撤销加购的数量，减到 0 时移除
func subtractCount(st *CartState, skuID string, n int) {
	idx := st.indexOf(skuID)
	if idx < 0 {
		return
	}
	st.Items[idx].Count -= n
	if st.Items[idx].Count <= 0 {
		st.Items = append(st.Items[:idx], st.Items[idx+1:]...)
		delete(st.Selected, skuID)
	}
}

// reinsert 按原下标（升序）放回被移除的商品
func reinsert(st *CartState, removed []removedCartItem) {
	for _, r := range removed {
		if st.indexOf(r.item.SkuID) >= 0 {
			continue
		}
		idx := r.index
		if idx > len(st.Items) {
			idx = len(st.Items)
		}
		st.Items = append(st.Items, models.CartItem{})
		copy(st.Items[idx+1:], st.Items[idx:])
		st.Items[idx] = r.item
		if r.selected {
			st.Selected[r.item.SkuID] = true
		}
	}
}
