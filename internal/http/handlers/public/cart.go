package public

import (
	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/http/response"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// CartResponse 购物车快照
type CartResponse struct {
	Items       []models.CartItem  `json:"items"`
	Summary     models.CartSummary `json:"summary"`
	AllSelected bool               `json:"allSelected"`
}

// CartDeltaRequest 数量增减请求
type CartDeltaRequest struct {
	Delta int `json:"delta"`
}

// CartBatchRequest 批量更新请求
type CartBatchRequest struct {
	Updates []gateway.CartUpdate `json:"updates" binding:"required"`
}

func (h *Handler) cartSnapshot() CartResponse {
	st := h.CartService.State().GetState()
	items := st.Items
	if items == nil {
		items = []models.CartItem{}
	}
	return CartResponse{
		Items:       items,
		Summary:     service.Summarize(st),
		AllSelected: h.CartService.IsAllSelected(),
	}
}

// GetCart 获取本地购物车快照
func (h *Handler) GetCart(c *gin.Context) {
	response.Success(c, h.cartSnapshot())
}

// FetchCart 从远端刷新购物车
func (h *Handler) FetchCart(c *gin.Context) {
	if _, err := h.CartService.Fetch(c.Request.Context()); err != nil {
		respondCartError(c, err, "获取购物车数据失败")
		return
	}
	response.Success(c, h.cartSnapshot())
}

// AddCartItem 加入购物车
func (h *Handler) AddCartItem(c *gin.Context) {
	var req service.AddItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if err := h.CartService.AddItem(c.Request.Context(), req); err != nil {
		respondCartError(c, err, "加入购物车失败")
		return
	}
	response.SuccessWithMsg(c, "已加入购物车", h.cartSnapshot())
}

// BatchUpdateCart 批量更新数量与勾选
func (h *Handler) BatchUpdateCart(c *gin.Context) {
	var req CartBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	if err := h.CartService.BatchUpdate(c.Request.Context(), req.Updates); err != nil {
		respondCartError(c, err, "更新购物车失败")
		return
	}
	response.Success(c, h.cartSnapshot())
}

// IncreaseCartItem 增加数量
func (h *Handler) IncreaseCartItem(c *gin.Context) {
	h.changeCount(c, true)
}

// DecreaseCartItem 减少数量
func (h *Handler) DecreaseCartItem(c *gin.Context) {
	h.changeCount(c, false)
}

func (h *Handler) changeCount(c *gin.Context, increase bool) {
	sku, ok := skuParam(c)
	if !ok {
		return
	}
	req := CartDeltaRequest{Delta: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "请求参数错误", err)
			return
		}
	}
	if req.Delta <= 0 {
		req.Delta = 1
	}
	var err error
	if increase {
		err = h.CartService.Increase(c.Request.Context(), sku, req.Delta)
	} else {
		err = h.CartService.Decrease(c.Request.Context(), sku, req.Delta)
	}
	if err != nil {
		respondCartError(c, err, "更新购物车失败")
		return
	}
	response.Success(c, h.cartSnapshot())
}

// RemoveCartItem 移除商品
func (h *Handler) RemoveCartItem(c *gin.Context) {
	sku, ok := skuParam(c)
	if !ok {
		return
	}
	if err := h.CartService.Remove(c.Request.Context(), sku); err != nil {
		respondCartError(c, err, "移除商品失败")
		return
	}
	response.Success(c, h.cartSnapshot())
}

// RemoveSelectedCartItems 移除已勾选商品
func (h *Handler) RemoveSelectedCartItems(c *gin.Context) {
	if err := h.CartService.RemoveSelected(c.Request.Context()); err != nil {
		respondCartError(c, err, "移除商品失败")
		return
	}
	response.Success(c, h.cartSnapshot())
}

// ToggleCartItem 切换勾选
func (h *Handler) ToggleCartItem(c *gin.Context) {
	sku, ok := skuParam(c)
	if !ok {
		return
	}
	if err := h.CartService.ToggleSelect(c.Request.Context(), sku); err != nil {
		respondCartError(c, err, "更新购物车失败")
		return
	}
	response.Success(c, h.cartSnapshot())
}

// ToggleAllCartItems 全选/取消全选
func (h *Handler) ToggleAllCartItems(c *gin.Context) {
	h.CartService.ToggleSelectAll(c.Request.Context())
	response.Success(c, h.cartSnapshot())
}

// MarkCartItemInvalid 标记失效
func (h *Handler) MarkCartItemInvalid(c *gin.Context) {
	sku, ok := skuParam(c)
	if !ok {
		return
	}
	if err := h.CartService.MarkInvalid(sku); err != nil {
		respondCartError(c, err, "更新购物车失败")
		return
	}
	response.Success(c, h.cartSnapshot())
}

// ClearInvalidCartItems 清空失效商品
func (h *Handler) ClearInvalidCartItems(c *gin.Context) {
	if err := h.CartService.ClearInvalid(c.Request.Context()); err != nil {
		respondCartError(c, err, "清空失效商品失败")
		return
	}
	response.Success(c, h.cartSnapshot())
}
