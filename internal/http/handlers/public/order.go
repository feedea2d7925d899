package public

import (
	"strconv"

	"github.com/dujiao-next/storefront/internal/gateway"
	handlershared "github.com/dujiao-next/storefront/internal/http/handlers/shared"
	"github.com/dujiao-next/storefront/internal/http/response"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// OrderResponse 订单与状态文案
type OrderResponse struct {
	models.Order
	StatusText string `json:"statusText"`
}

func toOrderResponse(order models.Order) OrderResponse {
	return OrderResponse{Order: order, StatusText: service.StatusText(int(order.Status))}
}

// CreateOrder 提交订单
func (h *Handler) CreateOrder(c *gin.Context) {
	var req service.SubmitOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	order, err := h.OrderService.Submit(c.Request.Context(), req)
	if err != nil {
		respondOrderError(c, err, "提交订单失败")
		return
	}
	response.Success(c, toOrderResponse(*order))
}

// ListOrders 订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	page, pageSize := handlershared.QueryPage(c)
	status, _ := strconv.Atoi(c.DefaultQuery("status", "0"))

	result, err := h.OrderService.List(c.Request.Context(), gateway.OrderListParams{
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondOrderError(c, err, "获取订单列表失败")
		return
	}
	items := make([]OrderResponse, 0, len(result.Records))
	for _, order := range result.Records {
		items = append(items, toOrderResponse(order))
	}
	response.SuccessWithPage(c, items, response.NewPagination(page, pageSize, result.Total))
}

// GetCurrentOrder 当前订单
func (h *Handler) GetCurrentOrder(c *gin.Context) {
	order, ok := h.OrderService.Current()
	if !ok {
		respondError(c, response.CodeNotFound, "当前没有订单", nil)
		return
	}
	response.Success(c, toOrderResponse(*order))
}

// ClearCurrentOrder 清空当前订单
func (h *Handler) ClearCurrentOrder(c *gin.Context) {
	h.OrderService.ClearCurrent(c.Request.Context())
	response.Success(c, nil)
}

// GetOrder 订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo, ok := orderNoParam(c)
	if !ok {
		return
	}
	order, err := h.OrderService.GetDetail(c.Request.Context(), orderNo)
	if err != nil {
		respondOrderError(c, err, "获取订单详情失败")
		return
	}
	response.Success(c, toOrderResponse(*order))
}

// CancelOrder 取消订单
func (h *Handler) CancelOrder(c *gin.Context) {
	orderNo, ok := orderNoParam(c)
	if !ok {
		return
	}
	if err := h.OrderService.Cancel(c.Request.Context(), orderNo); err != nil {
		respondOrderError(c, err, "取消订单失败")
		return
	}
	response.SuccessWithMsg(c, "订单已取消", gin.H{"orderNo": orderNo})
}

// ConfirmOrder 确认收货
func (h *Handler) ConfirmOrder(c *gin.Context) {
	orderNo, ok := orderNoParam(c)
	if !ok {
		return
	}
	ack, err := h.OrderService.ConfirmReceipt(c.Request.Context(), orderNo)
	if err != nil {
		respondOrderError(c, err, "确认收货失败")
		return
	}
	response.Success(c, gin.H{"orderNo": orderNo, "offline": ack.Offline, "message": ack.Message})
}
