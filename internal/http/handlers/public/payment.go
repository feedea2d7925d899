package public

import (
	"github.com/dujiao-next/storefront/internal/http/response"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// InitPaymentRequest 发起支付请求
type InitPaymentRequest struct {
	OrderNo string       `json:"orderNo" binding:"required"`
	Method  string       `json:"method" binding:"required"`
	Amount  models.Money `json:"amount"`
}

// PaymentStateResponse 支付会话与轮询状态
type PaymentStateResponse struct {
	Session     *models.PaymentSession `json:"session"`
	Poller      string                 `json:"poller"`
	Attempts    int                    `json:"attempts"`
	LastSuccess *models.PaymentSession `json:"lastSuccess,omitempty"`
}

func paymentStateResponse(st service.PaymentState) PaymentStateResponse {
	return PaymentStateResponse{
		Session:     st.Session,
		Poller:      st.Poller,
		Attempts:    st.Attempts,
		LastSuccess: st.LastSuccess,
	}
}

// GetPaymentMethods 可用支付方式
func (h *Handler) GetPaymentMethods(c *gin.Context) {
	methods, err := h.PaymentService.FetchMethods(c.Request.Context())
	if err != nil {
		respondPaymentError(c, err, "获取支付方式失败")
		return
	}
	response.Success(c, methods)
}

// InitPayment 创建支付并开始轮询
func (h *Handler) InitPayment(c *gin.Context) {
	var req InitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	session, err := h.PaymentService.InitPayment(c.Request.Context(), req.OrderNo, req.Method, req.Amount)
	if err != nil {
		respondPaymentError(c, err, "创建支付失败")
		return
	}
	response.Success(c, session)
}

// GetCurrentPayment 当前支付会话
func (h *Handler) GetCurrentPayment(c *gin.Context) {
	response.Success(c, paymentStateResponse(h.PaymentService.Snapshot()))
}

// CheckPayment 手动查询一次支付状态
func (h *Handler) CheckPayment(c *gin.Context) {
	if _, err := h.PaymentService.ManualCheck(c.Request.Context()); err != nil {
		respondPaymentError(c, err, "查询支付状态失败")
		return
	}
	response.Success(c, paymentStateResponse(h.PaymentService.Snapshot()))
}

// StopPaymentPolling 停止轮询
func (h *Handler) StopPaymentPolling(c *gin.Context) {
	h.PaymentService.ClearPolling()
	response.Success(c, paymentStateResponse(h.PaymentService.Snapshot()))
}

// ResetPayment 清除支付会话
func (h *Handler) ResetPayment(c *gin.Context) {
	h.PaymentService.Reset(c.Request.Context())
	response.Success(c, paymentStateResponse(h.PaymentService.Snapshot()))
}
