package sandbox

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// writeEnvelope 远端统一响应 {code,data,message}，HTTP 状态恒为 200
func writeEnvelope(c *gin.Context, code int, data interface{}, message string) {
	c.JSON(http.StatusOK, gin.H{
		"code":    code,
		"data":    data,
		"message": message,
	})
}

func ok(c *gin.Context, data interface{}) {
	writeEnvelope(c, http.StatusOK, data, "success")
}

func fail(c *gin.Context, err error) {
	code, msg := codeOf(err)
	writeEnvelope(c, code, nil, msg)
}

// Handler 沙箱 HTTP 入口
type Handler struct {
	shop   *Shop
	issuer *TokenIssuer
}

// NewHandler 创建入口
func NewHandler(shop *Shop, issuer *TokenIssuer) *Handler {
	return &Handler{shop: shop, issuer: issuer}
}

// Register 注册路由
// 购物车与支付状态查询无需登录，订单、地址与创建支付需要 Bearer token。
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/auth/token", h.IssueToken)

	cart := r.Group("/cart")
	{
		cart.GET("/list", h.ListCart)
		cart.POST("/add", h.AddCart)
		cart.PATCH("/batch", h.BatchCart)
	}

	r.GET("/payment/methods", h.PaymentMethods)
	r.GET("/payment/status/:paymentNo", h.PaymentStatus)

	authed := r.Group("", RequireToken(h.issuer))
	{
		authed.POST("/order/create", h.CreateOrder)
		authed.GET("/order/detail/:orderNo", h.GetOrder)
		authed.GET("/order/list", h.ListOrders)
		authed.POST("/order/cancel/:orderNo", h.CancelOrder)
		authed.POST("/order/confirm/:orderNo", h.ConfirmOrder)
		authed.POST("/payment/create", h.CreatePayment)

		authed.GET("/user/address", h.ListAddresses)
		authed.POST("/user/address", h.AddAddress)
		authed.PUT("/user/address/:id", h.UpdateAddress)
		authed.DELETE("/user/address/:id", h.DeleteAddress)
		authed.PUT("/user/address/:id/default", h.SetDefaultAddress)
	}

	r.POST("/sandbox/orders/:orderNo/ship", h.ShipOrder)
}

// IssueToken POST /auth/token
func (h *Handler) IssueToken(c *gin.Context) {
	var req struct {
		Shopper string `json:"shopper"`
	}
	_ = c.ShouldBindJSON(&req)
	shopper := strings.TrimSpace(req.Shopper)
	if shopper == "" {
		shopper = "guest-" + uuid.NewString()[:8]
	}
	token, expiresAt, err := h.issuer.Issue(shopper)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"token": token, "expiresAt": expiresAt, "shopper": shopper})
}

func (h *Handler) ListCart(c *gin.Context) {
	items, err := h.shop.ListCart()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (h *Handler) AddCart(c *gin.Context) {
	var req gateway.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, badRequest("请求参数错误"))
		return
	}
	if err := h.shop.AddToCart(req); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) BatchCart(c *gin.Context) {
	var updates []gateway.CartUpdate
	if err := c.ShouldBindJSON(&updates); err != nil {
		fail(c, badRequest("请求参数错误"))
		return
	}
	if err := h.shop.BatchUpdateCart(updates); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req gateway.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, badRequest("请求参数错误"))
		return
	}
	order, err := h.shop.CreateOrder(req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, order)
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.shop.GetOrder(c.Param("orderNo"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	status, _ := strconv.Atoi(c.Query("status"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))
	result, err := h.shop.ListOrders(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   status,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	if err := h.shop.CancelOrder(c.Param("orderNo")); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) ConfirmOrder(c *gin.Context) {
	if err := h.shop.ConfirmOrder(c.Param("orderNo")); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// ShipOrder 演示发货
func (h *Handler) ShipOrder(c *gin.Context) {
	if err := h.shop.ShipOrder(c.Param("orderNo")); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) PaymentMethods(c *gin.Context) {
	ok(c, h.shop.PaymentMethods())
}

func (h *Handler) CreatePayment(c *gin.Context) {
	var req gateway.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, badRequest("请求参数错误"))
		return
	}
	result, err := h.shop.CreatePayment(req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) PaymentStatus(c *gin.Context) {
	result, err := h.shop.PaymentStatus(c.Param("paymentNo"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func (h *Handler) ListAddresses(c *gin.Context) {
	list, err := h.shop.ListAddresses()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, list)
}

func (h *Handler) AddAddress(c *gin.Context) {
	var req gateway.AddressPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, badRequest("请求参数错误"))
		return
	}
	addr, err := h.shop.AddAddress(req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, addr)
}

func (h *Handler) UpdateAddress(c *gin.Context) {
	var req gateway.AddressPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, badRequest("请求参数错误"))
		return
	}
	addr, err := h.shop.UpdateAddress(c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, addr)
}

func (h *Handler) DeleteAddress(c *gin.Context) {
	if err := h.shop.DeleteAddress(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) SetDefaultAddress(c *gin.Context) {
	if err := h.shop.SetDefaultAddress(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// NewEngine 组装沙箱 gin 引擎
func NewEngine(shop *Shop, issuer *TokenIssuer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) {
		ok(c, gin.H{"status": "ok"})
	})
	NewHandler(shop, issuer).Register(r)
	return r
}
