package router

import (
	"strings"
	"time"

	"github.com/dujiao-next/storefront/internal/cache"
	"github.com/dujiao-next/storefront/internal/config"
	publichandlers "github.com/dujiao-next/storefront/internal/http/handlers/public"
	"github.com/dujiao-next/storefront/internal/http/response"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	h := publichandlers.New(c)
	// 手动查询支付状态会直接打到远端，按会话限流
	paymentCheckRule := RateLimitRule{
		Prefix:        cache.BuildKey("rate", "payment_check"),
		WindowSeconds: 10,
		MaxRequests:   5,
		Message:       "查询过于频繁，请 %d 秒后再试",
	}
	paymentInitRule := RateLimitRule{
		Prefix:        cache.BuildKey("rate", "payment_init"),
		WindowSeconds: 60,
		MaxRequests:   10,
		Message:       "发起支付过于频繁，请 %d 秒后再试",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log, 2*time.Second))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/health", func(ctx *gin.Context) {
		redisStatus := "disabled"
		if cache.Enabled() {
			redisStatus = "ok"
			if err := cache.Ping(ctx.Request.Context()); err != nil {
				redisStatus = "unavailable"
			}
		}
		response.Success(ctx, gin.H{"status": "ok", "redis": redisStatus})
	})

	apiV1 := r.Group("/api/v1")
	{
		session := apiV1.Group("/session")
		{
			session.GET("", h.GetSession)
			session.PUT("", h.SetSession)
			session.DELETE("", h.ClearSession)
		}

		cart := apiV1.Group("/cart")
		{
			cart.GET("", h.GetCart)
			cart.POST("/fetch", h.FetchCart)
			cart.POST("/items", h.AddCartItem)
			cart.PATCH("/batch", h.BatchUpdateCart)
			cart.POST("/items/:sku/increase", h.IncreaseCartItem)
			cart.POST("/items/:sku/decrease", h.DecreaseCartItem)
			cart.POST("/items/:sku/toggle", h.ToggleCartItem)
			cart.POST("/items/:sku/invalid", h.MarkCartItemInvalid)
			cart.DELETE("/items/:sku", h.RemoveCartItem)
			cart.DELETE("/selected", h.RemoveSelectedCartItems)
			cart.POST("/toggle-all", h.ToggleAllCartItems)
			cart.DELETE("/invalid", h.ClearInvalidCartItems)
		}

		payments := apiV1.Group("/payments")
		{
			payments.GET("/methods", h.GetPaymentMethods)
			payments.POST("", RateLimitMiddleware(cache.Client(), paymentInitRule, KeyByIPAndJSONField("orderNo")), h.InitPayment)
			payments.GET("/current", h.GetCurrentPayment)
			payments.POST("/check", RateLimitMiddleware(cache.Client(), paymentCheckRule, KeyByIP), h.CheckPayment)
			payments.DELETE("/polling", h.StopPaymentPolling)
			payments.DELETE("/current", h.ResetPayment)
		}

		addresses := apiV1.Group("/addresses")
		{
			addresses.GET("", h.GetAddresses)
			addresses.POST("/load", h.LoadAddresses)
			addresses.POST("", h.CreateAddress)
			addresses.PUT("/:id", h.UpdateAddress)
			addresses.DELETE("/:id", h.DeleteAddress)
			addresses.PUT("/:id/default", h.SetDefaultAddress)
		}

		orders := apiV1.Group("/orders")
		{
			orders.POST("", h.CreateOrder)
			orders.GET("", h.ListOrders)
			orders.GET("/current", h.GetCurrentOrder)
			orders.DELETE("/current", h.ClearCurrentOrder)
			orders.GET("/:orderNo", h.GetOrder)
			orders.POST("/:orderNo/cancel", h.CancelOrder)
			orders.POST("/:orderNo/confirm", h.ConfirmOrder)
		}

		apiV1.GET("/notices", h.GetNotices)
	}

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			response.NotFound(ctx, "接口不存在")
			return
		}
		ctx.Status(404)
	})

	return r
}
