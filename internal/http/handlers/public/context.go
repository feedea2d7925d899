package public

import (
	handlershared "github.com/dujiao-next/storefront/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func skuParam(c *gin.Context) (string, bool) {
	return handlershared.RequiredParam(c, "sku", "商品 SKU 不能为空")
}

func orderNoParam(c *gin.Context) (string, bool) {
	return handlershared.RequiredParam(c, "orderNo", "订单号不能为空")
}

func addressIDParam(c *gin.Context) (string, bool) {
	return handlershared.RequiredParam(c, "id", "地址 ID 不能为空")
}

func handlerLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}
