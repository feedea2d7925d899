package public

import (
	"errors"

	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/http/response"
	"github.com/dujiao-next/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range concatMappedHandlerErrors(rules, gatewayErrorRules) {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	// 远端业务拒绝：透传远端消息
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		respondError(c, response.CodeBadRequest, gateway.Message(err, fallbackMsg), nil)
		return
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var gatewayErrorRules = []mappedHandlerError{
	{target: gateway.ErrNotLoggedIn, code: response.CodeUnauthorized, msg: "请先登录"},
	{target: gateway.ErrTransport, code: response.CodeBadGateway, msg: "网络异常，请稍后重试"},
	{target: gateway.ErrResponseInvalid, code: response.CodeBadGateway, msg: "服务响应异常"},
}

var cartErrorRules = []mappedHandlerError{
	{target: service.ErrSkuRequired, code: response.CodeBadRequest, msg: "商品 SKU 不能为空"},
	{target: service.ErrInvalidCount, code: response.CodeBadRequest, msg: "商品数量无效"},
	{target: service.ErrCartItemNotFound, code: response.CodeNotFound, msg: "购物车中没有该商品"},
	{target: service.ErrCartItemUnselectable, code: response.CodeBadRequest, msg: "商品已失效或无库存"},
	{target: service.ErrInsufficientStock, code: response.CodeBadRequest, msg: "商品数量不能超过库存"},
	{target: service.ErrBelowMinimumCount, code: response.CodeBadRequest, msg: "商品数量不能小于1，如需删除请使用移除功能"},
}

var paymentErrorRules = []mappedHandlerError{
	{target: service.ErrPaymentInvalid, code: response.CodeBadRequest, msg: "支付参数无效"},
	{target: service.ErrPaymentMethodUnsupported, code: response.CodeBadRequest, msg: "不支持的支付方式"},
	{target: service.ErrNoActivePayment, code: response.CodeNotFound, msg: "当前没有进行中的支付"},
}

var addressErrorRules = []mappedHandlerError{
	{target: service.ErrAddressInvalid, code: response.CodeBadRequest, msg: "请填写完整的收货信息"},
	{target: service.ErrAddressDuplicate, code: response.CodeConflict, msg: "该地址已存在"},
	{target: service.ErrAddressNotFound, code: response.CodeNotFound, msg: "地址不存在"},
}

var orderErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "订单不存在"},
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest, msg: "当前订单状态不支持该操作"},
	{target: service.ErrOrderItemsRequired, code: response.CodeBadRequest, msg: "请选择要购买的商品"},
	{target: service.ErrOrderAddressRequired, code: response.CodeBadRequest, msg: "请选择收货地址"},
}

func respondCartError(c *gin.Context, err error, fallbackMsg string) {
	respondWithMappedError(c, err, cartErrorRules, response.CodeInternal, fallbackMsg)
}

func respondPaymentError(c *gin.Context, err error, fallbackMsg string) {
	respondWithMappedError(c, err, paymentErrorRules, response.CodeInternal, fallbackMsg)
}

func respondAddressError(c *gin.Context, err error, fallbackMsg string) {
	respondWithMappedError(c, err, addressErrorRules, response.CodeInternal, fallbackMsg)
}

func respondOrderError(c *gin.Context, err error, fallbackMsg string) {
	respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, fallbackMsg)
}
