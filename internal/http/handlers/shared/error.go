package shared

import (
	"github.com/dujiao-next/storefront/internal/http/response"
	"github.com/dujiao-next/storefront/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 带 request_id 与路由的日志
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	kv := []interface{}{"method", c.Request.Method, "route", c.FullPath()}
	if id, ok := c.Get("request_id"); ok {
		if s, ok := id.(string); ok && s != "" {
			kv = append(kv, "request_id", s)
		}
	}
	return logger.SW(kv...)
}

// RespondError 写入错误信封；err 非空时记录日志，5xx 记为 error，其余记为 warn
func RespondError(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		log := RequestLog(c)
		if code >= response.CodeInternal {
			log.Errorw("handler_error", "code", code, "message", msg, "error", err)
		} else {
			log.Warnw("handler_error", "code", code, "message", msg, "error", err)
		}
	}
	response.Error(c, code, msg)
}
