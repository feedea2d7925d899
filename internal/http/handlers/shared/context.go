package shared

import (
	"strconv"
	"strings"

	"github.com/dujiao-next/storefront/internal/http/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// RequiredParam 读取必填路径参数，缺失时写入 400 响应。
func RequiredParam(c *gin.Context, name, msg string) (string, bool) {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		RespondError(c, response.CodeBadRequest, msg, nil)
		return "", false
	}
	return value, true
}

// QueryPage 读取 page / page_size，非法值回落到默认，page_size 上限 100
func QueryPage(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.Query("page_size"))
	switch {
	case err != nil || pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	return page, pageSize
}
