package public

import (
	"strings"

	"github.com/dujiao-next/storefront/internal/http/response"

	"github.com/gin-gonic/gin"
)

// SessionRequest 登录凭证
type SessionRequest struct {
	Token string `json:"token" binding:"required"`
}

// GetSession 登录状态
func (h *Handler) GetSession(c *gin.Context) {
	response.Success(c, gin.H{"loggedIn": h.Session.LoggedIn()})
}

// SetSession 设置登录 token，随后重新合并地址
func (h *Handler) SetSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	h.Session.SetToken(strings.TrimSpace(req.Token))
	if !h.Session.LoggedIn() {
		respondError(c, response.CodeUnauthorized, "登录凭证无效或已过期", nil)
		return
	}
	if _, err := h.AddressService.Load(c.Request.Context()); err != nil {
		handlerLog(c).Warnw("session_reload_addresses_failed", "error", err)
	}
	response.Success(c, gin.H{"loggedIn": true})
}

// ClearSession 退出登录
func (h *Handler) ClearSession(c *gin.Context) {
	h.Session.Clear()
	response.Success(c, gin.H{"loggedIn": false})
}
