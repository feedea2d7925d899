package public

import (
	"github.com/dujiao-next/storefront/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetNotices 最近的用户提示
func (h *Handler) GetNotices(c *gin.Context) {
	response.Success(c, h.Notices.Recent())
}
