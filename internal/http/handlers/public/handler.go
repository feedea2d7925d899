package public

import "github.com/dujiao-next/storefront/internal/provider"

// Handler 购物会话接口处理器入口
// 说明：每个处理器绑定一个购物者会话容器。
type Handler struct {
	*provider.Container
}

// New 创建会话处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
