package models

// CartItem 购物车项（与远端 /cart/list 字段一致）
type CartItem struct {
	SkuID     string            `json:"skuId"`           // SKU，购物车内唯一
	GoodsID   string            `json:"goodsId"`         // 商品ID
	Title     string            `json:"title"`           // 标题
	Image     string            `json:"image,omitempty"` // 主图
	Price     Money             `json:"price"`           // 单价
	Count     int               `json:"count"`           // 数量，>= 1
	Selected  bool              `json:"selected"`        // 服务端勾选标记
	Stock     int               `json:"stock"`           // 库存，>= 0
	Specs     map[string]string `json:"specs,omitempty"` // 规格 名称 -> 值
	IsInvalid bool              `json:"isInvalid"`       // 已失效（下架等）
}

// Selectable 可勾选：未失效且有库存
func (c CartItem) Selectable() bool {
	return !c.IsInvalid && c.Stock > 0
}

// Subtotal 小计
func (c CartItem) Subtotal() Money {
	return c.Price.MulInt(c.Count)
}

// Clone 深拷贝
func (c CartItem) Clone() CartItem {
	out := c
	if c.Specs != nil {
		out.Specs = make(map[string]string, len(c.Specs))
		for k, v := range c.Specs {
			out.Specs[k] = v
		}
	}
	return out
}

// CloneCartItems 深拷贝列表
func CloneCartItems(items []CartItem) []CartItem {
	if items == nil {
		return nil
	}
	out := make([]CartItem, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

// CartSummary 购物车聚合值，每次读取时计算
type CartSummary struct {
	TotalCount    int   `json:"totalCount"`
	SelectedCount int   `json:"selectedCount"`
	TotalPrice    Money `json:"totalPrice"`
}
