package models

// OrderItem 订单项
type OrderItem struct {
	SkuID   string            `json:"skuId"`
	GoodsID string            `json:"goodsId"`
	Title   string            `json:"title"`
	Image   string            `json:"image,omitempty"`
	Price   Money             `json:"price"`
	Count   int               `json:"count"`
	Specs   map[string]string `json:"specs,omitempty"`
}

// Clone 深拷贝
func (i OrderItem) Clone() OrderItem {
	out := i
	if i.Specs != nil {
		out.Specs = make(map[string]string, len(i.Specs))
		for k, v := range i.Specs {
			out.Specs[k] = v
		}
	}
	return out
}

// OrderItemFromCart 由购物车项生成订单项
func OrderItemFromCart(item CartItem) OrderItem {
	c := item.Clone()
	return OrderItem{
		SkuID:   c.SkuID,
		GoodsID: c.GoodsID,
		Title:   c.Title,
		Image:   c.Image,
		Price:   c.Price,
		Count:   c.Count,
		Specs:   c.Specs,
	}
}
