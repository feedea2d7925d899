package models

import (
	"strings"

	"github.com/dujiao-next/storefront/internal/constants"
)

// Address 收货地址
type Address struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Mobile       string `json:"mobile"`
	Province     string `json:"province"`
	City         string `json:"city"`
	District     string `json:"district"`
	Address      string `json:"address"`
	IsDefault    bool   `json:"isDefault"`
	IsLocalAdded bool   `json:"isLocalAdded,omitempty"` // 本地新增，尚未被远端确认
}

// ContentKey 内容键，地址去重以此为准而非 id
func (a Address) ContentKey() string {
	return strings.Join([]string{a.Name, a.Mobile, a.Province, a.City, a.District, a.Address}, ":")
}

// HasLocalID 是否为本地生成的 id
func (a Address) HasLocalID() bool {
	return strings.HasPrefix(a.ID, constants.LocalAddressIDPrefix)
}

// CloneAddresses 拷贝地址列表
func CloneAddresses(list []Address) []Address {
	if list == nil {
		return nil
	}
	out := make([]Address, len(list))
	copy(out, list)
	return out
}
