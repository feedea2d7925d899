package public

import (
	"github.com/dujiao-next/storefront/internal/http/response"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) addressList() []models.Address {
	list := h.AddressService.List()
	if list == nil {
		return []models.Address{}
	}
	return list
}

// GetAddresses 本地地址列表
func (h *Handler) GetAddresses(c *gin.Context) {
	response.Success(c, h.addressList())
}

// LoadAddresses 合并远端与本地地址
func (h *Handler) LoadAddresses(c *gin.Context) {
	list, err := h.AddressService.Load(c.Request.Context())
	if err != nil {
		respondAddressError(c, err, "获取地址列表失败")
		return
	}
	response.Success(c, list)
}

// CreateAddress 新增地址
func (h *Handler) CreateAddress(c *gin.Context) {
	var req service.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请填写完整的收货信息", err)
		return
	}
	address, err := h.AddressService.Add(c.Request.Context(), req)
	if err != nil {
		respondAddressError(c, err, "添加地址失败")
		return
	}
	response.Success(c, address)
}

// UpdateAddress 修改地址
func (h *Handler) UpdateAddress(c *gin.Context) {
	id, ok := addressIDParam(c)
	if !ok {
		return
	}
	var req service.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请填写完整的收货信息", err)
		return
	}
	address, err := h.AddressService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondAddressError(c, err, "更新地址失败")
		return
	}
	response.Success(c, address)
}

// DeleteAddress 删除地址
func (h *Handler) DeleteAddress(c *gin.Context) {
	id, ok := addressIDParam(c)
	if !ok {
		return
	}
	if err := h.AddressService.Remove(c.Request.Context(), id); err != nil {
		respondAddressError(c, err, "删除地址失败")
		return
	}
	response.Success(c, h.addressList())
}

// SetDefaultAddress 设为默认地址
func (h *Handler) SetDefaultAddress(c *gin.Context) {
	id, ok := addressIDParam(c)
	if !ok {
		return
	}
	if err := h.AddressService.SetDefault(c.Request.Context(), id); err != nil {
		respondAddressError(c, err, "设置默认地址失败")
		return
	}
	response.Success(c, h.addressList())
}
