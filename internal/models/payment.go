package models

import (
	"time"

	"github.com/dujiao-next/storefront/internal/constants"
)

// PaymentSession 支付会话快照
type PaymentSession struct {
	PaymentNo   string     `json:"paymentNo"`
	OrderNo     string     `json:"orderNo"`
	Method      string     `json:"method"`
	Amount      Money      `json:"amount"`
	QRCodeURL   string     `json:"qrCodeUrl,omitempty"`   // 微信扫码
	RedirectURL string     `json:"redirectUrl,omitempty"` // 支付宝跳转
	Status      string     `json:"status"`
	ExpiresIn   int        `json:"expiresIn"` // 秒
	CreateTime  time.Time  `json:"createTime"`
	PayTime     *time.Time `json:"payTime,omitempty"`
}

// Terminal 是否已进入终态
func (p PaymentSession) Terminal() bool {
	return IsTerminalPaymentStatus(p.Status)
}

// Expired 判断会话是否超过有效期
func (p PaymentSession) Expired(now time.Time) bool {
	if p.ExpiresIn <= 0 || p.CreateTime.IsZero() {
		return false
	}
	return now.After(p.CreateTime.Add(time.Duration(p.ExpiresIn) * time.Second))
}

// Clone 拷贝
func (p PaymentSession) Clone() PaymentSession {
	out := p
	if p.PayTime != nil {
		t := *p.PayTime
		out.PayTime = &t
	}
	return out
}

// IsTerminalPaymentStatus PAID / REFUNDED / CLOSED 为终态
func IsTerminalPaymentStatus(status string) bool {
	switch status {
	case constants.PaymentStatusPaid, constants.PaymentStatusRefunded, constants.PaymentStatusClosed:
		return true
	default:
		return false
	}
}

// PaymentMethod 可用支付方式
type PaymentMethod struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Icon    string `json:"icon,omitempty"`
	Enabled bool   `json:"enabled"`
}
