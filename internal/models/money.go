package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyScale = 2

// Money 金额，统一按 2 位小数存储与序列化
type Money struct {
	decimal.Decimal
}

// NewMoneyFromDecimal 四舍五入到分
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{Decimal: amount.Round(moneyScale)}
}

// ParseMoney 解析 "12.5"、"12.50" 或数字字面量
func ParseMoney(text string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", text, err)
	}
	return NewMoneyFromDecimal(d), nil
}

// NewMoney 非法输入返回零值，用于字面量
func NewMoney(text string) Money {
	m, err := ParseMoney(text)
	if err != nil {
		return Money{}
	}
	return m
}

// MarshalJSON 远端与会话 API 都以字符串表示金额
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON 兼容字符串与数字两种写法，null 与空串视为零
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	text := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			*m = Money{}
			return nil
		}
	}
	parsed, err := ParseMoney(text)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Round(moneyScale).Value()
}

func (m *Money) Scan(value interface{}) error {
	if err := m.Decimal.Scan(value); err != nil {
		return err
	}
	m.Decimal = m.Decimal.Round(moneyScale)
	return nil
}

func (m Money) String() string {
	return m.Decimal.StringFixed(moneyScale)
}

// MulInt 单价乘数量
func (m Money) MulInt(n int) Money {
	return NewMoneyFromDecimal(m.Decimal.Mul(decimal.NewFromInt(int64(n))))
}

func (m Money) Add(other Money) Money {
	return NewMoneyFromDecimal(m.Decimal.Add(other.Decimal))
}

// Equal 按分比较
func (m Money) Equal(other Money) bool {
	return m.Decimal.Round(moneyScale).Equal(other.Decimal.Round(moneyScale))
}
