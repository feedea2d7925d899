package queue

import (
	"encoding/json"
	"strings"

	"github.com/dujiao-next/storefront/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentSucceeded 支付成功后的刷新任务
	TaskPaymentSucceeded = constants.TaskPaymentSucceeded
)

// PaymentSucceededPayload 支付成功任务载荷
type PaymentSucceededPayload struct {
	PaymentNo string `json:"payment_no"`
	OrderNo   string `json:"order_no"`
}

// Valid 载荷是否可处理
func (p PaymentSucceededPayload) Valid() bool {
	return strings.TrimSpace(p.OrderNo) != ""
}

// NewPaymentSucceededTask 创建支付成功任务
func NewPaymentSucceededTask(payload PaymentSucceededPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentSucceeded, body), nil
}

// ParsePaymentSucceededPayload 解析任务载荷
func ParsePaymentSucceededPayload(task *asynq.Task) (PaymentSucceededPayload, error) {
	var payload PaymentSucceededPayload
	if task == nil {
		return payload, nil
	}
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}
