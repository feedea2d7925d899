package worker

import (
	"context"
	"strings"

	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/provider"
	"github.com/dujiao-next/storefront/internal/queue"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentSucceeded, c.handlePaymentSucceeded)
}

func (c *Consumer) handlePaymentSucceeded(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_succeeded_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParsePaymentSucceededPayload(task)
	if err != nil {
		logger.Warnw("worker_payment_succeeded_unmarshal_failed", "error", err)
		return err
	}
	return c.RefreshAfterPayment(ctx, payload)
}

// RefreshAfterPayment 支付成功后并发刷新订单详情与购物车
// 队列未启用时由进程内订阅直接调用。
func (c *Consumer) RefreshAfterPayment(ctx context.Context, payload queue.PaymentSucceededPayload) error {
	if !payload.Valid() {
		logger.Debugw("worker_payment_succeeded_skip_invalid_payload", "payment_no", payload.PaymentNo, "order_no", payload.OrderNo)
		return nil
	}
	orderNo := strings.TrimSpace(payload.OrderNo)

	// 不使用 WithContext：一侧失败不应取消另一侧刷新
	var g errgroup.Group
	g.Go(func() error {
		if c.OrderService == nil {
			return nil
		}
		if _, err := c.OrderService.GetDetail(ctx, orderNo); err != nil {
			logger.Warnw("worker_refresh_order_failed", "order_no", orderNo, "payment_no", payload.PaymentNo, "error", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		if c.CartService == nil {
			return nil
		}
		if _, err := c.CartService.Fetch(ctx); err != nil {
			logger.Warnw("worker_refresh_cart_failed", "order_no", orderNo, "error", err)
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Infow("worker_payment_refresh_done", "order_no", orderNo, "payment_no", payload.PaymentNo)
	return nil
}
