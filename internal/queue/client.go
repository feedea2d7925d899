package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/logger"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault

	defaultConcurrency = 10
	defaultMaxRetry    = 3
	defaultTaskTimeout = 30 * time.Second
)

// ErrQueueDisabled 队列未启用，调用方应改为进程内执行
var ErrQueueDisabled = errors.New("queue disabled")

// Client 支付成功任务的投递端
type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
	timeout  time.Duration
}

// NewClient 创建队列客户端；未启用时返回可安全调用的空客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	c := &Client{queue: DefaultQueue, maxRetry: defaultMaxRetry, timeout: defaultTaskTimeout}
	if cfg == nil || !cfg.Enabled {
		return c, nil
	}
	if cfg.MaxRetry > 0 {
		c.maxRetry = cfg.MaxRetry
	}
	if cfg.TimeoutSec > 0 {
		c.timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	c.client = asynq.NewClient(redisOpt(cfg))
	return c, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// EnqueuePaymentSucceeded 推送支付成功任务
// 任务 ID 由支付单号派生，同一支付单重复投递视为成功。
func (c *Client) EnqueuePaymentSucceeded(payload PaymentSucceededPayload, opts ...asynq.Option) error {
	if !c.Enabled() {
		return ErrQueueDisabled
	}
	task, err := NewPaymentSucceededTask(payload)
	if err != nil {
		return err
	}
	options := []asynq.Option{
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
	}
	if payload.PaymentNo != "" {
		options = append(options, asynq.TaskID(TaskPaymentSucceeded+":"+payload.PaymentNo))
	}
	info, err := c.client.Enqueue(task, append(options, opts...)...)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		logger.Debugw("queue_payment_succeeded_duplicate", "payment_no", payload.PaymentNo)
		return nil
	case err != nil:
		return err
	}
	logger.Infow("queue_payment_succeeded_enqueued", "task_id", info.ID, "order_no", payload.OrderNo, "payment_no", payload.PaymentNo)
	return nil
}

// BuildServerConfig 生成 worker 端配置，任务最终失败时记录日志
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	concurrency := defaultConcurrency
	queues := map[string]int{DefaultQueue: 1}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			concurrency = cfg.Concurrency
		}
		if len(cfg.Queues) > 0 {
			queues = cfg.Queues
		}
	}
	return redisOpt(cfg), asynq.Config{
		Concurrency:     concurrency,
		Queues:          queues,
		ShutdownTimeout: 8 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warnw("queue_task_failed", "type", task.Type(), "retried", retried, "max_retry", maxRetry, "error", err)
		}),
	}
}

func redisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}
	if cfg == nil {
		return opt
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	opt.Addr = fmt.Sprintf("%s:%d", host, port)
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
