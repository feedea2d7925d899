package app

import (
	"context"
	"errors"
	"time"

	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/provider"
	"github.com/dujiao-next/storefront/internal/queue"
	"github.com/dujiao-next/storefront/internal/router"
	"github.com/dujiao-next/storefront/internal/worker"
)

const inProcessRefreshTimeout = 30 * time.Second

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string, container *provider.Container) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if container == nil {
		return nil, errors.New("container is nil")
	}
	if err := validateMode(mode); err != nil {
		return nil, err
	}

	consumer := worker.NewConsumer(container)
	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService("api", cfg.Server.Addr(), engine))
	}

	// 初始化 Worker 服务；队列未启用时支付成功回调在进程内执行
	if (mode == ModeAll || mode == ModeWorker) && cfg.Queue.Enabled {
		workerService, err := worker.NewService(&cfg.Queue, consumer)
		if err != nil {
			return nil, err
		}
		services = append(services, workerService)
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	WirePaymentSuccess(container, consumer)
	return NewRunner(services...), nil
}

// WirePaymentSuccess 订阅支付成功事件：优先投递队列，失败或未启用时进程内刷新
func WirePaymentSuccess(container *provider.Container, consumer *worker.Consumer) func() {
	if container == nil || container.PaymentService == nil || consumer == nil {
		return func() {}
	}
	return container.PaymentService.OnSuccess(func(session models.PaymentSession) {
		payload := queue.PaymentSucceededPayload{
			PaymentNo: session.PaymentNo,
			OrderNo:   session.OrderNo,
		}
		if container.QueueClient != nil && container.QueueClient.Enabled() {
			err := container.QueueClient.EnqueuePaymentSucceeded(payload)
			if err == nil {
				return
			}
			logger.Warnw("app_enqueue_payment_succeeded_failed", "order_no", payload.OrderNo, "payment_no", payload.PaymentNo, "error", err)
		}
		// 订阅回调运行在轮询协程内，刷新交给容器托管的协程
		started := container.Go(func(lifetime context.Context) {
			ctx, cancel := context.WithTimeout(lifetime, inProcessRefreshTimeout)
			defer cancel()
			if err := consumer.RefreshAfterPayment(ctx, payload); err != nil {
				logger.Warnw("app_inprocess_payment_refresh_failed", "order_no", payload.OrderNo, "error", err)
			}
		})
		if !started {
			logger.Debugw("app_inprocess_payment_refresh_skipped", "order_no", payload.OrderNo, "reason", "container closed")
		}
	})
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	container, err := provider.NewContainer(opts.Config)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			opts.Logger.Warnw("app_container_close_failed", "error", err)
		}
	}()

	runner, err := BuildRunner(opts.Config, opts.Mode, container)
	if err != nil {
		return err
	}

	restoreCtx, cancel := context.WithTimeout(context.Background(), opts.RestoreTimeout)
	container.Restore(restoreCtx)
	cancel()

	opts.Logger.Infow("app_start", "addr", opts.Config.Server.Addr(), "mode", opts.Mode, "queue_enabled", opts.Config.Queue.Enabled)
	return RunWithOptions(runner, opts)
}
