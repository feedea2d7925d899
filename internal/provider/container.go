package provider

import (
	"context"
	"errors"
	"sync"

	"github.com/dujiao-next/storefront/internal/cache"
	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/localstore"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/notify"
	"github.com/dujiao-next/storefront/internal/queue"
	"github.com/dujiao-next/storefront/internal/service"
)

const noticeCapacity = 50

// Container 依赖注入容器（一个购物者会话）
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	Session *gateway.Session
	Gateway gateway.Gateway
	Store   localstore.Store
	Notices *notify.Recorder

	// Services
	CartService    *service.CartService
	PaymentService *service.PaymentService
	AddressService *service.AddressService
	OrderService   *service.OrderService

	closers []func() error

	// 后台任务随容器关闭取消并等待退出
	lifetime context.Context
	stop     context.CancelFunc
	tasksMu  sync.Mutex
	tasks    sync.WaitGroup
	closed   bool
}

// NewContainer 按配置初始化容器：Redis、本地存储、远端网关、队列客户端与各服务
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if cfg.Redis.Enabled {
		if err := cache.InitRedis(&cfg.Redis); err != nil {
			logger.Warnw("provider_init_redis_failed", "error", err)
		}
	}

	store, closeStore, err := localstore.Open(cfg.Storage)
	if err != nil {
		logger.Errorw("provider_open_storage_failed", "driver", cfg.Storage.Driver, "error", err)
		return nil, err
	}

	session := gateway.NewSession(cfg.Gateway.Token)
	gw := gateway.NewHTTPClient(cfg.Gateway, session, gateway.WithLogger(logger.Named("gateway")))

	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		_ = closeStore()
		return nil, err
	}

	c := NewContainerWith(cfg, gw, session, store)
	c.QueueClient = queueClient
	c.closers = append(c.closers, cache.Close, closeStore, queueClient.Close)
	return c, nil
}

// NewContainerWith 使用给定的网关与存储组装容器（测试与沙箱使用）
func NewContainerWith(cfg *config.Config, gw gateway.Gateway, session *gateway.Session, store localstore.Store) *Container {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if session == nil {
		session = gateway.NewSession("")
	}
	if store == nil {
		store = localstore.NewMemoryStore()
	}
	lifetime, stop := context.WithCancel(context.Background())
	c := &Container{
		Config:      cfg,
		QueueClient: &queue.Client{},
		Session:     session,
		Gateway:     gw,
		Store:       store,
		Notices:     notify.NewRecorder(noticeCapacity, logger.Named("notice")),
		lifetime:    lifetime,
		stop:        stop,
	}
	c.initServices()
	return c
}

func (c *Container) initServices() {
	c.CartService = service.NewCartService(c.Gateway, c.Store, c.Notices, logger.Named("cart"))
	c.PaymentService = service.NewPaymentService(c.Gateway, c.Store, c.Notices, c.Config.Payment, logger.Named("payment"))
	c.AddressService = service.NewAddressService(c.Gateway, c.Session, c.Store, c.Notices, logger.Named("address"))
	c.OrderService = service.NewOrderService(c.Gateway, c.Session, c.Store, c.Notices, logger.Named("order"))
}

// Restore 启动时从本地存储恢复会话状态；单项失败只记录日志
func (c *Container) Restore(ctx context.Context) {
	if _, err := c.OrderService.Restore(ctx); err != nil {
		logger.Warnw("provider_restore_order_failed", "error", err)
	}
	if _, err := c.AddressService.Load(ctx); err != nil {
		logger.Warnw("provider_restore_addresses_failed", "error", err)
	}
	if _, err := c.PaymentService.Restore(ctx); err != nil {
		logger.Warnw("provider_restore_payment_failed", "error", err)
	}
}

// Go 在容器生命周期内运行后台任务，fn 收到的 ctx 在 Close 时取消
// 容器已关闭时不再启动，返回 false
func (c *Container) Go(fn func(ctx context.Context)) bool {
	c.tasksMu.Lock()
	defer c.tasksMu.Unlock()
	if c.closed || c.lifetime == nil {
		return false
	}
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		fn(c.lifetime)
	}()
	return true
}

// Close 停止轮询、取消并等待后台任务，再释放存储等资源
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.PaymentService != nil {
		c.PaymentService.Close()
	}
	c.tasksMu.Lock()
	c.closed = true
	c.tasksMu.Unlock()
	if c.stop != nil {
		c.stop()
	}
	c.tasks.Wait()

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
