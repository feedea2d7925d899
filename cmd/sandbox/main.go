package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/dujiao-next/storefront/internal/app"
	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/sandbox"

	"github.com/gin-gonic/gin"
)

func main() {
	var seed, seedCart bool
	flag.BoolVar(&seed, "seed", false, "启动前写入演示商品目录")
	flag.BoolVar(&seedCart, "seed-cart", false, "同时写入演示购物车（需配合 -seed）")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := models.OpenDB(cfg.Sandbox.Driver, cfg.Sandbox.DSN, models.DBPoolConfig{
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	})
	if err != nil {
		stdLog.Fatalf("连接沙箱数据库失败: %v", err)
	}
	if err := models.AutoMigrateSandbox(db); err != nil {
		stdLog.Fatalf("沙箱数据库迁移失败: %v", err)
	}
	if seed {
		if err := sandbox.Seed(db, sandbox.DefaultCatalog(), seedCart); err != nil {
			stdLog.Fatalf("写入演示数据失败: %v", err)
		}
		logger.Infow("sandbox_seeded", "with_cart", seedCart)
	}
	if cfg.Sandbox.DemoPaymentSuccessAfter > 0 {
		logger.Warnw("sandbox_demo_payment_enabled", "success_after", cfg.Sandbox.DemoPaymentSuccessAfter)
	}

	shop := sandbox.NewShop(db, cfg.Sandbox, logger.Named("sandbox"))
	issuer := sandbox.NewTokenIssuer(cfg.Sandbox.JWTSecret, cfg.Sandbox.TokenTTL())
	engine := sandbox.NewEngine(shop, issuer)

	fmt.Printf("沙箱商城监听 http://%s\n", cfg.Sandbox.Addr())
	runner := app.NewRunner(app.NewHTTPService("sandbox", cfg.Sandbox.Addr(), engine))
	if err := app.RunWithOptions(runner, app.Options{
		Config:  cfg,
		Logger:  logger.Named("sandbox"),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}); err != nil {
		stdLog.Fatalf("沙箱运行失败: %v", err)
	}
}
