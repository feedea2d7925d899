package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/dujiao-next/storefront/internal/app"
	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/logger"

	"github.com/gin-gonic/gin"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

func main() {
	mode := flag.String("mode", app.ModeAll, "启动模式: all (默认), api, worker")
	showVersion := flag.Bool("version", false, "打印版本后退出")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}
	fmt.Printf("storefront session engine %s (mode=%s)\n", version, *mode)

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer func() { _ = logger.Z().Sync() }()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
		if !isHTTPS(cfg.Gateway.BaseURL) {
			logger.Warnw("gateway_insecure_base_url", "base_url", cfg.Gateway.BaseURL)
		}
	}
	if strings.TrimSpace(cfg.Gateway.Token) == "" {
		logger.Infow("session_guest_start", "hint", "PUT /api/v1/session 登录")
	}

	err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    *mode,
	})
	if err != nil {
		logger.Errorw("server_exit", "error", err)
		_ = logger.Z().Sync()
		os.Exit(1)
	}
}

func isHTTPS(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && u.Host != "" && strings.EqualFold(u.Scheme, "https")
}
