package app

import (
	"fmt"
	"os"
	"time"

	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/logger"

	"go.uber.org/zap"
)

// 启动模式
const (
	ModeAll    = "all"    // 会话 API + worker
	ModeAPI    = "api"    // 仅会话 API，支付成功后进程内刷新
	ModeWorker = "worker" // 仅消费队列
)

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	RestoreTimeout  time.Duration // 启动时恢复本地会话的上限
	Mode            string
}

func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.RestoreTimeout <= 0 {
		opts.RestoreTimeout = 15 * time.Second
		if opts.Config != nil {
			opts.RestoreTimeout = opts.Config.Gateway.Timeout() * 3
		}
	}
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}

func validateMode(mode string) error {
	switch mode {
	case ModeAll, ModeAPI, ModeWorker:
		return nil
	default:
		return fmt.Errorf("unknown mode %q (all|api|worker)", mode)
	}
}
