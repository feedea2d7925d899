package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dujiao-next/storefront/internal/logger"
)

// HTTPService 将 http.Server 包装为 Runner 可管理的服务
type HTTPService struct {
	name   string
	server *http.Server
}

// NewHTTPService 创建 HTTP 服务，name 用于日志区分会话 API 与沙箱
func NewHTTPService(name, addr string, handler http.Handler) *HTTPService {
	if name == "" {
		name = "http"
	}
	return &HTTPService{
		name: name,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          logger.StdLogger(),
		},
	}
}

// Name 服务名称
func (s *HTTPService) Name() string {
	return s.name
}

// Addr 监听地址
func (s *HTTPService) Addr() string {
	return s.server.Addr
}

// Start 监听直到 Stop 被调用
func (s *HTTPService) Start(_ context.Context) error {
	if s.server == nil {
		return errors.New("http server not initialized")
	}
	logger.Infow("http_listen", "service", s.name, "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop 优雅关闭，等待进行中的请求结束
func (s *HTTPService) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
