package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport 请求未得到响应（网络、超时、连接拒绝）
	ErrTransport = errors.New("gateway transport failed")
	// ErrRejected 远端返回 code != 200
	ErrRejected = errors.New("gateway rejected request")
	// ErrResponseInvalid 响应体无法解析
	ErrResponseInvalid = errors.New("gateway response invalid")
	// ErrNotLoggedIn 缺少或已过期的登录凭证
	ErrNotLoggedIn = errors.New("not logged in")
)

// APIError 业务层失败（code != 200）
type APIError struct {
	Code    int
	Message string
	Path    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway %s rejected with code %d", e.Path, e.Code)
	}
	return fmt.Sprintf("gateway %s rejected with code %d: %s", e.Path, e.Code, e.Message)
}

// Is 使 errors.Is(err, ErrRejected) 成立
func (e *APIError) Is(target error) bool {
	return target == ErrRejected
}

// IsTransport 判断是否为传输层失败
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// Message 提取面向用户的错误消息
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
