package gateway

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session 购物者登录凭证
// 只检查 token 是否存在及 exp 是否过期，签名由远端校验。
type Session struct {
	mu    sync.RWMutex
	token string
	now   func() time.Time
}

// NewSession 创建会话
func NewSession(token string) *Session {
	return &Session{token: strings.TrimSpace(token), now: time.Now}
}

// Token 当前 token
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken 登录后写入 token
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.mu.Unlock()
}

// Clear 退出登录
func (s *Session) Clear() {
	s.SetToken("")
}

// LoggedIn 是否处于登录态
func (s *Session) LoggedIn() bool {
	return s.RequireLogin() == nil
}

// RequireLogin 需要登录的操作前调用
func (s *Session) RequireLogin() error {
	token := s.Token()
	if token == "" {
		return ErrNotLoggedIn
	}
	claims := &jwt.RegisteredClaims{}
	// 非 JWT 格式的不透明 token 交给远端判断
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now()) {
		return fmt.Errorf("%w: token expired at %s", ErrNotLoggedIn, claims.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
