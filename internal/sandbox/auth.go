package sandbox

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ShopperClaims 沙箱签发的购物者 token 声明
type ShopperClaims struct {
	Shopper string `json:"shopper"`
	jwt.RegisteredClaims
}

// TokenIssuer 签发与校验 HS256 token
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer 创建签发器
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue 签发 token
func (i *TokenIssuer) Issue(shopper string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := ShopperClaims{
		Shopper: shopper,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse 校验签名与有效期
func (i *TokenIssuer) Parse(tokenString string) (*ShopperClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	claims := &ShopperClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("无效的 token")
	}
	return claims, nil
}

const shopperContextKey = "sandbox_shopper"

// RequireToken Bearer 鉴权中间件，失败时返回 401 信封
func RequireToken(issuer *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || tokenString == header {
			writeEnvelope(c, http.StatusUnauthorized, nil, "请先登录")
			c.Abort()
			return
		}
		claims, err := issuer.Parse(tokenString)
		if err != nil {
			writeEnvelope(c, http.StatusUnauthorized, nil, "登录已过期，请重新登录")
			c.Abort()
			return
		}
		c.Set(shopperContextKey, claims.Shopper)
		c.Next()
	}
}
