package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestKeyByIPAndJSONField(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{"orderNo":" ORD-A1 ","method":"wechat"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.RemoteAddr = "1.2.3.4:5678"

	key := KeyByIPAndJSONField("orderNo")(c)
	if key != "ord-a1|1.2.3.4" {
		t.Fatalf("key want ord-a1|1.2.3.4 got %s", key)
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		t.Fatalf("read body after key extraction failed: %v", err)
	}
	if !strings.Contains(string(body), "ORD-A1") {
		t.Fatalf("request body should be restored after reading field")
	}
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("expected handler response body, got %s", w.Body.String())
	}
}

func TestRateLimitMessage(t *testing.T) {
	if got := rateLimitMessage("查询过于频繁，请 %d 秒后再试", 7); got != "查询过于频繁，请 7 秒后再试" {
		t.Fatalf("unexpected message %s", got)
	}
	if got := rateLimitMessage("稍后再试", 7); got != "稍后再试" {
		t.Fatalf("message without placeholder should be kept, got %s", got)
	}
	if got := rateLimitMessage("", 3); got != "请求过于频繁，请 3 秒后再试" {
		t.Fatalf("unexpected default message %s", got)
	}
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	r := gin.New()
	r.Use(RateLimitMiddleware(client, RateLimitRule{Prefix: "rate:test", WindowSeconds: 10, MaxRequests: 1}, KeyByIP))
	r.POST("/check", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/check", nil))
		if !strings.Contains(w.Body.String(), `"ok":true`) {
			t.Fatalf("request %d should pass when redis is unreachable, got %s", i, w.Body.String())
		}
	}
}

func TestKeyByIPAndJSONFieldIgnoresNonString(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(`{"orderNo":42}`))
	c.Request.RemoteAddr = "5.6.7.8:1000"

	if key := KeyByIPAndJSONField("orderNo")(c); key != "5.6.7.8" {
		t.Fatalf("key want 5.6.7.8 got %s", key)
	}
}
