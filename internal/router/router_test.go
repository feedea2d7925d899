package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/gateway/gatewaytest"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func newTestEngine(t *testing.T, token string) (*gin.Engine, *gatewaytest.Fake) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fake := gatewaytest.New()
	cfg := &config.Config{Server: config.ServerConfig{Mode: "debug"}}
	c := provider.NewContainerWith(cfg, fake, gateway.NewSession(token), nil)
	t.Cleanup(func() { _ = c.Close() })
	return SetupRouter(cfg, c), fake
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) envelope {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCartRoutes(t *testing.T) {
	r, fake := newTestEngine(t, "")

	resp := doJSON(t, r, http.MethodPost, "/api/v1/cart/items", `{"skuId":"A","title":"耳机","price":"12.50","count":2,"stock":3}`)
	require.Equal(t, 0, resp.StatusCode, resp.Msg)
	assert.Equal(t, "已加入购物车", resp.Msg)
	assert.Equal(t, 1, fake.Calls(gatewaytest.OpAddCartItem))

	resp = doJSON(t, r, http.MethodPost, "/api/v1/cart/items/A/increase", `{"delta":2}`)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "商品数量不能超过库存", resp.Msg)

	resp = doJSON(t, r, http.MethodGet, "/api/v1/cart", "")
	require.Equal(t, 0, resp.StatusCode)
	var cart struct {
		Items   []models.CartItem  `json:"items"`
		Summary models.CartSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Summary.TotalCount)
	assert.Equal(t, "25.00", cart.Summary.TotalPrice.String())
}

func TestOrderRoutesRequireLogin(t *testing.T) {
	r, fake := newTestEngine(t, "")

	resp := doJSON(t, r, http.MethodPost, "/api/v1/orders", `{"items":[{"skuId":"A","count":1}],"addressId":"a1"}`)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, "请先登录", resp.Msg)
	assert.Equal(t, 0, fake.Calls(gatewaytest.OpCreateOrder))
}

func TestNoticesRoute(t *testing.T) {
	r, fake := newTestEngine(t, "")
	fake.FailNext(gatewaytest.OpFetchCart, gatewaytest.TransportError())

	resp := doJSON(t, r, http.MethodPost, "/api/v1/cart/fetch", "")
	assert.Equal(t, 502, resp.StatusCode)

	resp = doJSON(t, r, http.MethodGet, "/api/v1/notices", "")
	require.Equal(t, 0, resp.StatusCode)
	var notices []struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &notices))
	require.NotEmpty(t, notices)
	assert.Equal(t, "error", notices[len(notices)-1].Level)
}

func TestUnknownAPIRoute(t *testing.T) {
	r, _ := newTestEngine(t, "")
	resp := doJSON(t, r, http.MethodGet, "/api/v1/unknown", "")
	assert.Equal(t, 404, resp.StatusCode)
}
