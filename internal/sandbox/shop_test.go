package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sandboxEnv struct {
	shop   *Shop
	issuer *TokenIssuer
	server *httptest.Server
	client *gateway.HTTPClient
}

func newSandboxEnv(t *testing.T, demoAfter int, loggedIn bool) *sandboxEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:sandbox_shop_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrateSandbox(db))
	require.NoError(t, Seed(db, DefaultCatalog(), true))

	cfg := config.SandboxConfig{DemoPaymentSuccessAfter: demoAfter, JWTSecret: "test-secret"}
	shop := NewShop(db, cfg, logger.Nop())
	issuer := NewTokenIssuer(cfg.JWTSecret, time.Hour)
	server := httptest.NewServer(NewEngine(shop, issuer))
	t.Cleanup(server.Close)

	session := gateway.NewSession("")
	if loggedIn {
		token, _, err := issuer.Issue("tester")
		require.NoError(t, err)
		session.SetToken(token)
	}
	client := gateway.NewHTTPClient(config.GatewayConfig{BaseURL: server.URL, TimeoutMS: 2000}, session,
		gateway.WithLogger(logger.Nop()))
	return &sandboxEnv{shop: shop, issuer: issuer, server: server, client: client}
}

func apiCode(t *testing.T, err error) int {
	t.Helper()
	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	return apiErr.Code
}

func TestSandboxCartFlow(t *testing.T) {
	env := newSandboxEnv(t, 0, false)
	ctx := context.Background()

	items, err := env.client.FetchCart(ctx)
	require.NoError(t, err)
	require.Len(t, items, 4)
	bySku := map[string]models.CartItem{}
	for _, it := range items {
		bySku[it.SkuID] = it
	}
	assert.True(t, bySku["SKU-RETIRED"].IsInvalid)
	assert.Equal(t, "白色", bySku["SKU-TEE-WHITE-M"].Specs["颜色"])

	require.NoError(t, env.client.AddCartItem(ctx, gateway.AddCartItemRequest{SkuID: "SKU-MUG-01", Count: 2}))
	err = env.client.AddCartItem(ctx, gateway.AddCartItemRequest{SkuID: "SKU-TEE-BLACK-L", Count: 5})
	assert.Equal(t, http.StatusBadRequest, apiCode(t, err))
	err = env.client.AddCartItem(ctx, gateway.AddCartItemRequest{SkuID: "SKU-RETIRED", Count: 1})
	assert.Equal(t, http.StatusNotFound, apiCode(t, err))

	unselected := false
	require.NoError(t, env.client.BatchUpdateCart(ctx, []gateway.CartUpdate{
		{SkuID: "SKU-TEE-WHITE-M", Count: 0},
		{SkuID: "SKU-MUG-01", Count: 4, Selected: &unselected},
	}))
	items, err = env.client.FetchCart(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, it := range items {
		if it.SkuID == "SKU-MUG-01" {
			assert.Equal(t, 4, it.Count)
			assert.False(t, it.Selected)
		}
	}
}

func TestSandboxBatchUpdateIsAtomic(t *testing.T) {
	env := newSandboxEnv(t, 0, false)
	ctx := context.Background()

	err := env.client.BatchUpdateCart(ctx, []gateway.CartUpdate{
		{SkuID: "SKU-MUG-01", Count: 3},
		{SkuID: "SKU-TEE-BLACK-L", Count: 99},
	})
	assert.Equal(t, http.StatusBadRequest, apiCode(t, err))

	items, err := env.client.FetchCart(ctx)
	require.NoError(t, err)
	for _, it := range items {
		if it.SkuID == "SKU-MUG-01" {
			assert.Equal(t, 1, it.Count, "failed batch must roll back")
		}
	}
}

func TestSandboxOrderRequiresToken(t *testing.T) {
	env := newSandboxEnv(t, 0, false)
	_, err := env.client.CreateOrder(context.Background(), gateway.CreateOrderRequest{
		Items: []gateway.OrderItemRequest{{SkuID: "SKU-MUG-01", Count: 1}},
	})
	assert.Equal(t, http.StatusUnauthorized, apiCode(t, err))
}

func TestSandboxOrderLifecycle(t *testing.T) {
	env := newSandboxEnv(t, 2, true)
	ctx := context.Background()

	addr, err := env.client.AddAddress(ctx, gateway.AddressPayload{Name: "张三", Mobile: "13800000000", Address: "西湖路 1 号", IsDefault: true})
	require.NoError(t, err)
	require.NotEmpty(t, addr.ID)

	order, err := env.client.CreateOrder(ctx, gateway.CreateOrderRequest{
		Items:     []gateway.OrderItemRequest{{SkuID: "SKU-MUG-01", Count: 2}},
		AddressID: addr.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPendingPayment, order.Status)
	assert.Equal(t, "59.80", order.PaymentAmount.String())
	require.NotNil(t, order.Address)
	assert.Equal(t, "张三", order.Address.Name)

	items, err := env.client.FetchCart(ctx)
	require.NoError(t, err)
	for _, it := range items {
		assert.NotEqual(t, "SKU-MUG-01", it.SkuID, "ordered line must leave the cart")
	}

	pay, err := env.client.CreatePayment(ctx, gateway.CreatePaymentRequest{OrderNo: order.OrderNo, Method: constants.PaymentMethodWechat})
	require.NoError(t, err)
	assert.NotEmpty(t, pay.QRCodeURL)
	assert.Equal(t, "59.80", pay.Amount.String())

	status, err := env.client.GetPaymentStatus(ctx, pay.Number())
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusUnpaid, status.Status)
	status, err = env.client.GetPaymentStatus(ctx, pay.Number())
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusPaid, status.Status)
	require.NotNil(t, status.PayTime)

	detail, err := env.client.GetOrder(ctx, order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPendingShipment, detail.Status)

	// 已支付订单不能再次支付
	_, err = env.client.CreatePayment(ctx, gateway.CreatePaymentRequest{OrderNo: order.OrderNo, Method: constants.PaymentMethodAlipay})
	assert.Equal(t, http.StatusBadRequest, apiCode(t, err))

	resp, err := http.Post(env.server.URL+"/sandbox/orders/"+order.OrderNo+"/ship", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	ack, err := env.client.ConfirmReceipt(ctx, order.OrderNo)
	require.NoError(t, err)
	assert.False(t, ack.Offline)

	err = env.client.CancelOrder(ctx, order.OrderNo)
	assert.Equal(t, http.StatusBadRequest, apiCode(t, err))

	page, err := env.client.ListOrders(ctx, gateway.OrderListParams{Status: int(models.OrderStatusCompleted)})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, order.OrderNo, page.Records[0].OrderNo)
	assert.NotNil(t, page.Records[0].CompleteTime)
}

func TestSandboxPaymentExpires(t *testing.T) {
	env := newSandboxEnv(t, 0, true)
	ctx := context.Background()

	order, err := env.client.CreateOrder(ctx, gateway.CreateOrderRequest{
		Items:   []gateway.OrderItemRequest{{SkuID: "SKU-TEE-WHITE-M", Count: 1}},
		Address: &models.Address{Name: "李四", Mobile: "139", Address: "一号"},
	})
	require.NoError(t, err)
	pay, err := env.client.CreatePayment(ctx, gateway.CreatePaymentRequest{OrderNo: order.OrderNo, Method: constants.PaymentMethodAlipay})
	require.NoError(t, err)
	assert.NotEmpty(t, pay.RedirectURL)

	env.shop.now = func() time.Time { return time.Now().Add(time.Hour) }
	status, err := env.client.GetPaymentStatus(ctx, pay.Number())
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusClosed, status.Status)
}

func TestSandboxAddressDefault(t *testing.T) {
	env := newSandboxEnv(t, 0, true)
	ctx := context.Background()

	first, err := env.client.AddAddress(ctx, gateway.AddressPayload{Name: "甲", Mobile: "1", Address: "x", IsDefault: true})
	require.NoError(t, err)
	second, err := env.client.AddAddress(ctx, gateway.AddressPayload{Name: "乙", Mobile: "2", Address: "y"})
	require.NoError(t, err)

	require.NoError(t, env.client.SetDefaultAddress(ctx, second.ID))
	list, err := env.client.ListAddresses(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)

	require.NoError(t, env.client.DeleteAddress(ctx, first.ID))
	err = env.client.DeleteAddress(ctx, first.ID)
	assert.Equal(t, http.StatusNotFound, apiCode(t, err))
}

func TestSandboxConfirmFallsBackWhenUnreachable(t *testing.T) {
	env := newSandboxEnv(t, 0, true)
	env.server.Close()

	ack, err := env.client.ConfirmReceipt(context.Background(), "ORD-OFFLINE")
	require.NoError(t, err)
	assert.True(t, ack.Offline)
	assert.Equal(t, gateway.MessageLocalFallback, ack.Message)

	_, err = env.client.FetchCart(context.Background())
	assert.True(t, gateway.IsTransport(err))
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	token, _, err := issuer.Issue("tester")
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "tester", claims.Shopper)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.Parse(token)
	assert.Error(t, err)

	_, err = NewTokenIssuer("other", time.Minute).Parse(token)
	assert.Error(t, err)
}
