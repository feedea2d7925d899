package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxResponseBytes = 4 << 20

// HTTPClient 基于 net/http 的远端商城客户端
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	log        *zap.SugaredLogger
}

// Option HTTPClient 可选项
type Option func(*HTTPClient)

// WithHTTPClient 替换底层 http.Client（测试用）
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger 指定日志
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *HTTPClient) {
		if log != nil {
			c.log = log
		}
	}
}

// NewHTTPClient 创建远端客户端
func NewHTTPClient(cfg config.GatewayConfig, session *Session, opts ...Option) *HTTPClient {
	if session == nil {
		session = NewSession("")
	}
	c := &HTTPClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		session:    session,
		log:        logger.Named("gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCart GET /cart/list
func (c *HTTPClient) FetchCart(ctx context.Context) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := c.do(ctx, http.MethodGet, "/cart/list", nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddCartItem POST /cart/add
func (c *HTTPClient) AddCartItem(ctx context.Context, req AddCartItemRequest) error {
	return c.do(ctx, http.MethodPost, "/cart/add", nil, req, nil)
}

// BatchUpdateCart PATCH /cart/batch
func (c *HTTPClient) BatchUpdateCart(ctx context.Context, updates []CartUpdate) error {
	return c.do(ctx, http.MethodPatch, "/cart/batch", nil, updates, nil)
}

// CreateOrder POST /order/create
func (c *HTTPClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/order/create", nil, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder GET /order/detail/:orderNo
func (c *HTTPClient) GetOrder(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodGet, "/order/detail/"+url.PathEscape(orderNo), nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders GET /order/list
func (c *HTTPClient) ListOrders(ctx context.Context, params OrderListParams) (*OrderPage, error) {
	query := url.Values{}
	if params.Status > 0 {
		query.Set("status", strconv.Itoa(params.Status))
	}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(params.PageSize))
	}
	var page OrderPage
	if err := c.do(ctx, http.MethodGet, "/order/list", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CancelOrder POST /order/cancel/:orderNo
func (c *HTTPClient) CancelOrder(ctx context.Context, orderNo string) error {
	return c.do(ctx, http.MethodPost, "/order/cancel/"+url.PathEscape(orderNo), nil, nil, nil)
}

// ConfirmReceipt POST /order/confirm/:orderNo
// 远端不可达时返回本地兜底成功，业务拒绝仍然返回错误。
func (c *HTTPClient) ConfirmReceipt(ctx context.Context, orderNo string) (*Ack, error) {
	err := c.do(ctx, http.MethodPost, "/order/confirm/"+url.PathEscape(orderNo), nil, nil, nil)
	if err == nil {
		return &Ack{Message: "success"}, nil
	}
	if IsTransport(err) {
		c.log.Warnw("gateway_confirm_receipt_local_fallback", "order_no", orderNo, "error", err)
		return &Ack{Message: MessageLocalFallback, Offline: true}, nil
	}
	return nil, err
}

// CreatePayment POST /payment/create
func (c *HTTPClient) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	var result CreatePaymentResult
	if err := c.do(ctx, http.MethodPost, "/payment/create", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPaymentStatus GET /payment/status/:paymentNo
func (c *HTTPClient) GetPaymentStatus(ctx context.Context, paymentNo string) (*PaymentStatusResult, error) {
	var result PaymentStatusResult
	if err := c.do(ctx, http.MethodGet, "/payment/status/"+url.PathEscape(paymentNo), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPaymentMethods GET /payment/methods
func (c *HTTPClient) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	if err := c.do(ctx, http.MethodGet, "/payment/methods", nil, nil, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

// ListAddresses GET /user/address
func (c *HTTPClient) ListAddresses(ctx context.Context) ([]models.Address, error) {
	var list []models.Address
	if err := c.do(ctx, http.MethodGet, "/user/address", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AddAddress POST /user/address
func (c *HTTPClient) AddAddress(ctx context.Context, req AddressPayload) (*models.Address, error) {
	var addr models.Address
	if err := c.do(ctx, http.MethodPost, "/user/address", nil, req, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

// UpdateAddress PUT /user/address/:id
func (c *HTTPClient) UpdateAddress(ctx context.Context, id string, req AddressPayload) (*models.Address, error) {
	var addr models.Address
	if err := c.do(ctx, http.MethodPut, "/user/address/"+url.PathEscape(id), nil, req, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

// DeleteAddress DELETE /user/address/:id
func (c *HTTPClient) DeleteAddress(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/user/address/"+url.PathEscape(id), nil, nil, nil)
}

// SetDefaultAddress PUT /user/address/:id/default
func (c *HTTPClient) SetDefaultAddress(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/user/address/"+url.PathEscape(id)+"/default", nil, nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body failed: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	c.setHeaders(req, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrTransport, path, err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Path: path}
		}
		return fmt.Errorf("%w: %s: %v", ErrResponseInvalid, path, err)
	}
	if env.Code != constants.GatewayCodeOK {
		c.log.Debugw("gateway_request_rejected", "method", method, "path", path, "code", env.Code, "message", env.Message)
		return &APIError{Code: env.Code, Message: env.Message, Path: path}
	}
	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrResponseInvalid, path, err)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := RequestIDFromContext(req.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

type requestIDKey struct{}

// WithRequestID 透传请求 ID 到远端
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if strings.TrimSpace(requestID) == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext 读取透传的请求 ID，不存在时返回空串
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

var _ Gateway = (*HTTPClient)(nil)
