package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/events"
	"github.com/dujiao-next/storefront/internal/gateway"
	"github.com/dujiao-next/storefront/internal/localstore"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/notify"
	"github.com/dujiao-next/storefront/internal/state"

	"go.uber.org/zap"
)

const (
	defaultPollMaxAttempts     = 60
	defaultPollMaxFailures     = 5
	defaultPaymentExpireSecond = 1800
)

var (
	errStalePoll     = errors.New("poll superseded")
	errSessionFrozen = errors.New("payment session already terminal")
)

// PaymentState 支付会话与轮询器状态
type PaymentState struct {
	Session     *models.PaymentSession `json:"session"`
	Poller      string                 `json:"poller"`
	Attempts    int                    `json:"attempts"`
	Failures    int                    `json:"failures"`
	Methods     []models.PaymentMethod `json:"methods"`
	LastSuccess *models.PaymentSession `json:"lastSuccess,omitempty"`
	Generation  uint64                 `json:"-"`
}

func clonePaymentState(s PaymentState) PaymentState {
	out := s
	if s.Session != nil {
		c := s.Session.Clone()
		out.Session = &c
	}
	if s.LastSuccess != nil {
		c := s.LastSuccess.Clone()
		out.LastSuccess = &c
	}
	out.Methods = append([]models.PaymentMethod(nil), s.Methods...)
	return out
}

// PaymentService 支付状态轮询
// 同一时刻最多一个轮询 goroutine：启动新会话前先取消旧的。
type PaymentService struct {
	gw       gateway.PaymentGateway
	store    localstore.Store
	notifier notify.Notifier
	log      *zap.SugaredLogger

	interval    time.Duration
	maxAttempts int
	maxFailures int
	expireIn    int

	state   *state.Store[PaymentState]
	success *events.Bus[models.PaymentSession]
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewPaymentService 创建支付服务
func NewPaymentService(gw gateway.PaymentGateway, store localstore.Store, notifier notify.Notifier, cfg config.PaymentConfig, log *zap.SugaredLogger) *PaymentService {
	if log == nil {
		log = logger.Named("payment")
	}
	s := &PaymentService{
		gw:          gw,
		store:       store,
		notifier:    notifier,
		log:         log,
		interval:    cfg.PollInterval(),
		maxAttempts: cfg.MaxAttempts,
		maxFailures: cfg.MaxConsecutiveFailures,
		expireIn:    cfg.DefaultExpireSeconds,
		state:       state.New(PaymentState{Poller: constants.PollerStateIdle}, clonePaymentState),
		success:     events.NewBus[models.PaymentSession]("payment_success", log),
		now:         time.Now,
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultPollMaxAttempts
	}
	if s.maxFailures <= 0 {
		s.maxFailures = defaultPollMaxFailures
	}
	if s.expireIn <= 0 {
		s.expireIn = defaultPaymentExpireSecond
	}
	return s
}

// State 状态容器
func (s *PaymentService) State() *state.Store[PaymentState] {
	return s.state
}

// Snapshot 当前状态快照
func (s *PaymentService) Snapshot() PaymentState {
	return s.state.GetState()
}

// OnSuccess 订阅支付成功事件，返回取消函数
func (s *PaymentService) OnSuccess(fn func(models.PaymentSession)) func() {
	return s.success.Subscribe(fn)
}

// FetchMethods 获取支付方式并缓存
func (s *PaymentService) FetchMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	methods, err := s.gw.ListPaymentMethods(ctx)
	if err != nil {
		s.log.Warnw("payment_methods_fetch_failed", "error", err)
		s.notifier.Error(gateway.Message(err, "获取支付方式失败"))
		var cached []models.PaymentMethod
		if s.store != nil {
			if ok, getErr := s.store.Get(ctx, constants.StorageKeyPaymentMethods, &cached); getErr == nil && ok {
				return cached, err
			}
		}
		return nil, err
	}
	s.state.Dispatch("payment/methods", func(st *PaymentState) {
		st.Methods = append([]models.PaymentMethod(nil), methods...)
	})
	s.persist(ctx, constants.StorageKeyPaymentMethods, methods)
	return methods, nil
}

// InitPayment 创建支付会话并开始轮询；amount 为零时使用远端返回金额
func (s *PaymentService) InitPayment(ctx context.Context, orderNo, method string, amount models.Money) (*models.PaymentSession, error) {
	orderNo = strings.TrimSpace(orderNo)
	method = strings.TrimSpace(method)
	if orderNo == "" {
		s.notifier.Error("订单号不能为空")
		return nil, ErrPaymentInvalid
	}
	if method == "" {
		s.notifier.Error("支付方式不能为空")
		return nil, ErrPaymentInvalid
	}
	if method != constants.PaymentMethodWechat && method != constants.PaymentMethodAlipay {
		return nil, ErrPaymentMethodUnsupported
	}

	s.ClearPolling()

	result, err := s.gw.CreatePayment(ctx, gateway.CreatePaymentRequest{OrderNo: orderNo, Method: method})
	if err != nil {
		s.log.Warnw("payment_create_failed", "order_no", orderNo, "method", method, "error", err)
		s.notifier.Error(gateway.Message(err, "创建支付失败"))
		return nil, err
	}
	if result.Number() == "" {
		return nil, gateway.ErrResponseInvalid
	}

	session := models.PaymentSession{
		PaymentNo:  result.Number(),
		OrderNo:    orderNo,
		Method:     method,
		Amount:     amount,
		Status:     constants.PaymentStatusUnpaid,
		ExpiresIn:  result.ExpiresIn,
		CreateTime: s.now(),
	}
	if session.Amount.IsZero() {
		session.Amount = result.Amount
	}
	if session.ExpiresIn <= 0 {
		session.ExpiresIn = s.expireIn
	}
	switch method {
	case constants.PaymentMethodWechat:
		session.QRCodeURL = result.QRCodeURL
	case constants.PaymentMethodAlipay:
		session.RedirectURL = result.RedirectURL
	}

	if err := s.start(session); err != nil {
		return nil, err
	}
	s.persistSession(ctx, session)
	s.log.Infow("payment_initialized", "payment_no", session.PaymentNo, "order_no", orderNo, "method", method, "expires_in", session.ExpiresIn)
	out := session.Clone()
	return &out, nil
}

// Restore 从本地存储恢复会话；未终结且未过期的会话恢复轮询
func (s *PaymentService) Restore(ctx context.Context) (*models.PaymentSession, error) {
	if s.store == nil {
		return nil, nil
	}
	var lastSuccess models.PaymentSession
	if ok, err := s.store.Get(ctx, constants.StorageKeyPaymentLastSuccess, &lastSuccess); err == nil && ok {
		s.state.Dispatch("payment/restore_last_success", func(st *PaymentState) {
			st.LastSuccess = &lastSuccess
		})
	}

	var session models.PaymentSession
	ok, err := s.store.Get(ctx, constants.StorageKeyPaymentCurrent, &session)
	if err != nil || !ok || session.PaymentNo == "" {
		return nil, err
	}
	var status string
	if ok, _ := s.store.Get(ctx, constants.StorageKeyPaymentStatus, &status); ok && status != "" {
		session.Status = status
	}

	if session.Terminal() || session.Expired(s.now()) {
		poller := constants.PollerStateExpired
		if session.Status == constants.PaymentStatusPaid {
			poller = constants.PollerStateSucceeded
		}
		s.state.Dispatch("payment/restore", func(st *PaymentState) {
			st.Generation++
			st.Session = &session
			st.Poller = poller
		})
		s.log.Infow("payment_restored", "payment_no", session.PaymentNo, "status", session.Status, "poller", poller)
		out := session.Clone()
		return &out, nil
	}

	if err := s.start(session); err != nil {
		return nil, err
	}
	s.log.Infow("payment_restored", "payment_no", session.PaymentNo, "status", session.Status, "poller", constants.PollerStatePolling)
	out := session.Clone()
	return &out, nil
}

// start 提交新会话并启动唯一的轮询 goroutine
func (s *PaymentService) start(session models.PaymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return context.Canceled
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	var gen uint64
	s.state.Dispatch("payment/start", func(st *PaymentState) {
		st.Generation++
		gen = st.Generation
		sess := session.Clone()
		st.Session = &sess
		st.Poller = constants.PollerStatePolling
		st.Attempts = 0
		st.Failures = 0
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.poll(ctx, gen, session.PaymentNo)
	return nil
}

func (s *PaymentService) poll(ctx context.Context, gen uint64, paymentNo string) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if done := s.tick(ctx, gen, paymentNo); done {
			return
		}
	}
}

// tick 一次轮询，返回 true 表示轮询结束
func (s *PaymentService) tick(ctx context.Context, gen uint64, paymentNo string) bool {
	var attempt int
	timedOut, expired := false, false
	err := s.state.DispatchE("payment/tick", func(st *PaymentState) error {
		if st.Generation != gen || st.Poller != constants.PollerStatePolling {
			return errStalePoll
		}
		st.Attempts++
		attempt = st.Attempts
		switch {
		case st.Attempts > s.maxAttempts:
			st.Poller = constants.PollerStateStopped
			timedOut = true
		case st.Session != nil && st.Session.Expired(s.now()):
			st.Poller = constants.PollerStateExpired
			expired = true
		}
		return nil
	})
	if err != nil {
		return true
	}
	if timedOut {
		s.log.Infow("payment_poll_timeout", "payment_no", paymentNo, "attempts", attempt-1)
		s.finish(gen)
		return true
	}
	if expired {
		s.log.Infow("payment_session_expired", "payment_no", paymentNo)
		s.finish(gen)
		return true
	}

	result, err := s.gw.GetPaymentStatus(ctx, paymentNo)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		stopped := false
		failures := 0
		if dispatchErr := s.state.DispatchE("payment/tick_failed", func(st *PaymentState) error {
			if st.Generation != gen {
				return errStalePoll
			}
			st.Failures++
			failures = st.Failures
			if st.Failures >= s.maxFailures {
				st.Poller = constants.PollerStateStopped
				stopped = true
			}
			return nil
		}); dispatchErr != nil {
			return true
		}
		s.log.Warnw("payment_poll_failed", "payment_no", paymentNo, "attempt", attempt, "failures", failures, "error", err)
		if stopped {
			s.log.Warnw("payment_poll_stopped", "payment_no", paymentNo, "failures", failures)
			s.finish(gen)
		}
		return stopped
	}

	session, becameTerminal, err := s.applyStatus(gen, result)
	if err != nil {
		return true
	}
	s.persist(ctx, constants.StorageKeyPaymentStatus, session.Status)
	if !becameTerminal {
		return false
	}
	s.afterTerminal(ctx, session)
	s.finish(gen)
	return true
}

// applyStatus 写入远端状态；代数不符返回 errStalePoll，会话已终结返回 errSessionFrozen
// becameTerminal 只在本次写入使会话进入终态时为 true，终态收尾据此只执行一次
func (s *PaymentService) applyStatus(gen uint64, result *gateway.PaymentStatusResult) (session models.PaymentSession, becameTerminal bool, err error) {
	err = s.state.DispatchE("payment/status", func(st *PaymentState) error {
		if st.Generation != gen || st.Session == nil {
			return errStalePoll
		}
		if st.Session.Terminal() {
			session = st.Session.Clone()
			return errSessionFrozen
		}
		st.Failures = 0
		applyPaymentResult(st, result, s.now())
		becameTerminal = st.Session.Terminal()
		session = st.Session.Clone()
		return nil
	})
	return session, becameTerminal, err
}

func applyPaymentResult(st *PaymentState, result *gateway.PaymentStatusResult, now time.Time) {
	if result.Status != "" {
		st.Session.Status = result.Status
	}
	switch st.Session.Status {
	case constants.PaymentStatusPaid:
		payTime := now
		if result.PayTime != nil {
			payTime = *result.PayTime
		}
		st.Session.PayTime = &payTime
		st.Poller = constants.PollerStateSucceeded
		success := st.Session.Clone()
		st.LastSuccess = &success
	case constants.PaymentStatusRefunded, constants.PaymentStatusClosed:
		st.Poller = constants.PollerStateExpired
	}
}

// afterTerminal 终态落盘与成功广播
func (s *PaymentService) afterTerminal(ctx context.Context, session models.PaymentSession) {
	s.persistSession(ctx, session)
	if session.Status != constants.PaymentStatusPaid {
		s.log.Infow("payment_closed", "payment_no", session.PaymentNo, "status", session.Status)
		return
	}
	s.persist(ctx, constants.StorageKeyPaymentLastSuccess, session)
	s.log.Infow("payment_succeeded", "payment_no", session.PaymentNo, "order_no", session.OrderNo)
	s.notifier.Success("支付成功")
	s.success.Publish(session)
}

// finish 释放本代轮询的取消函数
func (s *PaymentService) finish(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.GetState().Generation == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// CheckStatus 单次查询；paymentNo 为空时查询当前会话
func (s *PaymentService) CheckStatus(ctx context.Context, paymentNo string) (*models.PaymentSession, error) {
	st := s.state.GetState()
	paymentNo = strings.TrimSpace(paymentNo)
	if paymentNo == "" && st.Session != nil {
		paymentNo = st.Session.PaymentNo
	}
	if paymentNo == "" {
		return nil, ErrNoActivePayment
	}

	result, err := s.gw.GetPaymentStatus(ctx, paymentNo)
	if err != nil {
		s.log.Warnw("payment_status_check_failed", "payment_no", paymentNo, "error", err)
		return nil, err
	}

	if st.Session == nil || st.Session.PaymentNo != paymentNo {
		return &models.PaymentSession{PaymentNo: paymentNo, Status: result.Status, PayTime: result.PayTime}, nil
	}

	session, becameTerminal, err := s.applyStatus(st.Generation, result)
	switch {
	case errors.Is(err, errSessionFrozen):
		return &session, nil
	case err != nil:
		return &models.PaymentSession{PaymentNo: paymentNo, Status: result.Status, PayTime: result.PayTime}, nil
	}
	s.persist(ctx, constants.StorageKeyPaymentStatus, session.Status)
	if becameTerminal {
		s.afterTerminal(ctx, session)
		s.finish(st.Generation)
	}
	return &session, nil
}

// ManualCheck 用户手动刷新当前会话状态（轮询超时后的兜底）
func (s *PaymentService) ManualCheck(ctx context.Context) (*models.PaymentSession, error) {
	return s.CheckStatus(ctx, "")
}

// ClearPolling 停止轮询，会话保留
func (s *PaymentService) ClearPolling() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.state.Dispatch("payment/clear_polling", func(st *PaymentState) {
		st.Generation++
		if st.Poller == constants.PollerStatePolling {
			st.Poller = constants.PollerStateStopped
		}
	})
}

// Reset 停止轮询并清空当前会话
func (s *PaymentService) Reset(ctx context.Context) {
	s.ClearPolling()
	s.state.Dispatch("payment/reset", func(st *PaymentState) {
		st.Session = nil
		st.Poller = constants.PollerStateIdle
		st.Attempts = 0
		st.Failures = 0
	})
	if s.store == nil {
		return
	}
	for _, key := range []string{constants.StorageKeyPaymentCurrent, constants.StorageKeyPaymentStatus} {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warnw("payment_storage_delete_failed", "key", key, "error", err)
		}
	}
}

// Close 进程退出时调用：取消轮询并等待 goroutine 退出
// 不能在成功事件的订阅回调中调用。
func (s *PaymentService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.ClearPolling()
	s.wg.Wait()
}

func (s *PaymentService) persistSession(ctx context.Context, session models.PaymentSession) {
	s.persist(ctx, constants.StorageKeyPaymentCurrent, session)
	s.persist(ctx, constants.StorageKeyPaymentStatus, session.Status)
}

func (s *PaymentService) persist(ctx context.Context, key string, value interface{}) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, key, value); err != nil {
		s.log.Warnw("payment_persist_failed", "key", key, "error", err)
	}
}
