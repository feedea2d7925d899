package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dujiao-next/storefront/internal/config"
	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/gateway/gatewaytest"
	"github.com/dujiao-next/storefront/internal/localstore"
	"github.com/dujiao-next/storefront/internal/logger"
	"github.com/dujiao-next/storefront/internal/models"
	"github.com/dujiao-next/storefront/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const pollWait = 2 * time.Second

func newPaymentFixture(t *testing.T, maxAttempts int) (*PaymentService, *gatewaytest.Fake, *localstore.MemoryStore) {
	t.Helper()
	fake := gatewaytest.New()
	store := localstore.NewMemoryStore()
	svc := NewPaymentService(fake, store, notify.NewRecorder(10, nil), config.PaymentConfig{
		PollIntervalMS:         1,
		MaxAttempts:            maxAttempts,
		MaxConsecutiveFailures: 5,
		DefaultExpireSeconds:   1800,
	}, logger.Nop())
	t.Cleanup(svc.Close)
	return svc, fake, store
}

func pollerState(svc *PaymentService) func() bool {
	return func() bool { return svc.Snapshot().Poller != constants.PollerStatePolling }
}

func TestPaymentPollerStopsOnPaid(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	svc, fake, store := newPaymentFixture(t, 60)
	defer svc.Close()
	fake.SetPaymentStatuses("PAY1", constants.PaymentStatusUnpaid, constants.PaymentStatusUnpaid, constants.PaymentStatusPaid)

	received := make(chan models.PaymentSession, 1)
	unsubscribe := svc.OnSuccess(func(p models.PaymentSession) { received <- p })
	defer unsubscribe()

	session, err := svc.InitPayment(context.Background(), "ORD-1", constants.PaymentMethodWechat, models.NewMoney("9.90"))
	require.NoError(t, err)
	assert.Equal(t, "PAY1", session.PaymentNo)
	assert.Equal(t, constants.PaymentStatusUnpaid, session.Status)
	assert.NotEmpty(t, session.QRCodeURL)
	assert.Empty(t, session.RedirectURL)
	assert.Equal(t, 1800, session.ExpiresIn)

	select {
	case paid := <-received:
		assert.Equal(t, constants.PaymentStatusPaid, paid.Status)
		assert.NotNil(t, paid.PayTime)
	case <-time.After(pollWait):
		t.Fatalf("success event not published")
	}

	require.Eventually(t, pollerState(svc), pollWait, time.Millisecond)
	assert.Equal(t, constants.PollerStateSucceeded, svc.Snapshot().Poller)
	calls := fake.Calls(gatewaytest.OpGetPaymentStatus)
	assert.Equal(t, 3, calls)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, fake.Calls(gatewaytest.OpGetPaymentStatus), "no polling after terminal status")

	var last models.PaymentSession
	ok, err := store.Get(context.Background(), constants.StorageKeyPaymentLastSuccess, &last)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "PAY1", last.PaymentNo)
}

func TestPaymentPollerStopsAfterMaxAttempts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	svc, fake, _ := newPaymentFixture(t, 5)
	defer svc.Close()

	_, err := svc.InitPayment(context.Background(), "ORD-1", constants.PaymentMethodAlipay, models.Money{})
	require.NoError(t, err)

	require.Eventually(t, pollerState(svc), pollWait, time.Millisecond)
	snap := svc.Snapshot()
	assert.Equal(t, constants.PollerStateStopped, snap.Poller)
	assert.Equal(t, constants.PaymentStatusUnpaid, snap.Session.Status, "timeout must not decide the outcome")
	assert.Equal(t, 6, snap.Attempts)
	assert.Equal(t, 5, fake.Calls(gatewaytest.OpGetPaymentStatus))
}

func TestPaymentPollerStopsAfterConsecutiveFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	svc, fake, _ := newPaymentFixture(t, 60)
	defer svc.Close()
	fake.FailAlways(gatewaytest.OpGetPaymentStatus, gatewaytest.TransportError())

	_, err := svc.InitPayment(context.Background(), "ORD-1", constants.PaymentMethodWechat, models.NewMoney("1.00"))
	require.NoError(t, err)

	require.Eventually(t, pollerState(svc), pollWait, time.Millisecond)
	assert.Equal(t, constants.PollerStateStopped, svc.Snapshot().Poller)
	assert.Equal(t, 5, fake.Calls(gatewaytest.OpGetPaymentStatus))
}

func TestPaymentPollerFailureCounterResetsOnSuccess(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	svc, fake, _ := newPaymentFixture(t, 60)
	defer svc.Close()
	for i := 0; i < 4; i++ {
		fake.FailNext(gatewaytest.OpGetPaymentStatus, gatewaytest.TransportError())
	}
	fake.SetPaymentStatuses("PAY1", constants.PaymentStatusUnpaid, constants.PaymentStatusPaid)

	_, err := svc.InitPayment(context.Background(), "ORD-1", constants.PaymentMethodWechat, models.NewMoney("1.00"))
	require.NoError(t, err)
	require.Eventually(t, pollerState(svc), pollWait, time.Millisecond)
	assert.Equal(t, constants.PollerStateSucceeded, svc.Snapshot().Poller)
}

func TestPaymentPollerClosedStatusExpires(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	svc, fake, _ := newPaymentFixture(t, 60)
	defer svc.Close()
	fake.SetPaymentStatuses("PAY1", constants.PaymentStatusClosed)

	_, err := svc.InitPayment(context.Background(), "ORD-1", constants.PaymentMethodWechat, models.NewMoney("1.00"))
	require.NoError(t, err)
	require.Eventually(t, pollerState(svc), pollWait, time.Millisecond)
	assert.Equal(t, constants.PollerStateExpired, svc.Snapshot().Poller)
	assert.Equal(t, 1, fake.Calls(gatewaytest.OpGetPaymentStatus))
}

func TestPaymentPollerSessionExpiry(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	svc, fake, _ := newPaymentFixture(t, 60)
	defer svc.Close()
	fake.PaymentExpiresIn = 60
	// 每次取时间前进 2 分钟
	var ticks atomic.Int64
	start := time.Now()
	svc.now = func() time.Time { return start.Add(time.Duration(ticks.Add(1)) * 2 * time.Minute) }

	_, err := svc.InitPayment(context.Background(), "ORD-1", constants.PaymentMethodWechat, models.NewMoney("1.00"))
	require.NoError(t, err)
	require.Eventually(t, pollerState(svc), pollWait, time.Millisecond)
	assert.Equal(t, constants.PollerStateExpired, svc.Snapshot().Poller)
	assert.Equal(t, 0, fake.Calls(gatewaytest.OpGetPaymentStatus))
}

func TestPaymentRestoreExpiredSession(t *testing.T) {
	svc, fake, store := newPaymentFixture(t, 60)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, constants.StorageKeyPaymentCurrent, models.PaymentSession{
		PaymentNo:  "PAY9",
		OrderNo:    "ORD-9",
		Method:     constants.PaymentMethodWechat,
		Status:     constants.PaymentStatusUnpaid,
		ExpiresIn:  60,
		CreateTime: time.Now().Add(-time.Hour),
	}))

	session, err := svc.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, constants.PollerStateExpired, svc.Snapshot().Poller)
	assert.Equal(t, 0, fake.Calls(gatewaytest.OpGetPaymentStatus))
}

func TestPaymentInitSupersedesPreviousPoll(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	svc, _, _ := newPaymentFixture(t, 1000)
	defer svc.Close()
	ctx := context.Background()

	first, err := svc.InitPayment(ctx, "ORD-1", constants.PaymentMethodWechat, models.NewMoney("1.00"))
	require.NoError(t, err)
	second, err := svc.InitPayment(ctx, "ORD-2", constants.PaymentMethodAlipay, models.NewMoney("2.00"))
	require.NoError(t, err)
	require.NotEqual(t, first.PaymentNo, second.PaymentNo)

	snap := svc.Snapshot()
	assert.Equal(t, second.PaymentNo, snap.Session.PaymentNo)
	assert.Equal(t, constants.PollerStatePolling, snap.Poller)

	svc.ClearPolling()
	assert.Equal(t, constants.PollerStateStopped, svc.Snapshot().Poller)
	svc.Close()
}

func TestPaymentInitValidation(t *testing.T) {
	svc, fake, _ := newPaymentFixture(t, 60)
	ctx := context.Background()

	_, err := svc.InitPayment(ctx, "", constants.PaymentMethodWechat, models.Money{})
	assert.ErrorIs(t, err, ErrPaymentInvalid)
	_, err = svc.InitPayment(ctx, "ORD-1", "", models.Money{})
	assert.ErrorIs(t, err, ErrPaymentInvalid)
	_, err = svc.InitPayment(ctx, "ORD-1", "paypal", models.Money{})
	assert.ErrorIs(t, err, ErrPaymentMethodUnsupported)
	assert.Equal(t, 0, fake.Calls(gatewaytest.OpCreatePayment))
	assert.Equal(t, constants.PollerStateIdle, svc.Snapshot().Poller)
}

func TestPaymentManualCheckAfterTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	svc, fake, _ := newPaymentFixture(t, 1)
	defer svc.Close()
	ctx := context.Background()

	_, err := svc.InitPayment(ctx, "ORD-1", constants.PaymentMethodWechat, models.NewMoney("1.00"))
	require.NoError(t, err)
	require.Eventually(t, pollerState(svc), pollWait, time.Millisecond)
	require.Equal(t, constants.PollerStateStopped, svc.Snapshot().Poller)

	published := 0
	svc.OnSuccess(func(models.PaymentSession) { published++ })
	fake.SetPaymentStatuses("PAY1", constants.PaymentStatusPaid)

	session, err := svc.ManualCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusPaid, session.Status)
	assert.Equal(t, constants.PollerStateSucceeded, svc.Snapshot().Poller)
	assert.Equal(t, 1, published)
}

func TestPaymentSuccessPublishedOnceWhenCheckRacesPoll(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	svc, fake, _ := newPaymentFixture(t, 1000)
	defer svc.Close()
	ctx := context.Background()
	fake.Latency = 50 * time.Millisecond
	fake.SetPaymentStatuses("PAY1", constants.PaymentStatusPaid, constants.PaymentStatusPaid)

	var published atomic.Int32
	svc.OnSuccess(func(models.PaymentSession) { published.Add(1) })

	_, err := svc.InitPayment(ctx, "ORD-1", constants.PaymentMethodWechat, models.NewMoney("1.00"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fake.Calls(gatewaytest.OpGetPaymentStatus) >= 1 }, pollWait, time.Millisecond)

	first, err := svc.ManualCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusPaid, first.Status)
	require.Eventually(t, pollerState(svc), pollWait, time.Millisecond)
	svc.Close()

	assert.Equal(t, int32(1), published.Load())
	frozen := svc.Snapshot().Session
	require.NotNil(t, frozen)
	require.NotNil(t, frozen.PayTime)

	again, err := svc.ManualCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusPaid, again.Status)
	assert.True(t, frozen.PayTime.Equal(*again.PayTime), "terminal session must not be rewritten")
	assert.Equal(t, int32(1), published.Load())
}

func TestPaymentRestoreResumesPolling(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	svc, fake, store := newPaymentFixture(t, 1000)
	defer svc.Close()
	ctx := context.Background()

	_, err := svc.InitPayment(ctx, "ORD-1", constants.PaymentMethodWechat, models.NewMoney("3.00"))
	require.NoError(t, err)
	svc.Close()

	restored := NewPaymentService(fake, store, notify.NewRecorder(10, nil), config.PaymentConfig{PollIntervalMS: 1}, logger.Nop())
	defer restored.Close()
	fake.SetPaymentStatuses("PAY1", constants.PaymentStatusPaid)

	session, err := restored.Restore(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "ORD-1", session.OrderNo)
	require.Eventually(t, pollerState(restored), pollWait, time.Millisecond)
	assert.Equal(t, constants.PollerStateSucceeded, restored.Snapshot().Poller)
}

func TestPaymentResetClearsSnapshot(t *testing.T) {
	svc, _, store := newPaymentFixture(t, 1000)
	ctx := context.Background()

	_, err := svc.InitPayment(ctx, "ORD-1", constants.PaymentMethodWechat, models.NewMoney("3.00"))
	require.NoError(t, err)
	svc.Reset(ctx)

	snap := svc.Snapshot()
	assert.Nil(t, snap.Session)
	assert.Equal(t, constants.PollerStateIdle, snap.Poller)
	var session models.PaymentSession
	ok, err := store.Get(ctx, constants.StorageKeyPaymentCurrent, &session)
	require.NoError(t, err)
	assert.False(t, ok)
}
