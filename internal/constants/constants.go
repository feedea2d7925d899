package constants

// 本地持久化键（按购物者命名空间隔离）
const (
	StorageKeyCartSelection      = "cart:selection"
	StorageKeyPaymentCurrent     = "payment:current"
	StorageKeyPaymentStatus      = "payment:status"
	StorageKeyPaymentLastSuccess = "payment:last_success"
	StorageKeyPaymentMethods     = "payment:methods"
	StorageKeyUserAddresses      = "user:addresses"
	StorageKeyOrderCurrent       = "order:current"
)

// 支付状态常量（远端权威）
const (
	PaymentStatusUnpaid    = "UNPAID"
	PaymentStatusPaid      = "PAID"
	PaymentStatusRefunding = "REFUNDING"
	PaymentStatusRefunded  = "REFUNDED"
	PaymentStatusClosed    = "CLOSED"
)

// 支付方式常量
const (
	PaymentMethodWechat = "wechat"
	PaymentMethodAlipay = "alipay"
)

// 轮询器状态常量
const (
	PollerStateIdle      = "IDLE"
	PollerStatePolling   = "POLLING"
	PollerStateSucceeded = "SUCCEEDED"
	PollerStateExpired   = "EXPIRED"
	PollerStateStopped   = "STOPPED"
)

// 本地地址 id 前缀
const LocalAddressIDPrefix = "local_"

// 网关成功码
const GatewayCodeOK = 200

// 队列名称常量
const (
	QueueDefault = "default"
)

// 异步任务类型常量
const (
	TaskPaymentSucceeded = "payment:succeeded"
)

// 存储驱动常量
const (
	StorageDriverMemory   = "memory"
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
	StorageDriverRedis    = "redis"
)
