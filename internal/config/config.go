package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dujiao-next/storefront/internal/constants"
	"github.com/dujiao-next/storefront/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Payment PaymentConfig `mapstructure:"payment"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	CORS    CORSConfig    `mapstructure:"cors"`
}

// ServerConfig 会话 API 服务配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// Addr 监听地址
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Level:      c.Level,
		Console:    c.Console,
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// GatewayConfig 远端商城 API 配置
type GatewayConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
	Token     string `mapstructure:"token"` // 登录后的 Bearer token，可为空（游客）
}

// Timeout 请求超时
func (c GatewayConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// StorageConfig 本地持久化配置
type StorageConfig struct {
	Driver    string `mapstructure:"driver"` // memory / sqlite / postgres / redis
	DSN       string `mapstructure:"dsn"`
	Namespace string `mapstructure:"namespace"` // 区分不同购物者
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
	MaxRetry    int            `mapstructure:"max_retry"`
	TimeoutSec  int            `mapstructure:"timeout_seconds"` // 单个任务执行上限
}

// PaymentConfig 支付状态轮询配置
type PaymentConfig struct {
	PollIntervalMS         int `mapstructure:"poll_interval_ms"`
	MaxAttempts            int `mapstructure:"max_attempts"`
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`
	DefaultExpireSeconds   int `mapstructure:"default_expire_seconds"`
}

// PollInterval 轮询间隔
func (c PaymentConfig) PollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// SandboxConfig 沙箱商城后端配置
type SandboxConfig struct {
	Enabled                 bool   `mapstructure:"enabled"`
	Host                    string `mapstructure:"host"`
	Port                    string `mapstructure:"port"`
	Driver                  string `mapstructure:"driver"`
	DSN                     string `mapstructure:"dsn"`
	DemoPaymentSuccessAfter int    `mapstructure:"demo_payment_success_after"` // 0 表示关闭演示支付
	JWTSecret               string `mapstructure:"jwt_secret"`
	TokenTTLHours           int    `mapstructure:"token_ttl_hours"`
}

// TokenTTL 沙箱签发的 token 有效期
func (c SandboxConfig) TokenTTL() time.Duration {
	if c.TokenTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// Addr 沙箱监听地址
func (c SandboxConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// defaults 按配置段分组的默认值
var defaults = map[string]map[string]interface{}{
	"server": {"host": "127.0.0.1", "port": "8090", "mode": "debug"},
	"log": {
		"level": "", "console": false, "dir": "", "filename": "storefront.log",
		"max_size_mb": 100, "max_backups": 7, "max_age_days": 30, "compress": true,
	},
	"gateway": {"base_url": "http://127.0.0.1:8091/api", "timeout_ms": 5000, "token": ""},
	"storage": {"driver": "sqlite", "dsn": "./db/storefront.db", "namespace": "default"},
	"redis":   {"enabled": false, "host": "127.0.0.1", "port": 6379, "password": "", "db": 0, "prefix": "sf"},
	"queue": {
		"enabled": false, "host": "127.0.0.1", "port": 6379, "password": "", "db": 1,
		"concurrency": 4, "max_retry": 3, "timeout_seconds": 30,
		"queues": map[string]int{"default": 1},
	},
	"payment": {
		"poll_interval_ms": 3000, "max_attempts": 60,
		"max_consecutive_failures": 5, "default_expire_seconds": 1800,
	},
	"sandbox": {
		"enabled": false, "host": "127.0.0.1", "port": "8091", "driver": "sqlite", "dsn": "./db/sandbox.db",
		"demo_payment_success_after": 0, "jwt_secret": defaultSandboxSecret, "token_ttl_hours": 24,
	},
	"cors": {
		"allowed_origins":   []string{"*"},
		"allowed_methods":   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		"allowed_headers":   []string{"Content-Type", "Authorization", "Cache-Control", "X-Requested-With", "X-Request-ID"},
		"allow_credentials": true,
		"max_age":           600,
	},
}

const defaultSandboxSecret = "sandbox-secret-change-me"

// SetDefaults 写入默认值
func SetDefaults(v *viper.Viper) {
	for section, values := range defaults {
		for key, value := range values {
			v.SetDefault(section+"."+key, value)
		}
	}
}

// Load 读取 config.yml，环境变量优先，如 GATEWAY_BASE_URL 覆盖 gateway.base_url
// 配置无效时直接 panic，进程不应带着错误配置启动
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range []string{".", "./etc", "../"} {
		v.AddConfigPath(dir)
	}
	SetDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed", "error", err, "fallback", "env_or_defaults")
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	cfg, err := Decode(v)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger.Errorw("config_invalid", "error", err)
		panic(fmt.Errorf("配置无效: %w", err))
	}
	if cfg.Sandbox.Enabled && cfg.Sandbox.JWTSecret == defaultSandboxSecret {
		logger.Warnw("config_sandbox_default_secret")
	}
	return cfg
}

// Decode 将 viper 内容解析为配置结构
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查会导致启动后才暴露的错误配置
func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(strings.TrimSpace(c.Gateway.BaseURL)); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("gateway.base_url must be an absolute URL, got %q", c.Gateway.BaseURL))
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", constants.StorageDriverMemory, constants.StorageDriverSQLite, constants.StorageDriverPostgres, "postgresql":
	case constants.StorageDriverRedis:
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("storage.driver=redis requires redis.enabled=true"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver))
	}
	if c.Payment.MaxAttempts < 0 || c.Payment.MaxConsecutiveFailures < 0 {
		errs = append(errs, errors.New("payment limits must not be negative"))
	}
	return errors.Join(errs...)
}
