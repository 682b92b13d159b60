package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "FLORIST"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	SessionBackendRedis  = "redis"
	SessionBackendSQL    = "sql"
	SessionBackendMemory = "memory"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

const (
	EnvAppEnv            = "FLORIST_APP_ENV"
	EnvPort              = "FLORIST_APP_PORT"
	EnvFloristBaseURL    = "FLORIST_UPSTREAM_BASE_URL"
	EnvFloristAPIKey     = "FLORIST_API_KEY"
	EnvFloristPassword   = "FLORIST_API_PASSWORD"
	EnvRedisURL          = "FLORIST_REDIS_URL"
	EnvRedisAddr         = "FLORIST_REDIS_ADDR"
	EnvDBDriver          = "FLORIST_DB_DRIVER"
	EnvDBDSN             = "FLORIST_DB_DSN"
	EnvSessionBackend    = "FLORIST_SESSION_BACKEND"
	EnvStorefrontSecret  = "FLORIST_STOREFRONT_JWT_SECRET"
	EnvProxyBaseURL      = "FLORIST_STOREFRONT_PROXY_BASE_URL"
	EnvTotalDebounce     = "FLORIST_CHECKOUT_TOTAL_DEBOUNCE"
	EnvAuthorizeNetLogin = "FLORIST_AUTHORIZENET_API_LOGIN_ID"
)

type Config struct {
	App          AppConfig
	Florist      FloristConfig
	Storefront   StorefrontConfig
	Redis        RedisConfig
	DB           DBConfig
	Session      SessionConfig
	Checkout     CheckoutConfig
	AuthorizeNet AuthorizeNetConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Session.Normalized() {
	case SessionBackendRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s=%s requires %s or %s", EnvSessionBackend, SessionBackendRedis, EnvRedisURL, EnvRedisAddr)
		}
	case SessionBackendSQL:
		if c.DB.Normalized() == DBDriverPostgres && c.DB.DSN == "" {
			return fmt.Errorf("%s is required for the postgres driver", EnvDBDSN)
		}
	case SessionBackendMemory:
	default:
		return fmt.Errorf("unsupported session backend %q", c.Session.Backend)
	}
	switch c.DB.Normalized() {
	case DBDriverSQLite, DBDriverPostgres:
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.Checkout.MinPostalLength <= 0 {
		return fmt.Errorf("checkout min postal length must be positive")
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"FLORIST_APP_ENV" required:"true"`
	Port         string `envconfig:"FLORIST_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FLORIST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FLORIST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// FloristConfig holds the upstream commerce credentials used by the proxy.
type FloristConfig struct {
	BaseURL  string        `envconfig:"FLORIST_UPSTREAM_BASE_URL" default:"https://www.floristone.com/api"`
	APIKey   string        `envconfig:"FLORIST_API_KEY"`
	Password string        `envconfig:"FLORIST_API_PASSWORD"`
	Timeout  time.Duration `envconfig:"FLORIST_UPSTREAM_TIMEOUT" default:"20s"`
}

// Validate reports missing upstream credentials. Only the proxy needs them.
func (f FloristConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(f.APIKey) == "" {
		missing = append(missing, EnvFloristAPIKey)
	}
	if strings.TrimSpace(f.Password) == "" {
		missing = append(missing, EnvFloristPassword)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing upstream credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Masked returns the first characters of a credential for startup logs.
func Masked(value string) string {
	if value == "" {
		return "NOT SET"
	}
	if len(value) <= 3 {
		return "Set (***)"
	}
	return "Set (" + value[:3] + "...)"
}

type StorefrontConfig struct {
	Port           string        `envconfig:"FLORIST_STOREFRONT_PORT" default:"8081"`
	ProxyBaseURL   string        `envconfig:"FLORIST_STOREFRONT_PROXY_BASE_URL" default:"http://localhost:8080/api"`
	ProxyTimeout   time.Duration `envconfig:"FLORIST_STOREFRONT_PROXY_TIMEOUT" default:"30s"`
	JWTSecret      string        `envconfig:"FLORIST_STOREFRONT_JWT_SECRET" default:"dev-storefront-secret"`
	JWTIssuer      string        `envconfig:"FLORIST_STOREFRONT_JWT_ISSUER" default:"florist-storefront"`
	ShopperTTL     time.Duration `envconfig:"FLORIST_STOREFRONT_SHOPPER_TTL" default:"720h"`
	CookieName     string        `envconfig:"FLORIST_STOREFRONT_COOKIE" default:"florist_shopper"`
	AllowedOrigins []string      `envconfig:"FLORIST_STOREFRONT_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:8081"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FLORIST_REDIS_URL"`
	Address      string        `envconfig:"FLORIST_REDIS_ADDR"`
	Password     string        `envconfig:"FLORIST_REDIS_PASSWORD"`
	DB           int           `envconfig:"FLORIST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FLORIST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FLORIST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FLORIST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FLORIST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FLORIST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type DBConfig struct {
	Driver string `envconfig:"FLORIST_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"FLORIST_DB_DSN" default:"florist.db"`

	MaxOpenConns    int           `envconfig:"FLORIST_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"FLORIST_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"FLORIST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FLORIST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"FLORIST_DB_AUTO_MIGRATE" default:"true"`
}

func (db DBConfig) Normalized() string {
	return strings.ToLower(strings.TrimSpace(db.Driver))
}

// SessionConfig selects where the cart-session identifier is persisted.
type SessionConfig struct {
	Backend string        `envconfig:"FLORIST_SESSION_BACKEND" default:"sql"`
	Key     string        `envconfig:"FLORIST_SESSION_KEY" default:"florist_cart_id"`
	TTL     time.Duration `envconfig:"FLORIST_SESSION_TTL" default:"720h"`
}

func (s SessionConfig) Normalized() string {
	return strings.ToLower(strings.TrimSpace(s.Backend))
}

type CheckoutConfig struct {
	MinPostalLength    int           `envconfig:"FLORIST_CHECKOUT_MIN_POSTAL_LENGTH" default:"5"`
	TotalDebounce      time.Duration `envconfig:"FLORIST_CHECKOUT_TOTAL_DEBOUNCE" default:"500ms"`
	MessageMaxLen      int           `envconfig:"FLORIST_CHECKOUT_MESSAGE_MAX_LEN" default:"200"`
	InstructionsMaxLen int           `envconfig:"FLORIST_CHECKOUT_INSTRUCTIONS_MAX_LEN" default:"100"`
	Country            string        `envconfig:"FLORIST_CHECKOUT_COUNTRY" default:"US"`
	ProductPageSize    int           `envconfig:"FLORIST_CHECKOUT_PRODUCT_PAGE_SIZE" default:"12"`
}

type AuthorizeNetConfig struct {
	APILoginID string        `envconfig:"FLORIST_AUTHORIZENET_API_LOGIN_ID"`
	Endpoint   string        `envconfig:"FLORIST_AUTHORIZENET_ENDPOINT" default:"https://apitest.authorize.net/xml/v1/request.api"`
	AcceptURL  string        `envconfig:"FLORIST_AUTHORIZENET_ACCEPT_URL" default:"https://jstest.authorize.net/v1/Accept.js"`
	Timeout    time.Duration `envconfig:"FLORIST_AUTHORIZENET_TIMEOUT" default:"15s"`
}

type RateLimitConfig struct {
	OrderWindow  time.Duration `envconfig:"FLORIST_RATE_LIMIT_ORDER_WINDOW" default:"1m"`
	OrderIPLimit int           `envconfig:"FLORIST_RATE_LIMIT_ORDER_IP_LIMIT" default:"10"`
}
