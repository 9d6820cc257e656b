package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Esewa        EsewaConfig
	Frontend     FrontendConfig
	Reconcile    ReconcileConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RENTARIDE_APP_ENV" required:"true"`
	Port         string `envconfig:"RENTARIDE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RENTARIDE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RENTARIDE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RENTARIDE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RENTARIDE_DB_DSN"`
	Driver string `envconfig:"RENTARIDE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"RENTARIDE_DB_HOST"`
	Port     int    `envconfig:"RENTARIDE_DB_PORT" default:"5432"`
	User     string `envconfig:"RENTARIDE_DB_USER"`
	Password string `envconfig:"RENTARIDE_DB_PASSWORD"`
	Name     string `envconfig:"RENTARIDE_DB_NAME"`
	SSLMode  string `envconfig:"RENTARIDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RENTARIDE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RENTARIDE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RENTARIDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RENTARIDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RENTARIDE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RENTARIDE_REDIS_ADDR"`
	Password     string        `envconfig:"RENTARIDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"RENTARIDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RENTARIDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RENTARIDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RENTARIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RENTARIDE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RENTARIDE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// EsewaConfig carries the gateway credentials. SecretKey must never be logged.
type EsewaConfig struct {
	ProductCode   string        `envconfig:"RENTARIDE_ESEWA_PRODUCT_CODE" required:"true"`
	SecretKey     string        `envconfig:"RENTARIDE_ESEWA_SECRET_KEY" required:"true"`
	BaseURL       string        `envconfig:"RENTARIDE_ESEWA_BASE_URL" default:"https://rc-epay.esewa.com.np"`
	SuccessURL    string        `envconfig:"RENTARIDE_ESEWA_SUCCESS_URL" required:"true"`
	FailureURL    string        `envconfig:"RENTARIDE_ESEWA_FAILURE_URL" required:"true"`
	VerifyTimeout time.Duration `envconfig:"RENTARIDE_ESEWA_VERIFY_TIMEOUT" default:"10s"`
	VerifyRetries int           `envconfig:"RENTARIDE_ESEWA_VERIFY_RETRIES" default:"3"`
}

// FrontendConfig holds the browser-facing redirect targets for payment results.
type FrontendConfig struct {
	SuccessURL string `envconfig:"RENTARIDE_FRONTEND_SUCCESS_URL" required:"true"`
	FailureURL string `envconfig:"RENTARIDE_FRONTEND_FAILURE_URL" required:"true"`
}

type ReconcileConfig struct {
	Interval        time.Duration `envconfig:"RENTARIDE_RECONCILE_INTERVAL" default:"5m"`
	BackfillGrace   time.Duration `envconfig:"RENTARIDE_RECONCILE_BACKFILL_GRACE" default:"2m"`
	PendingTTL      time.Duration `envconfig:"RENTARIDE_RECONCILE_PENDING_TTL" default:"24h"`
	VerifyGuardTTL  time.Duration `envconfig:"RENTARIDE_RECONCILE_VERIFY_GUARD_TTL" default:"30s"`
	BackfillBatch   int           `envconfig:"RENTARIDE_RECONCILE_BACKFILL_BATCH" default:"50"`
	StuckBatchLimit int           `envconfig:"RENTARIDE_RECONCILE_STUCK_BATCH" default:"50"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"RENTARIDE_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
