package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BAWABATI_DB_DSN"
	EnvDBHost = "BAWABATI_DB_HOST"
	EnvDBUser = "BAWABATI_DB_USER"
	EnvDBName = "BAWABATI_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Handoff       HandoffConfig
	Loyalty       LoyaltyConfig
	Cron          CronConfig
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
	Env          string `envconfig:"BAWABATI_APP_ENV" required:"true"`
	Port         string `envconfig:"BAWABATI_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAWABATI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAWABATI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BAWABATI_DB_DSN"`
	Driver string `envconfig:"BAWABATI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BAWABATI_DB_HOST"`
	LegacyPort     int    `envconfig:"BAWABATI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BAWABATI_DB_USER"`
	LegacyPassword string `envconfig:"BAWABATI_DB_PASSWORD"`
	LegacyName     string `envconfig:"BAWABATI_DB_NAME"`
	LegacySSLMode  string `envconfig:"BAWABATI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAWABATI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAWABATI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAWABATI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAWABATI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAWABATI_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BAWABATI_REDIS_ADDR"`
	Password     string        `envconfig:"BAWABATI_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAWABATI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAWABATI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAWABATI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAWABATI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAWABATI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAWABATI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BAWABATI_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BAWABATI_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BAWABATI_JWT_EXPIRATION_MINUTES" required:"true"`
	SessionTTLMinutes int    `envconfig:"BAWABATI_SESSION_TTL_MINUTES" default:"43200"`
}

// SessionTTL returns the access session TTL configured in minutes.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BAWABATI_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BAWABATI_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BAWABATI_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BAWABATI_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BAWABATI_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"BAWABATI_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"BAWABATI_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"BAWABATI_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"BAWABATI_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"BAWABATI_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"BAWABATI_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BAWABATI_AUTO_MIGRATE" default:"false"`
}

// HandoffConfig controls the pickup/delivery code exchange.
type HandoffConfig struct {
	// CodeTTL is how long an issued OTP/QR pair stays valid.
	CodeTTL     time.Duration `envconfig:"BAWABATI_HANDOFF_CODE_TTL" default:"24h"`
	TokenSecret string        `envconfig:"BAWABATI_HANDOFF_TOKEN_SECRET" required:"true"`
	TokenIssuer string        `envconfig:"BAWABATI_HANDOFF_TOKEN_ISSUER" default:"bawabati-handoff"`
}

type LoyaltyConfig struct {
	// EarnRate is loyalty points credited per currency unit of a delivered order.
	EarnRate      string `envconfig:"BAWABATI_LOYALTY_EARN_RATE" default:"1"`
	ReferralBonus int64  `envconfig:"BAWABATI_LOYALTY_REFERRAL_BONUS" default:"50"`
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"BAWABATI_CRON_INTERVAL" default:"1h"`
	LockTTL              time.Duration `envconfig:"BAWABATI_CRON_LOCK_TTL" default:"2h"`
	NotificationMaxAge   time.Duration `envconfig:"BAWABATI_CRON_NOTIFICATION_MAX_AGE" default:"720h"`
	MetricsListenAddress string        `envconfig:"BAWABATI_CRON_METRICS_ADDR" default:":9091"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
