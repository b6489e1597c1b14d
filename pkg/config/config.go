// Package config loads the STOREFRONT_* environment into typed sections.
// Load fails on missing required variables and on combinations that cannot
// work together, listing every problem at once.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Access        AccessConfig
	Cart          CartConfig
	Wishlist      WishlistConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.DB.resolveDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// minProdSecretLen is the HS256 key length required outside dev.
const minProdSecretLen = 32

// Validate checks rules that span fields.
func (c *Config) Validate() error {
	var err error
	if _, convErr := strconv.Atoi(c.App.Port); convErr != nil {
		err = multierr.Append(err, fmt.Errorf("%s must be a port number, got %q", EnvPort, c.App.Port))
	}
	switch c.DB.driver() {
	case "postgres", "sqlite":
	default:
		err = multierr.Append(err, fmt.Errorf("%s must be postgres or sqlite, got %q", EnvDBDriver, c.DB.Driver))
	}
	if c.App.IsProd() && len(c.JWT.Secret) < minProdSecretLen {
		err = multierr.Append(err, fmt.Errorf("%s must be at least %d bytes in prod", EnvJWTSecret, minProdSecretLen))
	}
	if c.Access.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvAccessTimeout))
	}
	if c.Cron.LockTTL <= c.Cron.JobTimeout {
		err = multierr.Append(err, fmt.Errorf("%s (%s) must exceed %s (%s) so a running job keeps the lock",
			EnvCronLockTTL, c.Cron.LockTTL, EnvCronJobTimeout, c.Cron.JobTimeout))
	}
	return err
}

type AppConfig struct {
	Env          string   `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string   `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool  { return strings.EqualFold(a.Env, AppEnvDev) }
func (a AppConfig) IsProd() bool { return strings.EqualFold(a.Env, AppEnvProd) }

// DBConfig takes a full DSN or, failing that, discrete Postgres parts.
type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"200ms"`
}

func (db DBConfig) driver() string {
	if d := strings.ToLower(strings.TrimSpace(db.Driver)); d != "" {
		return d
	}
	return "postgres"
}

func (db *DBConfig) resolveDSN() error {
	if db.DSN != "" {
		return nil
	}
	var missing []string
	for _, part := range [...]struct{ env, val string }{
		{EnvDBHost, db.Host}, {EnvDBUser, db.User}, {EnvDBName, db.Name},
	} {
		if part.val == "" {
			missing = append(missing, part.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("set %s, or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   db.Host + ":" + strconv.Itoa(db.Port),
		Path:   db.Name,
	}
	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"STOREFRONT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL is zero when refresh tokens never expire on their own.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(max(j.RefreshTokenTTLMinutes, 0)) * time.Minute
}

// PasswordConfig sets the argon2id cost. Raising it rehashes stored
// passwords on their next successful login.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREFRONT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOREFRONT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOREFRONT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOREFRONT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// AccessConfig bounds the route guard.
type AccessConfig struct {
	Timeout          time.Duration `envconfig:"STOREFRONT_ACCESS_TIMEOUT" default:"3s"`
	NotAuthorizedURL string        `envconfig:"STOREFRONT_ACCESS_NOT_AUTHORIZED_URL" default:"/not-authorized"`
}

type CartConfig struct {
	TTL time.Duration `envconfig:"STOREFRONT_CART_TTL" default:"720h"`
}

type WishlistConfig struct {
	CacheTTL time.Duration `envconfig:"STOREFRONT_WISHLIST_CACHE_TTL" default:"168h"`
}

type CronConfig struct {
	Interval    time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"5m"`
	LockTTL     time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"10m"`
	JobTimeout  time.Duration `envconfig:"STOREFRONT_CRON_JOB_TIMEOUT" default:"2m"`
	MetricsAddr string        `envconfig:"STOREFRONT_CRON_METRICS_ADDR" default:":9091"`
}
