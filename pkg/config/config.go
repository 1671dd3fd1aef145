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
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Webhooks     WebhooksConfig
	Admin        AdminConfig
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
	Env          string `envconfig:"FARMBOX_APP_ENV" required:"true"`
	Port         string `envconfig:"FARMBOX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FARMBOX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FARMBOX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FARMBOX_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FARMBOX_DB_DSN"`
	Driver string `envconfig:"FARMBOX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FARMBOX_DB_HOST"`
	LegacyPort     int    `envconfig:"FARMBOX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FARMBOX_DB_USER"`
	LegacyPassword string `envconfig:"FARMBOX_DB_PASSWORD"`
	LegacyName     string `envconfig:"FARMBOX_DB_NAME"`
	LegacySSLMode  string `envconfig:"FARMBOX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMBOX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMBOX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMBOX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMBOX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMBOX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FARMBOX_REDIS_ADDR"`
	Password     string        `envconfig:"FARMBOX_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMBOX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMBOX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMBOX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMBOX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMBOX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMBOX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FARMBOX_AUTO_MIGRATE" default:"false"`
}

// PricingConfig carries the product-line money knobs. Amounts are integer
// minor currency units.
type PricingConfig struct {
	PorkDepositPercent int `envconfig:"FARMBOX_PRICING_PORK_DEPOSIT_PERCENT" default:"50"`
	EggDepositPercent  int `envconfig:"FARMBOX_PRICING_EGG_DEPOSIT_PERCENT" default:"50"`
	HomeDeliveryCents  int `envconfig:"FARMBOX_PRICING_HOME_DELIVERY_CENTS" default:"30000"`
	PostalCents        int `envconfig:"FARMBOX_PRICING_POSTAL_CENTS" default:"19900"`
	RushFeeCents       int `envconfig:"FARMBOX_PRICING_RUSH_FEE_CENTS" default:"15000"`
}

// DepositPercent returns the deposit split for the given product line.
func (p PricingConfig) DepositPercent(line string) int {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "egg":
		return p.EggDepositPercent
	default:
		return p.PorkDepositPercent
	}
}

type SquareConfig struct {
	AccessToken   string `envconfig:"FARMBOX_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"FARMBOX_SQUARE_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"FARMBOX_SQUARE_LOCATION_ID"`
	Env           string `envconfig:"FARMBOX_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FARMBOX_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FARMBOX_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FARMBOX_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"FARMBOX_PUBSUB_DOMAIN_TOPIC" default:"farmbox-domain-events"`
	DomainSubscription string `envconfig:"FARMBOX_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FARMBOX_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FARMBOX_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FARMBOX_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"FARMBOX_CRON_INTERVAL" default:"1h"`
	ForfeitAfter   time.Duration `envconfig:"FARMBOX_CRON_FORFEIT_GRACE" default:"168h"`
	MetricsAddress string        `envconfig:"FARMBOX_CRON_METRICS_ADDR" default:":9091"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"FARMBOX_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

// AdminConfig guards the back-office endpoints. A single shared token is
// enough for the farm's two admins.
type AdminConfig struct {
	APIToken string `envconfig:"FARMBOX_ADMIN_API_TOKEN"`
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
